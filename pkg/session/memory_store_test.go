package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionguard/sessionguard/pkg/session"
)

func newStoreSession(sid string, userID uuid.UUID, lastSeen time.Time) *session.Session {
	s := session.New(sid, userID, "198.51.100.5", time.Hour)
	s.LastSeenAt = lastSeen
	return s
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := session.NewMemoryStore(0)
		defer store.Close()

		userID := uuid.New()
		require.NoError(t, store.Create(ctx, session.New("sid-1", userID, "host", time.Hour)))

		s, err := store.Get(ctx, "sid-1")
		require.NoError(t, err)
		assert.Equal(t, userID, s.UserID)
		assert.Equal(t, "host", s.Hostname)
	})

	t.Run("get unknown", func(t *testing.T) {
		store := session.NewMemoryStore(0)
		defer store.Close()

		_, err := store.Get(ctx, "absent")
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("expired session not returned", func(t *testing.T) {
		store := session.NewMemoryStore(0)
		defer store.Close()

		require.NoError(t, store.Create(ctx, session.New("sid-old", uuid.New(), "", -time.Minute)))
		_, err := store.Get(ctx, "sid-old")
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("count active with exclusions", func(t *testing.T) {
		store := session.NewMemoryStore(0)
		defer store.Close()

		userID := uuid.New()
		other := uuid.New()
		now := time.Now()
		require.NoError(t, store.Create(ctx, newStoreSession("a", userID, now)))
		require.NoError(t, store.Create(ctx, newStoreSession("b", userID, now)))
		require.NoError(t, store.Create(ctx, newStoreSession("c", other, now)))

		count, err := store.CountActive(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = store.CountActive(ctx, userID, "b")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("list ordered oldest first with sid tiebreak", func(t *testing.T) {
		store := session.NewMemoryStore(0)
		defer store.Close()

		userID := uuid.New()
		base := time.Now().Add(-time.Hour)
		require.NoError(t, store.Create(ctx, newStoreSession("m", userID, base.Add(10*time.Second))))
		require.NoError(t, store.Create(ctx, newStoreSession("z", userID, base.Add(30*time.Second))))
		require.NoError(t, store.Create(ctx, newStoreSession("k", userID, base.Add(20*time.Second))))
		require.NoError(t, store.Create(ctx, newStoreSession("a", userID, base.Add(20*time.Second))))

		list, err := store.ListActive(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 4)

		sids := []string{list[0].SID, list[1].SID, list[2].SID, list[3].SID}
		assert.Equal(t, []string{"m", "a", "k", "z"}, sids)
	})

	t.Run("set flags", func(t *testing.T) {
		store := session.NewMemoryStore(0)
		defer store.Close()

		require.NoError(t, store.Create(ctx, session.New("sid-f", uuid.New(), "", time.Hour)))
		require.NoError(t, store.SetFlags(ctx, "sid-f", true, false))

		s, err := store.Get(ctx, "sid-f")
		require.NoError(t, err)
		assert.True(t, s.CheckedOnce)
		assert.False(t, s.Verified)

		require.NoError(t, store.SetFlags(ctx, "sid-f", true, true))
		s, err = store.Get(ctx, "sid-f")
		require.NoError(t, err)
		assert.True(t, s.Verified)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := session.NewMemoryStore(0)
		defer store.Close()

		require.NoError(t, store.Create(ctx, session.New("sid-d", uuid.New(), "", time.Hour)))
		require.NoError(t, store.Delete(ctx, "sid-d"))
		require.NoError(t, store.Delete(ctx, "sid-d"))

		_, err := store.Get(ctx, "sid-d")
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("delete expired", func(t *testing.T) {
		store := session.NewMemoryStore(0)
		defer store.Close()

		userID := uuid.New()
		require.NoError(t, store.Create(ctx, session.New("live", userID, "", time.Hour)))
		require.NoError(t, store.Create(ctx, session.New("dead", userID, "", -time.Minute)))

		require.NoError(t, store.DeleteExpired(ctx))

		count, err := store.CountActive(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestMemoryStoreConcurrency(t *testing.T) {
	store := session.NewMemoryStore(0)
	defer store.Close()

	ctx := context.Background()
	userID := uuid.New()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = store.Create(ctx, session.New(uuid.NewString(), userID, "", time.Hour))
			if i%10 == 0 {
				_, _ = store.ListActive(ctx, userID)
			}
		}
	}()

	for i := 0; i < 100; i++ {
		_, _ = store.CountActive(ctx, userID)
	}
	<-done
}
