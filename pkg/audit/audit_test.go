package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionguard/sessionguard/pkg/audit"
)

func TestLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("log success event", func(t *testing.T) {
		storage := audit.NewMemoryStorage()
		log := audit.NewLogger(storage)

		err := log.Log(ctx, "session.evicted",
			audit.WithUser("user-1"),
			audit.WithSession("sid-1"),
			audit.WithMetadata(map[string]any{"reason": "collision"}),
		)
		require.NoError(t, err)

		events := storage.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "session.evicted", events[0].Action)
		assert.Equal(t, audit.ResultSuccess, events[0].Result)
		assert.Equal(t, "user-1", events[0].UserID)
		assert.Equal(t, "sid-1", events[0].SessionID)
		assert.Equal(t, "collision", events[0].Metadata["reason"])
		assert.NotEmpty(t, events[0].ID)
		assert.False(t, events[0].CreatedAt.IsZero())
	})

	t.Run("log error event", func(t *testing.T) {
		storage := audit.NewMemoryStorage()
		log := audit.NewLogger(storage)

		err := log.LogError(ctx, "session.evict", errors.New("store unreachable"),
			audit.WithSession("sid-2"))
		require.NoError(t, err)

		events := storage.Events()
		require.Len(t, events, 1)
		assert.Equal(t, audit.ResultFailure, events[0].Result)
		assert.Equal(t, "store unreachable", events[0].Error)
	})

	t.Run("empty action rejected", func(t *testing.T) {
		log := audit.NewLogger(audit.NewMemoryStorage())
		err := log.Log(ctx, "")
		assert.ErrorIs(t, err, audit.ErrEventValidation)
	})

	t.Run("nil storage panics", func(t *testing.T) {
		assert.Panics(t, func() { audit.NewLogger(nil) })
	})
}
