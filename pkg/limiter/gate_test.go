package limiter_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionguard/sessionguard/pkg/limiter"
	"github.com/sessionguard/sessionguard/pkg/session"
)

// countingStore wraps a session store and counts CountActive calls.
type countingStore struct {
	session.Store
	countCalls atomic.Int32
}

func (c *countingStore) CountActive(ctx context.Context, userID uuid.UUID, excludeSIDs ...string) (int, error) {
	c.countCalls.Add(1)
	return c.Store.CountActive(ctx, userID, excludeSIDs...)
}

// failingStore fails every read used by the gate.
type failingStore struct {
	session.Store
}

func (f *failingStore) CountActive(ctx context.Context, userID uuid.UUID, excludeSIDs ...string) (int, error) {
	return 0, errors.New("store unreachable")
}

type gateEnv struct {
	store    *countingStore
	settings *limiter.MemorySettingsStore
	notices  *limiter.MemoryNoticeStore
	evictor  *limiter.Evictor
	gate     *limiter.Gate
}

func newGateEnv(t *testing.T, s limiter.Settings, opts ...limiter.GateOption) *gateEnv {
	t.Helper()

	mem := session.NewMemoryStore(0)
	t.Cleanup(func() { _ = mem.Close() })

	store := &countingStore{Store: mem}
	settings := limiter.NewMemorySettingsStore(s)
	notices := limiter.NewMemoryNoticeStore()
	evictor := limiter.NewEvictor(store, notices)

	return &gateEnv{
		store:    store,
		settings: settings,
		notices:  notices,
		evictor:  evictor,
		gate:     limiter.NewGate(store, settings, evictor, opts...),
	}
}

func (e *gateEnv) addSession(t *testing.T, sid string, userID uuid.UUID, lastSeen time.Time) {
	t.Helper()
	s := session.New(sid, userID, "198.51.100.1", time.Hour)
	s.LastSeenAt = lastSeen
	require.NoError(t, e.store.Create(context.Background(), s))
}

func (e *gateEnv) do(actor limiter.Actor, mutateCtx ...func(context.Context) context.Context) (*httptest.ResponseRecorder, bool) {
	served := false
	handler := e.gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served = true
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/", nil)
	ctx := limiter.WithActor(r.Context(), actor)
	for _, m := range mutateCtx {
		ctx = m(ctx)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r.WithContext(ctx))
	return w, served
}

func TestGateSkips(t *testing.T) {
	t.Run("anonymous request untouched", func(t *testing.T) {
		env := newGateEnv(t, limiter.DefaultSettings())

		_, served := env.do(limiter.Actor{Authenticated: false})
		assert.True(t, served)
		assert.Zero(t, env.store.countCalls.Load())
	})

	t.Run("missing actor untouched", func(t *testing.T) {
		env := newGateEnv(t, limiter.DefaultSettings())

		served := false
		handler := env.gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			served = true
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
		assert.True(t, served)
		assert.Zero(t, env.store.countCalls.Load())
	})

	t.Run("bypass flag skips the check", func(t *testing.T) {
		env := newGateEnv(t, limiter.DefaultSettings())
		userID := uuid.New()
		env.addSession(t, "sid-1", userID, time.Now())

		_, served := env.do(
			limiter.Actor{UserID: userID, SID: "sid-1", Authenticated: true},
			limiter.WithBypass,
		)
		assert.True(t, served)
		assert.Zero(t, env.store.countCalls.Load())
	})

	t.Run("root user exempt by default", func(t *testing.T) {
		root := uuid.New()
		env := newGateEnv(t, limiter.DefaultSettings(), limiter.WithRootUser(root))
		env.addSession(t, "sid-root", root, time.Now())

		_, served := env.do(limiter.Actor{UserID: root, SID: "sid-root", Authenticated: true})
		assert.True(t, served)
		assert.Zero(t, env.store.countCalls.Load())
	})

	t.Run("root user checked when included", func(t *testing.T) {
		root := uuid.New()
		s := limiter.DefaultSettings()
		s.IncludeRootUser = true
		env := newGateEnv(t, s, limiter.WithRootUser(root))
		env.addSession(t, "sid-root", root, time.Now())

		_, served := env.do(limiter.Actor{UserID: root, SID: "sid-root", Authenticated: true})
		assert.True(t, served)
		assert.Equal(t, int32(1), env.store.countCalls.Load())
	})
}

func TestGateDoubleCheck(t *testing.T) {
	env := newGateEnv(t, limiter.DefaultSettings())
	userID := uuid.New()
	env.addSession(t, "sid-1", userID, time.Now())
	actor := limiter.Actor{UserID: userID, SID: "sid-1", Authenticated: true}
	ctx := context.Background()

	// First clean pass: checked once, not verified.
	_, served := env.do(actor)
	require.True(t, served)

	s, err := env.store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, s.CheckedOnce)
	assert.False(t, s.Verified)

	// Second clean pass promotes to verified.
	_, served = env.do(actor)
	require.True(t, served)

	s, err = env.store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, s.Verified)

	// Third pass skips the count query entirely.
	before := env.store.countCalls.Load()
	_, served = env.do(actor)
	require.True(t, served)
	assert.Equal(t, before, env.store.countCalls.Load())
}

func TestGateLogOnlyMode(t *testing.T) {
	s := limiter.DefaultSettings()
	s.Max = 1
	s.Mode = limiter.ModeNone
	env := newGateEnv(t, s)

	userID := uuid.New()
	env.addSession(t, "old", userID, time.Now().Add(-time.Minute))
	env.addSession(t, "new", userID, time.Now())

	_, served := env.do(limiter.Actor{UserID: userID, SID: "new", Authenticated: true})
	assert.True(t, served)

	// No eviction took place and the over-limit session is not verified,
	// so the hit is recorded again on every pass.
	count, err := env.store.CountActive(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	sess, err := env.store.Get(context.Background(), "new")
	require.NoError(t, err)
	assert.False(t, sess.CheckedOnce)
	assert.False(t, sess.Verified)
}

func TestGateDropOldest(t *testing.T) {
	t.Run("oldest sessions dropped, notice left", func(t *testing.T) {
		s := limiter.DefaultSettings()
		s.Max = 1
		s.Mode = limiter.ModeDropOldest
		env := newGateEnv(t, s)

		userID := uuid.New()
		base := time.Now().Add(-time.Hour)
		env.addSession(t, "oldest", userID, base)
		env.addSession(t, "newest", userID, base.Add(30*time.Minute))

		_, served := env.do(limiter.Actor{UserID: userID, SID: "newest", Authenticated: true})
		assert.True(t, served)

		_, err := env.store.Get(context.Background(), "oldest")
		assert.ErrorIs(t, err, session.ErrSessionNotFound)

		_, err = env.store.Get(context.Background(), "newest")
		assert.NoError(t, err)

		n, ok, err := env.notices.Pop(context.Background(), "oldest")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, limiter.ReasonCollision, n.Reason)
		assert.Contains(t, n.Message, "1")
	})

	t.Run("caller evicted with its own batch gets redirected", func(t *testing.T) {
		s := limiter.DefaultSettings()
		s.Max = 1
		s.Mode = limiter.ModeDropOldest
		env := newGateEnv(t, s)

		userID := uuid.New()
		base := time.Now().Add(-time.Hour)
		env.addSession(t, "mine", userID, base)
		env.addSession(t, "other", userID, base.Add(30*time.Minute))

		w, served := env.do(limiter.Actor{UserID: userID, SID: "mine", Authenticated: true})
		assert.False(t, served)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})
}

func TestGateDisallowNew(t *testing.T) {
	s := limiter.DefaultSettings()
	s.Max = 1
	s.Mode = limiter.ModeDisallowNew
	env := newGateEnv(t, s)

	userID := uuid.New()
	base := time.Now().Add(-time.Hour)
	env.addSession(t, "established", userID, base)
	env.addSession(t, "incoming", userID, base.Add(30*time.Minute))

	w, served := env.do(limiter.Actor{UserID: userID, SID: "incoming", Authenticated: true})
	assert.False(t, served)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	// The new session is gone, the established one survives.
	_, err := env.store.Get(context.Background(), "incoming")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = env.store.Get(context.Background(), "established")
	assert.NoError(t, err)

	// The blocked workstation gets the limit-hit message.
	n, ok, err := env.notices.Pop(context.Background(), "incoming")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, n.Message, "maximum number of simultaneous sessions (1)")
}

func TestGateFailsOpen(t *testing.T) {
	mem := session.NewMemoryStore(0)
	t.Cleanup(func() { _ = mem.Close() })

	userID := uuid.New()
	require.NoError(t, mem.Create(context.Background(), session.New("sid-1", userID, "", time.Hour)))

	store := &failingStore{Store: mem}
	settings := limiter.NewMemorySettingsStore(limiter.DefaultSettings())
	notices := limiter.NewMemoryNoticeStore()
	gate := limiter.NewGate(store, settings, limiter.NewEvictor(store, notices))

	served := false
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served = true
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(limiter.WithActor(r.Context(), limiter.Actor{
		UserID: userID, SID: "sid-1", Authenticated: true,
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.True(t, served, "gate must fail open when the store is unreachable")
}

func TestGateMasqueradeExclusion(t *testing.T) {
	s := limiter.DefaultSettings()
	s.Max = 1
	s.Mode = limiter.ModeDisallowNew
	s.MasqueradeIgnore = true

	masq := limiter.MasqueraderFunc(func(ctx context.Context, sid string, userID uuid.UUID) (bool, error) {
		return sid == "admin-as-user", nil
	})
	env := newGateEnv(t, s, limiter.WithMasquerader(masq))

	userID := uuid.New()
	env.addSession(t, "admin-as-user", userID, time.Now().Add(-time.Minute))
	env.addSession(t, "own", userID, time.Now())

	// The impersonation session does not count, so the user is at 1 of 1.
	_, served := env.do(limiter.Actor{UserID: userID, SID: "own", Authenticated: true})
	assert.True(t, served)

	_, err := env.store.Get(context.Background(), "own")
	assert.NoError(t, err)
}

func TestGateMaxResolverOverride(t *testing.T) {
	s := limiter.DefaultSettings()
	s.Max = 1
	s.Mode = limiter.ModeDisallowNew

	resolver := limiter.MaxResolverFunc(func(ctx context.Context, userID uuid.UUID) (int, bool, error) {
		return 5, true, nil
	})
	env := newGateEnv(t, s, limiter.WithMaxResolver(resolver))

	userID := uuid.New()
	env.addSession(t, "a", userID, time.Now().Add(-time.Minute))
	env.addSession(t, "b", userID, time.Now())

	// Global max would block; the per-user override of 5 allows.
	_, served := env.do(limiter.Actor{UserID: userID, SID: "b", Authenticated: true})
	assert.True(t, served)
}

func TestGateConcurrentFirstLogins(t *testing.T) {
	s := limiter.DefaultSettings()
	s.Max = 1
	s.Mode = limiter.ModeDisallowNew
	env := newGateEnv(t, s)

	userID := uuid.New()
	env.addSession(t, "login-a", userID, time.Now())
	env.addSession(t, "login-b", userID, time.Now())

	var wg sync.WaitGroup
	for _, sid := range []string{"login-a", "login-b"} {
		sid := sid
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Two passes each, as the double-check protocol requires.
			env.do(limiter.Actor{UserID: userID, SID: sid, Authenticated: true})
			env.do(limiter.Actor{UserID: userID, SID: sid, Authenticated: true})
		}()
	}
	wg.Wait()

	// At most one of the racing sessions may end up verified; the other
	// must be blocked or still awaiting re-check.
	verified := 0
	for _, sid := range []string{"login-a", "login-b"} {
		sess, err := env.store.Get(context.Background(), sid)
		if err != nil {
			continue // evicted
		}
		if sess.Verified {
			verified++
		}
	}
	assert.LessOrEqual(t, verified, 1)
}
