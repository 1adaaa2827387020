package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store using in-process storage.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ticker   *time.Ticker
	done     chan struct{}
	once     sync.Once
}

// NewMemoryStore creates an in-memory session store. A positive
// cleanupInterval starts a background sweep of expired sessions.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	store := &MemoryStore{
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}

	if cleanupInterval > 0 {
		store.ticker = time.NewTicker(cleanupInterval)
		go store.cleanupLoop()
	}

	return store
}

func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	if s == nil || s.SID == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.sessions[s.SID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, sid string) (*Session, error) {
	m.mu.RLock()
	s, exists := m.sessions[sid]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrSessionNotFound
	}

	if s.IsExpired() {
		m.mu.Lock()
		delete(m.sessions, sid)
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	cp := *s
	return &cp, nil
}

func (m *MemoryStore) CountActive(ctx context.Context, userID uuid.UUID, excludeSIDs ...string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for sid, s := range m.sessions {
		if s.UserID != userID || s.IsExpired() {
			continue
		}
		if slices.Contains(excludeSIDs, sid) {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemoryStore) ListActive(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Session
	for _, s := range m.sessions {
		if s.UserID != userID || s.IsExpired() {
			continue
		}
		out = append(out, *s)
	}

	sortOldestFirst(out)
	return out, nil
}

func (m *MemoryStore) Touch(ctx context.Context, sid string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sid]
	if !exists {
		return ErrSessionNotFound
	}

	s.LastSeenAt = at
	return nil
}

func (m *MemoryStore) SetFlags(ctx context.Context, sid string, checkedOnce, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sid]
	if !exists {
		return ErrSessionNotFound
	}

	s.CheckedOnce = checkedOnce
	s.Verified = verified
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sid)
	return nil
}

func (m *MemoryStore) DeleteExpired(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for sid, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, sid)
		}
	}
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-m.ticker.C:
			_ = m.DeleteExpired(context.Background())
		case <-m.done:
			return
		}
	}
}

// sortOldestFirst orders sessions by last activity ascending with session
// id as a deterministic tiebreak.
func sortOldestFirst(sessions []Session) {
	slices.SortFunc(sessions, func(a, b Session) int {
		if c := a.LastSeenAt.Compare(b.LastSeenAt); c != 0 {
			return c
		}
		if a.SID < b.SID {
			return -1
		}
		if a.SID > b.SID {
			return 1
		}
		return 0
	})
}
