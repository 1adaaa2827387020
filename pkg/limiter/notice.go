package limiter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sessionguard/sessionguard/pkg/session"
)

// Notice tells the owner of a terminated session why they were signed
// out. It is keyed by the dead session id: the owner's next request still
// carries that id, even though the session row is gone.
type Notice struct {
	SID       string    `json:"sid"`
	Reason    Reason    `json:"reason"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// NoticeStore persists termination notices.
type NoticeStore interface {
	// Put stores a notice, replacing any existing notice for the same sid.
	Put(ctx context.Context, n Notice) error

	// Pop retrieves and removes the notice for sid. Returns ok=false when
	// none exists.
	Pop(ctx context.Context, sid string) (Notice, bool, error)
}

// MemoryNoticeStore keeps notices in memory.
type MemoryNoticeStore struct {
	mu      sync.Mutex
	notices map[string]Notice
}

// NewMemoryNoticeStore creates an in-memory notice store.
func NewMemoryNoticeStore() *MemoryNoticeStore {
	return &MemoryNoticeStore{notices: make(map[string]Notice)}
}

func (m *MemoryNoticeStore) Put(ctx context.Context, n Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices[n.SID] = n
	return nil
}

func (m *MemoryNoticeStore) Pop(ctx context.Context, sid string) (Notice, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notices[sid]
	if ok {
		delete(m.notices, sid)
	}
	return n, ok, nil
}

const (
	redisNoticePrefix = "sg:notice:"
	noticeTTL         = 7 * 24 * time.Hour
)

// RedisNoticeStore keeps notices in Redis with a bounded TTL, so notices
// for owners who never return do not accumulate.
type RedisNoticeStore struct {
	client *redis.Client
}

// NewRedisNoticeStore creates a Redis-backed notice store.
func NewRedisNoticeStore(client *redis.Client) *RedisNoticeStore {
	if client == nil {
		panic("limiter: redis client cannot be nil")
	}
	return &RedisNoticeStore{client: client}
}

func (r *RedisNoticeStore) Put(ctx context.Context, n Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisNoticePrefix+n.SID, data, noticeTTL).Err()
}

func (r *RedisNoticeStore) Pop(ctx context.Context, sid string) (Notice, bool, error) {
	data, err := r.client.GetDel(ctx, redisNoticePrefix+sid).Bytes()
	if errors.Is(err, redis.Nil) {
		return Notice{}, false, nil
	}
	if err != nil {
		return Notice{}, false, err
	}

	var n Notice
	if err := json.Unmarshal(data, &n); err != nil {
		return Notice{}, false, err
	}
	return n, true, nil
}

// NoticeMiddleware surfaces a pending termination notice to the request
// context. It resolves the session id from the transport even when the
// session itself no longer exists, which is exactly the case after an
// eviction. Notices with SeverityNone are consumed but not surfaced.
func NoticeMiddleware(notices NoticeStore, transport session.Transport, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, err := transport.GetSID(r)
			if err != nil || sid == "" {
				next.ServeHTTP(w, r)
				return
			}

			n, ok, err := notices.Pop(r.Context(), sid)
			if err != nil {
				log.ErrorContext(r.Context(), "failed to load termination notice", "error", err, "sid", sid)
				next.ServeHTTP(w, r)
				return
			}

			if ok && n.Severity != SeverityNone {
				r = r.WithContext(WithNotice(r.Context(), n))
			}
			next.ServeHTTP(w, r)
		})
	}
}
