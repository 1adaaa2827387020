package session

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "sg:session:"
	redisUserPrefix    = "sg:user:"
)

// RedisStore implements Store on Redis. Each session is a JSON value with
// a TTL matching its expiry; a per-user set indexes the session ids so
// counting stays a set operation. Index entries whose session key has
// already expired are pruned lazily on read.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	return &RedisStore{client: client}
}

func sessionKey(sid string) string { return redisSessionPrefix + sid }

func userKey(userID uuid.UUID) string { return redisUserPrefix + userID.String() }

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	if s == nil || s.SID == "" {
		return ErrInvalidSession
	}

	data, err := json.Marshal(s)
	if err != nil {
		return errors.Join(ErrInvalidSession, err)
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(s.SID), data, ttl)
	pipe.SAdd(ctx, userKey(s.UserID), s.SID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Get(ctx context.Context, sid string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Join(ErrInvalidSession, err)
	}
	return &s, nil
}

func (r *RedisStore) CountActive(ctx context.Context, userID uuid.UUID, excludeSIDs ...string) (int, error) {
	live, err := r.liveSIDs(ctx, userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, sid := range live {
		if !slices.Contains(excludeSIDs, sid) {
			count++
		}
	}
	return count, nil
}

func (r *RedisStore) ListActive(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	live, err := r.liveSIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []Session
	for _, sid := range live {
		s, err := r.Get(ctx, sid)
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}

	sortOldestFirst(out)
	return out, nil
}

func (r *RedisStore) Touch(ctx context.Context, sid string, at time.Time) error {
	return r.update(ctx, sid, func(s *Session) {
		s.LastSeenAt = at
	})
}

func (r *RedisStore) SetFlags(ctx context.Context, sid string, checkedOnce, verified bool) error {
	return r.update(ctx, sid, func(s *Session) {
		s.CheckedOnce = checkedOnce
		s.Verified = verified
	})
}

func (r *RedisStore) Delete(ctx context.Context, sid string) error {
	s, err := r.Get(ctx, sid)
	if errors.Is(err, ErrSessionNotFound) {
		// Already gone; racing evictions are idempotent.
		return nil
	}
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sid))
	pipe.SRem(ctx, userKey(s.UserID), sid)
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteExpired is a no-op: Redis TTLs expire session values and stale
// index entries are pruned on read.
func (r *RedisStore) DeleteExpired(ctx context.Context) error {
	return nil
}

// liveSIDs returns the user's indexed session ids whose session values
// still exist, pruning stale index entries as a side effect.
func (r *RedisStore) liveSIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	sids, err := r.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(sids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	checks := make([]*redis.IntCmd, len(sids))
	for i, sid := range sids {
		checks[i] = pipe.Exists(ctx, sessionKey(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	var live, stale []string
	for i, sid := range sids {
		if checks[i].Val() > 0 {
			live = append(live, sid)
		} else {
			stale = append(stale, sid)
		}
	}

	if len(stale) > 0 {
		_ = r.client.SRem(ctx, userKey(userID), stale).Err()
	}

	return live, nil
}

func (r *RedisStore) update(ctx context.Context, sid string, mutate func(*Session)) error {
	s, err := r.Get(ctx, sid)
	if err != nil {
		return err
	}

	mutate(s)

	data, err := json.Marshal(s)
	if err != nil {
		return errors.Join(ErrInvalidSession, err)
	}

	return r.client.Set(ctx, sessionKey(sid), data, redis.KeepTTL).Err()
}
