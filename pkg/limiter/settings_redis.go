package limiter

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const redisSettingsKey = "sg:settings"

// RedisSettingsStore persists settings as a Redis hash keyed by the
// canonical settings key names, so they can be inspected and edited with
// standard tooling.
type RedisSettingsStore struct {
	client   *redis.Client
	defaults Settings
}

// NewRedisSettingsStore creates a Redis-backed settings store. Fields
// absent from the hash fall back to defaults.
func NewRedisSettingsStore(client *redis.Client, defaults Settings) *RedisSettingsStore {
	if client == nil {
		panic("limiter: redis client cannot be nil")
	}
	return &RedisSettingsStore{client: client, defaults: defaults}
}

func (r *RedisSettingsStore) Load(ctx context.Context) (Settings, error) {
	fields, err := r.client.HGetAll(ctx, redisSettingsKey).Result()
	if err != nil {
		return Settings{}, err
	}

	s := r.defaults
	if v, ok := fields[KeyMax]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.Max = n
		}
	}
	if v, ok := fields[KeyIncludeRootUser]; ok {
		s.IncludeRootUser = v == "1"
	}
	if v, ok := fields[KeyBehaviour]; ok {
		s.Mode = Mode(v)
	}
	if v, ok := fields[KeyMasqueradeIgnore]; ok {
		s.MasqueradeIgnore = v == "1"
	}
	if v, ok := fields[KeyLimitHitMessage]; ok {
		s.LimitHitMessage = v
	}
	if v, ok := fields[KeyLoggedOutMessage]; ok {
		s.LoggedOutMessage = v
	}
	if v, ok := fields[KeyLoggedOutMessageSeverity]; ok {
		s.LoggedOutMessageSeverity = Severity(v)
	}

	return s, nil
}

func (r *RedisSettingsStore) Save(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	return r.client.HSet(ctx, redisSettingsKey, map[string]any{
		KeyMax:                      strconv.Itoa(s.Max),
		KeyIncludeRootUser:          boolField(s.IncludeRootUser),
		KeyBehaviour:                string(s.Mode),
		KeyMasqueradeIgnore:         boolField(s.MasqueradeIgnore),
		KeyLimitHitMessage:          s.LimitHitMessage,
		KeyLoggedOutMessage:         s.LoggedOutMessage,
		KeyLoggedOutMessageSeverity: string(s.LoggedOutMessageSeverity),
	}).Err()
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
