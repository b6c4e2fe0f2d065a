package securestore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Prefix namespaces every key so Clear never touches unrelated data.
	Prefix = "mtfr_"

	// SessionTimeout is the fixed maximum age for persisted tokens.
	SessionTimeout = 24 * time.Hour

	tokenKeyPrefix = Prefix + "token:"
)

type storedItem struct {
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// Store persists values wrapped with a write timestamp and enforces expiry
// lazily on read. Staleness is decided by the recorded timestamp, not by the
// backend's native TTL.
type Store struct {
	redis redisCommander
	now   func() time.Time
}

// New creates a store over the given Redis client.
func New(client redisCommander) *Store {
	return &Store{redis: client, now: time.Now}
}

// SetToken persists a session token under the fixed token namespace.
func (s *Store) SetToken(ctx context.Context, id, token string) error {
	return s.write(ctx, tokenKeyPrefix+id, token, SessionTimeout)
}

// GetToken returns the token for id, or ok=false when absent or older than
// SessionTimeout. Stale entries are deleted so a second read is also absent.
func (s *Store) GetToken(ctx context.Context, id string) (string, bool, error) {
	return s.read(ctx, tokenKeyPrefix+id, SessionTimeout)
}

// RemoveToken deletes the token entry for id.
func (s *Store) RemoveToken(ctx context.Context, id string) error {
	return s.redis.Del(ctx, tokenKeyPrefix+id).Err()
}

// SetItem persists an arbitrary value under the namespaced key.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	return s.write(ctx, Prefix+key, value, 0)
}

// GetItem returns the value for key. A maxAge of zero disables expiry;
// otherwise entries older than maxAge are deleted and reported absent.
func (s *Store) GetItem(ctx context.Context, key string, maxAge time.Duration) (string, bool, error) {
	return s.read(ctx, Prefix+key, maxAge)
}

// RemoveItem deletes the entry for key.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	return s.redis.Del(ctx, Prefix+key).Err()
}

// Clear removes every key bearing the namespace prefix.
func (s *Store) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, Prefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.redis.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *Store) write(ctx context.Context, key, value string, ttl time.Duration) error {
	item := storedItem{
		Value:     value,
		Timestamp: s.now().UnixMilli(),
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, string(payload), ttl).Err()
}

// read resolves malformed entries to absent rather than failing: a corrupt
// value must never break an auth flow.
func (s *Store) read(ctx context.Context, key string, maxAge time.Duration) (string, bool, error) {
	raw, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var item storedItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		_ = s.redis.Del(ctx, key).Err()
		return "", false, nil
	}

	if maxAge > 0 {
		age := s.now().UnixMilli() - item.Timestamp
		if age > maxAge.Milliseconds() {
			if err := s.redis.Del(ctx, key).Err(); err != nil {
				return "", false, err
			}
			return "", false, nil
		}
	}

	return item.Value, true, nil
}
