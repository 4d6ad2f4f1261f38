package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore is a Store backed by a Redis hash per session. All reads and
// writes go through an in-memory view loaded once per request; Save flushes
// the view back in a single transaction.
type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	id        string
	values    map[string]string
	dirty     bool
	destroyed bool
}

// LoadRedisStore loads the session identified by id, or starts a fresh one
// when id is empty or names no live session. Presenting an unknown
// identifier never adopts it: the store always picks its own fresh ID,
// so attacker-chosen identifiers cannot be planted.
func LoadRedisStore(ctx context.Context, client *redis.Client, id string, ttl time.Duration) (*RedisStore, error) {
	s := &RedisStore{
		client: client,
		ttl:    ttl,
		values: make(map[string]string),
	}

	if id == "" {
		s.id = uuid.NewString()
		return s, nil
	}

	values, err := client.HGetAll(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if len(values) == 0 {
		s.id = uuid.NewString()
		return s, nil
	}

	s.id = id
	s.values = values
	return s, nil
}

func (s *RedisStore) ID() string {
	return s.id
}

func (s *RedisStore) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *RedisStore) Set(key, value string) {
	if s.destroyed {
		return
	}
	s.values[key] = value
	s.dirty = true
}

func (s *RedisStore) Unset(key string) {
	if s.destroyed {
		return
	}
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// RegenerateID discards the stored entry for the old identifier and
// assigns a fresh one. Field values survive in memory until Save.
func (s *RedisStore) RegenerateID(ctx context.Context) error {
	if s.destroyed {
		return fmt.Errorf("session already destroyed")
	}
	if err := s.client.Del(ctx, redisKeyPrefix+s.id).Err(); err != nil {
		return fmt.Errorf("failed to discard old session id: %w", err)
	}
	s.id = uuid.NewString()
	s.dirty = true
	return nil
}

// Destroy removes the session from Redis and empties the in-memory view.
// Subsequent writes are ignored.
func (s *RedisStore) Destroy(ctx context.Context) error {
	if err := s.client.Del(ctx, redisKeyPrefix+s.id).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	s.values = make(map[string]string)
	s.destroyed = true
	return nil
}

// Save persists pending writes and refreshes the TTL. Destroyed sessions
// have nothing to save.
func (s *RedisStore) Save(ctx context.Context) error {
	if s.destroyed {
		return nil
	}

	key := redisKeyPrefix + s.id

	if !s.dirty {
		// Sliding expiry: an untouched session still counts as activity.
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to refresh session expiry: %w", err)
		}
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(s.values) > 0 {
		pipe.HSet(ctx, key, s.values)
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.dirty = false
	return nil
}
