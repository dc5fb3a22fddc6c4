package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis using a redis:// URL. Returns nil
// when the server is unreachable; callers degrade by disabling caching
// and rate limiting.
func NewRedisClient(redisURL string) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}

	return client
}

// Store is a JSON get/set/delete wrapper over Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore constructs a Store. A nil client produces a disabled store
// whose operations are no-ops.
func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Enabled reports whether the store is backed by a live connection.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// Get unmarshals the cached value into dest. The bool result is false
// on miss or when the store is disabled.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	raw, err := s.client.Get(ctx, s.prefix+":"+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set marshals value as JSON under the key with a TTL.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+":"+key, raw, ttl).Err()
}

// Delete removes a cached key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Del(ctx, s.prefix+":"+key).Err()
}
