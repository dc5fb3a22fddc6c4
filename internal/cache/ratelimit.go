package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter: INCR the window key and set
// EXPIRE on the first increment.
type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRateLimiter constructs a limiter allowing limit requests per window.
func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, limit: int64(limit), window: window}
}

// Allow increments the counter for key and reports whether the request
// fits in the current window. Errors are returned so the caller can
// decide to fail open.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil {
		return true, nil
	}

	fullKey := r.prefix + ":" + key
	count, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, fullKey, r.window).Err(); err != nil {
			return true, err
		}
	}
	return count <= r.limit, nil
}
