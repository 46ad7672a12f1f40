// Package ratelimit provides a keyed fixed-window counter for user-triggered
// classification requests. Counters live in a shared store with TTL expiry so
// every API instance sees the same window.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a keyed counter with TTL-based window expiry.
type Store interface {
	// Incr bumps the counter for key, starting the window on first hit, and
	// returns the new count plus the time left in the window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisStore implements Store on a shared Redis instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr bumps the counter for key.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, window, err
		}
		return count, window, nil
	}
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return count, window, err
	}
	return count, ttl, nil
}

// Limiter rejects callers exceeding limit hits per window, keyed per user.
type Limiter struct {
	store  Store
	prefix string
	limit  int
	window time.Duration
}

// NewLimiter builds a limiter.
func NewLimiter(store Store, prefix string, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{store: store, prefix: prefix, limit: limit, window: window}
}

// Allow records a hit for key and reports whether it fits in the current
// window. When rejected, retryAfter is the time until the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	count, ttl, err := l.store.Incr(ctx, l.prefix+":"+key, l.window)
	if err != nil {
		return false, 0, err
	}
	if count > int64(l.limit) {
		return false, ttl, nil
	}
	return true, 0, nil
}
