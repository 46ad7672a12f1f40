package ratelimit

import (
	"context"
	"testing"
	"time"
)

// memoryStore is a single-window in-memory Store for tests.
type memoryStore struct {
	counts map[string]int64
	ttl    time.Duration
}

func newMemoryStore(ttl time.Duration) *memoryStore {
	return &memoryStore{counts: map[string]int64{}, ttl: ttl}
}

func (s *memoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.counts[key]++
	if s.counts[key] == 1 {
		return 1, window, nil
	}
	return s.counts[key], s.ttl, nil
}

func (s *memoryStore) reset() {
	s.counts = map[string]int64{}
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	store := newMemoryStore(30 * time.Second)
	limiter := NewLimiter(store, "classify", 10, time.Minute)

	for i := 0; i < 10; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d rejected below limit", i+1)
		}
	}

	allowed, retryAfter, err := limiter.Allow(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatal("11th request allowed")
	}
	if retryAfter != 30*time.Second {
		t.Errorf("retryAfter = %v, want 30s", retryAfter)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	store := newMemoryStore(time.Second)
	limiter := NewLimiter(store, "classify", 1, time.Minute)

	if allowed, _, _ := limiter.Allow(context.Background(), "user-1"); !allowed {
		t.Fatal("first request for user-1 rejected")
	}
	if allowed, _, _ := limiter.Allow(context.Background(), "user-1"); allowed {
		t.Fatal("second request for user-1 allowed")
	}
	if allowed, _, _ := limiter.Allow(context.Background(), "user-2"); !allowed {
		t.Fatal("user-2 affected by user-1's counter")
	}
}

func TestLimiterFreshWindowAdmits(t *testing.T) {
	store := newMemoryStore(time.Second)
	limiter := NewLimiter(store, "classify", 1, time.Minute)

	_, _, _ = limiter.Allow(context.Background(), "user-1")
	if allowed, _, _ := limiter.Allow(context.Background(), "user-1"); allowed {
		t.Fatal("over-limit request allowed")
	}

	store.reset()
	if allowed, _, _ := limiter.Allow(context.Background(), "user-1"); !allowed {
		t.Fatal("request rejected after window reset")
	}
}
