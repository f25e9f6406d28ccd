package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/iruldev/xyprissgo/internal/observability"
)

// bucket mirrors the RateBucket shape: a fixed window that resets once
// windowStart+windowMs has elapsed.
type bucket struct {
	windowStart time.Time
	count       int
	limit       int
	windowMs    int
}

// MemoryStore is the default in-process Limiter: one map of buckets guarded
// by a single mutex, since rate-limit decisions are cheap read-modify-write
// operations that don't warrant per-bucket locks.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewMemoryStore builds an empty in-process limiter.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket)}
}

// Allow increments the bucket for scope+key, resetting it if its window has
// elapsed, and reports whether the post-increment count is within limit.
func (s *MemoryStore) Allow(_ context.Context, scope Scope, key string, limit int, windowMs int) (Decision, error) {
	now := time.Now()
	bk := bucketKey(scope, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bk]
	if !ok || now.Sub(b.windowStart) >= time.Duration(b.windowMs)*time.Millisecond {
		b = &bucket{windowStart: now, limit: limit, windowMs: windowMs}
		s.buckets[bk] = b
	}

	b.count++
	resetAt := b.windowStart.Add(time.Duration(b.windowMs) * time.Millisecond)

	decision := Decision{
		Limit:     limit,
		Remaining: limit - b.count,
		ResetAt:   resetAt,
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}

	if b.count > limit {
		decision.Allowed = false
		decision.RetryAfterSecs = int(math.Ceil(resetAt.Sub(now).Seconds()))
		if decision.RetryAfterSecs < 0 {
			decision.RetryAfterSecs = 0
		}
		observability.RateLimitRejectsTotal.WithLabelValues(string(scope)).Inc()
		return decision, nil
	}

	decision.Allowed = true
	observability.RateLimitAllowsTotal.WithLabelValues(string(scope)).Inc()
	return decision, nil
}

// BucketEntry is a point-in-time snapshot of one rate-limit bucket, exposed
// read-only for introspection endpoints.
type BucketEntry struct {
	Key     string
	Count   int
	Limit   int
	ResetAt time.Time
}

// BucketCounts snapshots every live bucket. Buckets past their window are
// still reported until the next Allow call for that key resets them.
func (s *MemoryStore) BucketCounts() []BucketEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]BucketEntry, 0, len(s.buckets))
	for key, b := range s.buckets {
		out = append(out, BucketEntry{
			Key:     key,
			Count:   b.count,
			Limit:   b.limit,
			ResetAt: b.windowStart.Add(time.Duration(b.windowMs) * time.Millisecond),
		})
	}
	return out
}
