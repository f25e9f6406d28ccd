package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iruldev/xyprissgo/internal/observability"
)

// RedisStore is the remote-backed tier used when cache.strategy=redis, for
// sharing cached responses across worker processes. It implements the same
// Store contract as MemoryStore but keeps tag indexes in Redis sets and a
// per-entry hit counter in a Redis hash rather than in-process maps. It
// tracks no access patterns: PredictNextAccess returns nil and WarmCache
// does nothing.
type RedisStore struct {
	rdb        *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
	compressAt int
}

type redisPayload struct {
	Value      []byte              `json:"value"`
	Headers    map[string][]string `json:"headers"`
	Status     int                 `json:"status"`
	CreatedAt  time.Time           `json:"createdAt"`
	Priority   int                 `json:"priority"`
	Compressed bool                `json:"compressed"`
	Tags       []string            `json:"tags"`
}

// NewRedisStore dials addr and returns a RedisStore, failing fast so callers
// can degrade to an in-process MemoryStore on cache-backend-unavailable.
func NewRedisStore(addr string, defaultTTL time.Duration, compressAt int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis backend unavailable at %s: %w", addr, err)
	}

	return &RedisStore{rdb: rdb, keyPrefix: "xyprissgo:cache:", defaultTTL: defaultTTL, compressAt: compressAt}, nil
}

func (s *RedisStore) key(fingerprint string) string {
	return s.keyPrefix + fingerprint
}

func (s *RedisStore) tagKey(tag string) string {
	return s.keyPrefix + "tag:" + tag
}

// Get fetches and decodes the entry for fingerprint, recording a hit/miss
// metric to match MemoryStore's behavior.
func (s *RedisStore) Get(fingerprint string) (*Entry, bool) {
	ctx := context.Background()
	raw, err := s.rdb.Get(ctx, s.key(fingerprint)).Bytes()
	if err != nil {
		observability.CacheMissesTotal.Inc()
		return nil, false
	}

	var p redisPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		observability.CacheMissesTotal.Inc()
		return nil, false
	}

	observability.CacheHitsTotal.Inc()
	s.rdb.HIncrBy(ctx, s.key(fingerprint)+":hits", "n", 1)

	return &Entry{
		Fingerprint: fingerprint,
		Value:       p.Value,
		Headers:     p.Headers,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		Priority:    p.Priority,
		Compressed:  p.Compressed,
		Tags:        p.Tags,
		SizeBytes:   len(p.Value),
	}, true
}

// Set encodes value into Redis with a TTL matching the configured default
// or opts.TTL, registering the key under each tag's index set.
func (s *RedisStore) Set(fingerprint string, value []byte, headers map[string][]string, status int, opts SetOptions) error {
	ctx := context.Background()

	stored, compressed, err := maybeCompress(value, s.compressAt)
	if err != nil {
		stored, compressed = value, false
	}

	p := redisPayload{
		Value:      stored,
		Headers:    headers,
		Status:     status,
		CreatedAt:  time.Now(),
		Priority:   opts.Priority,
		Compressed: compressed,
		Tags:       opts.Tags,
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if err := s.rdb.Set(ctx, s.key(fingerprint), raw, ttl).Err(); err != nil {
		return err
	}

	for _, tag := range opts.Tags {
		s.rdb.SAdd(ctx, s.tagKey(tag), fingerprint)
	}
	observability.CacheEntriesGauge.Set(float64(s.rdb.DBSize(ctx).Val()))
	return nil
}

// Delete removes one entry.
func (s *RedisStore) Delete(fingerprint string) bool {
	ctx := context.Background()
	n, err := s.rdb.Del(ctx, s.key(fingerprint)).Result()
	return err == nil && n > 0
}

// Clear flushes the active database. Intended for tests and single-tenant
// deployments; a shared Redis instance should scope this differently.
func (s *RedisStore) Clear() {
	_ = s.rdb.FlushDB(context.Background()).Err()
}

// InvalidateByTag deletes every fingerprint registered under tag.
func (s *RedisStore) InvalidateByTag(tag string) {
	ctx := context.Background()
	members, err := s.rdb.SMembers(ctx, s.tagKey(tag)).Result()
	if err != nil {
		return
	}
	for _, fp := range members {
		s.rdb.Del(ctx, s.key(fp))
	}
	s.rdb.Del(ctx, s.tagKey(tag))
}

// PredictNextAccess is not implemented for the Redis tier: predictive
// prefetch relies on in-process access-pattern tracking that a shared,
// multi-worker backend cannot attribute to one process's traffic without a
// separate aggregation pipeline, which is out of scope.
func (s *RedisStore) PredictNextAccess(n int) []string { return nil }

// WarmCache is a no-op for the Redis tier for the same reason as
// PredictNextAccess.
func (s *RedisStore) WarmCache(ctx context.Context, loader func(ctx context.Context, key string) ([]byte, error)) {
}

// Close closes the underlying Redis client connection.
func (s *RedisStore) Close() {
	_ = s.rdb.Close()
}
