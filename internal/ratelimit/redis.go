package ratelimit

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iruldev/xyprissgo/internal/observability"
)

// luaSlidingWindowScript atomically increments a counter and applies its
// window TTL on first increment, returning the post-increment count.
// KEYS[1] = bucket key, ARGV[1] = window milliseconds.
const luaSlidingWindowScript = `
local current = redis.call('INCR', KEYS[1])
if current == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {current, ttl}
`

// circuitBreaker trips after threshold consecutive Redis failures and
// recovers after recoveryTime, matching the teacher's infra/redis
// ratelimiter's failure-isolation idiom.
type circuitBreaker struct {
	mu           sync.Mutex
	failures     int
	threshold    int
	lastFailure  time.Time
	recoveryTime time.Duration
}

func newCircuitBreaker(threshold int, recoveryTime time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, recoveryTime: recoveryTime}
}

func (cb *circuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.failures >= cb.threshold {
		if time.Since(cb.lastFailure) > cb.recoveryTime {
			cb.failures = 0
			return false
		}
		return true
	}
	return false
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = time.Now()
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
}

// RedisStore is the remote-backed Limiter used for multi-process
// deployments, sharing buckets across worker processes via a Lua script for
// atomic increment+expire. It falls back to an in-process MemoryStore when
// the circuit breaker trips on repeated Redis failures.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
	fallback  *MemoryStore
	circuit   *circuitBreaker

	scriptMu  sync.Mutex
	scriptSHA string
}

// NewRedisStore wraps an existing go-redis client. fallback is used while
// the circuit breaker is open; pass nil to fail open instead.
func NewRedisStore(client *redis.Client, fallback *MemoryStore) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: "xyprissgo:ratelimit:",
		timeout:   100 * time.Millisecond,
		fallback:  fallback,
		circuit:   newCircuitBreaker(5, 30*time.Second),
	}
}

// Allow increments the shared bucket via the Lua script, falling back to
// the in-process store (or fail-open) when Redis is unreachable.
func (r *RedisStore) Allow(ctx context.Context, scope Scope, key string, limit int, windowMs int) (Decision, error) {
	if r.circuit.isOpen() {
		return r.fallbackAllow(ctx, scope, key, limit, windowMs)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	redisKey := r.keyPrefix + bucketKey(scope, key)
	sha, err := r.ensureScript(ctx)
	if err != nil {
		return r.handleFailure(ctx, scope, key, limit, windowMs)
	}

	res, err := r.client.EvalSha(ctx, sha, []string{redisKey}, windowMs).Result()
	if err != nil && isNoScriptError(err) {
		r.scriptMu.Lock()
		r.scriptSHA = ""
		r.scriptMu.Unlock()
		res, err = r.client.Eval(ctx, luaSlidingWindowScript, []string{redisKey}, windowMs).Result()
	}
	if err != nil {
		return r.handleFailure(ctx, scope, key, limit, windowMs)
	}

	r.circuit.recordSuccess()
	return decisionFromScriptResult(res, scope, limit)
}

func decisionFromScriptResult(res any, scope Scope, limit int) (Decision, error) {
	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return Decision{Allowed: true, Limit: limit}, nil
	}
	count := toInt64(vals[0])
	ttlMs := toInt64(vals[1])

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	resetAt := time.Now().Add(time.Duration(ttlMs) * time.Millisecond)

	decision := Decision{
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		Allowed:   count <= int64(limit),
	}
	if !decision.Allowed {
		decision.RetryAfterSecs = int(math.Ceil(float64(ttlMs) / 1000))
		observability.RateLimitRejectsTotal.WithLabelValues(string(scope)).Inc()
	} else {
		observability.RateLimitAllowsTotal.WithLabelValues(string(scope)).Inc()
	}
	return decision, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	default:
		return 0
	}
}

func (r *RedisStore) handleFailure(ctx context.Context, scope Scope, key string, limit int, windowMs int) (Decision, error) {
	r.circuit.recordFailure()
	return r.fallbackAllow(ctx, scope, key, limit, windowMs)
}

func (r *RedisStore) fallbackAllow(ctx context.Context, scope Scope, key string, limit int, windowMs int) (Decision, error) {
	if r.fallback != nil {
		return r.fallback.Allow(ctx, scope, key, limit, windowMs)
	}
	return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
}

func (r *RedisStore) ensureScript(ctx context.Context) (string, error) {
	r.scriptMu.Lock()
	defer r.scriptMu.Unlock()
	if r.scriptSHA != "" {
		return r.scriptSHA, nil
	}
	sha, err := r.client.ScriptLoad(ctx, luaSlidingWindowScript).Result()
	if err != nil {
		return "", err
	}
	r.scriptSHA = sha
	return sha, nil
}

func isNoScriptError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT")
}
