package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iruldev/xyprissgo/internal/config"
)

// New builds the configured Limiter. It reuses cache.CacheSection's redis
// strategy/address rather than introducing a second backend choice: a
// deployment that shares one Redis for caching also shares it for rate
// limiting. Dial failures degrade to an in-process MemoryStore, mirroring
// cache.New's degrade-on-dial-failure behavior.
func New(cfg config.CacheSection) Limiter {
	fallback := NewMemoryStore()
	if cfg.Strategy != "redis" || cfg.RedisAddr == "" {
		return fallback
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fallback
	}

	return NewRedisStore(client, fallback)
}
