package cache

import (
	"log/slog"

	"github.com/iruldev/xyprissgo/internal/apperr"
	"github.com/iruldev/xyprissgo/internal/config"
)

// New builds the configured Store. A redis strategy that fails to dial
// degrades to an in-process MemoryStore rather than failing server startup,
// matching the cache-backend-unavailable operational error kind.
func New(cfg config.CacheSection, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Strategy == "redis" {
		store, err := NewRedisStore(cfg.RedisAddr, cfg.TTL, cfg.CompressionThreshold)
		if err != nil {
			degraded := apperr.Wrap("cache.New", apperr.KindCacheBackendDown,
				"CACHE_BACKEND_UNAVAILABLE", "redis cache backend unreachable, degrading to memory", err)
			logger.Warn("cache backend unavailable, degrading to in-process store",
				"error", degraded.Error())
			return NewMemoryStore(cfg)
		}
		return store
	}

	return NewMemoryStore(cfg)
}
