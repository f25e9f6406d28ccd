package adminhttp

import (
	"github.com/iruldev/xyprissgo/internal/cache"
	"github.com/iruldev/xyprissgo/internal/httpserver"
	"github.com/iruldev/xyprissgo/internal/router"
)

// CacheStatsResponse is the body of GET /__admin/cache. Available is false
// when the configured Store backend doesn't expose stats (e.g. RedisStore).
type CacheStatsResponse struct {
	Available bool        `json:"available"`
	Stats     cache.Stats `json:"stats,omitempty"`
}

// CacheStats reports the response cache's current size and hit rate.
func (h *Handler) CacheStats(ctx *router.Context) {
	statter, ok := h.Cache.(cacheStatter)
	if !ok {
		_ = httpserver.WriteJSON(ctx.Response, 200, CacheStatsResponse{Available: false})
		return
	}

	_ = httpserver.WriteJSON(ctx.Response, 200, CacheStatsResponse{Available: true, Stats: statter.Stats()})
}
