package adminhttp

import (
	"github.com/iruldev/xyprissgo/internal/httpserver"
	"github.com/iruldev/xyprissgo/internal/ratelimit"
	"github.com/iruldev/xyprissgo/internal/router"
)

// RateLimitStatsResponse is the body of GET /__admin/ratelimit. Available is
// false when the configured Limiter backend doesn't expose bucket counts
// (e.g. the Redis-backed limiter).
type RateLimitStatsResponse struct {
	Available bool                    `json:"available"`
	Buckets   []ratelimit.BucketEntry `json:"buckets,omitempty"`
}

// RateLimitStats reports every live rate-limit bucket across all scopes.
func (h *Handler) RateLimitStats(ctx *router.Context) {
	counter, ok := h.Limiter.(bucketCounter)
	if !ok {
		_ = httpserver.WriteJSON(ctx.Response, 200, RateLimitStatsResponse{Available: false})
		return
	}

	_ = httpserver.WriteJSON(ctx.Response, 200, RateLimitStatsResponse{Available: true, Buckets: counter.BucketCounts()})
}
