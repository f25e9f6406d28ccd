package security

import (
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/ratelimit"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// AttrUserID is the attribute key the rate limiter's user scope reads to
// derive a per-user bucket. Stages that authenticate a request should set
// it before the rate-limit stage runs.
var AttrUserID = reqres.NewAttrKey("user_id")

// Stack assembles the fixed eleven-stage security pipeline in the order
// compression negotiation, security headers, CORS, bearer-token
// verification, rate limiting, HPP collapse, NoSQL-operator sanitize,
// access logging, slow-down, XSS/SQLi filter, CSRF. Any stage whose
// governing flag is false is still present in the list but becomes a
// no-op pass-through.
func Stack(cfg config.SecuritySection, limiter ratelimit.Limiter, logger observability.Logger, production bool) []pipeline.Stage {
	stages := []pipeline.Stage{
		CompressionStage(cfg),
		HeadersStage(cfg),
		CORSStage(cfg.CORS),
		BearerAuthStage(cfg),
		ratelimit.Stage(limiter, cfg.RateLimit, AttrUserID, logger),
		HPPStage(cfg),
		SanitizeStage(cfg, logger),
		AccessLogStage(cfg, logger),
		SlowDownStage(cfg),
		ThreatFilterStage(cfg, logger),
		CSRFStage(cfg, production, logger),
	}

	if !cfg.Enabled {
		return stages[:0]
	}
	return stages
}
