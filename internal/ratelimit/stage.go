package ratelimit

import (
	"strconv"
	"strings"

	"github.com/iruldev/xyprissgo/internal/apperr"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// Stage returns a pipeline stage that evaluates global and per-IP scopes
// (and a per-user scope when reqres.AttrKey userID is present on the
// request) against the configured limit, rejecting with 429 on the first
// scope that is exceeded. Exempt paths bypass evaluation entirely. A nil
// logger is fine — the audit entry on rejection is then skipped.
func Stage(limiter Limiter, cfg config.RateLimitSection, userIDAttr reqres.AttrKey, logger observability.Logger) pipeline.Stage {
	exempt := make(map[string]bool, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = true
	}

	return pipeline.Stage{
		ID: "rate-limit",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if exempt[req.Path] {
				next(nil)
				return
			}

			scopes := []struct {
				scope Scope
				key   string
			}{
				{ScopeGlobal, ""},
				{ScopeIP, clientIP(req)},
			}
			if uid, ok := req.Attr(userIDAttr); ok {
				if s, ok := uid.(string); ok && s != "" {
					scopes = append(scopes, struct {
						scope Scope
						key   string
					}{ScopeUser, s})
				}
			}

			for _, sc := range scopes {
				decision, err := limiter.Allow(req.Context(), sc.scope, sc.key, cfg.Max, cfg.WindowMS)
				if err != nil {
					next(nil)
					return
				}

				if cfg.HeadersOn {
					_ = resp.SetHeader("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
					_ = resp.SetHeader("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
					_ = resp.SetHeader("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
				}

				if !decision.Allowed {
					observability.LogAudit(logger, observability.AuditEvent{
						Action:   observability.ActionRateLimitReject,
						Resource: req.Path,
						ActorID:  sc.key,
						Status:   "failure",
						Metadata: map[string]any{"scope": string(sc.scope)},
					})
					next(apperr.New("ratelimit.Stage", apperr.KindTooManyRequests,
						"RATE_LIMIT_EXCEEDED", "rate limit exceeded for "+string(sc.scope)).
						WithRetryAfter(decision.RetryAfterSecs))
					return
				}
			}

			next(nil)
		},
	}
}

// clientIP extracts the request's remote address without its port, since
// RemoteAddr is host:port.
func clientIP(req *reqres.Request) string {
	addr := req.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
