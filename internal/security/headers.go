package security

import (
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// HeadersStage sets the fixed set of hardening headers modeled on the
// helmet middleware family: content-type sniffing, frame embedding,
// transport security, referrer leakage, and a configurable CSP.
func HeadersStage(cfg config.SecuritySection) pipeline.Stage {
	return pipeline.Stage{
		ID: "security-headers",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !cfg.Helmet {
				next(nil)
				return
			}

			_ = resp.SetHeader("X-Content-Type-Options", "nosniff")
			_ = resp.SetHeader("X-Frame-Options", "DENY")
			_ = resp.SetHeader("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			_ = resp.SetHeader("Referrer-Policy", "no-referrer")
			_ = resp.SetHeader("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
			if cfg.CSP != "" {
				_ = resp.SetHeader("Content-Security-Policy", cfg.CSP)
			}

			next(nil)
		},
	}
}
