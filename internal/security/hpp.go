package security

import (
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// HPPStage collapses HTTP Parameter Pollution: duplicate query keys are
// reduced to their last value, except keys in the configured whitelist
// which are left as repeated values (the caller's handler is expected to
// read those as arrays).
func HPPStage(cfg config.SecuritySection) pipeline.Stage {
	whitelist := make(map[string]bool, len(cfg.HPPWhitelist))
	for _, k := range cfg.HPPWhitelist {
		whitelist[k] = true
	}

	return pipeline.Stage{
		ID: "hpp",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !cfg.HPP {
				next(nil)
				return
			}

			for key, values := range req.Query {
				if whitelist[key] || len(values) <= 1 {
					continue
				}
				req.Query[key] = values[len(values)-1:]
			}

			next(nil)
		},
	}
}
