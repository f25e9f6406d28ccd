package security

import (
	"strconv"
	"strings"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// CORSStage implements §4.4.1's preflight and simple-request contract.
// Every multi-valued header (methods, allowed headers) is explicitly
// joined into a single comma-separated string before assignment — relying
// on a container's default stringification would violate the "header
// values are always strings" invariant.
func CORSStage(cfg config.CORSSection) pipeline.Stage {
	allowAll := len(cfg.Origin) == 0
	originSet := make(map[string]bool, len(cfg.Origin))
	for _, o := range cfg.Origin {
		originSet[o] = true
	}

	methods := make([]string, len(cfg.Methods))
	for i, m := range cfg.Methods {
		methods[i] = strings.ToUpper(m)
	}
	methodsHeader := strings.Join(methods, ", ")
	headersHeader := strings.Join(cfg.AllowedHeaders, ", ")

	return pipeline.Stage{
		ID: "cors",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !cfg.Enabled {
				next(nil)
				return
			}

			origin := req.Headers.Get("Origin")
			allowedOrigin := resolveOrigin(origin, allowAll, originSet, cfg.Credentials)

			if req.Method == "OPTIONS" && req.Headers.Get("Access-Control-Request-Method") != "" {
				if allowedOrigin != "" {
					_ = resp.SetHeader("Access-Control-Allow-Origin", allowedOrigin)
				}
				_ = resp.SetHeader("Access-Control-Allow-Methods", methodsHeader)
				_ = resp.SetHeader("Access-Control-Allow-Headers", headersHeader)
				if cfg.Credentials {
					_ = resp.SetHeader("Access-Control-Allow-Credentials", "true")
				}
				_ = resp.SetHeader("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				_ = resp.WriteStatus(204)
				return
			}

			if allowedOrigin != "" {
				_ = resp.SetHeader("Access-Control-Allow-Origin", allowedOrigin)
				if cfg.Credentials {
					_ = resp.SetHeader("Access-Control-Allow-Credentials", "true")
				}
			}

			next(nil)
		},
	}
}

// resolveOrigin implements the §4.4.1 origin decision: reflect the request
// origin when it's in the allowlist, "*" when no allowlist is configured
// and credentials are disabled, the request origin when no allowlist is
// configured and credentials are enabled, or deny (empty) otherwise.
func resolveOrigin(origin string, allowAll bool, originSet map[string]bool, credentials bool) string {
	if allowAll {
		if credentials {
			if origin == "" {
				return ""
			}
			return origin
		}
		return "*"
	}
	if origin != "" && originSet[origin] {
		return origin
	}
	return ""
}
