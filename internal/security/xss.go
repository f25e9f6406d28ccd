package security

import (
	"encoding/json"
	"regexp"

	"github.com/iruldev/xyprissgo/internal/apperr"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// threatPatterns matches the common XSS and SQL-injection payload shapes:
// script/iframe/object/embed tags, javascript: URIs, inline event handlers,
// CSS expression() calls, and SQL keywords used in a tautology or
// stacked-query position.
var threatPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)<\s*iframe`),
	regexp.MustCompile(`(?i)<\s*object`),
	regexp.MustCompile(`(?i)<\s*embed`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)expression\s*\(`),
	regexp.MustCompile(`(?i)(\bunion\b\s+\bselect\b)`),
	regexp.MustCompile(`(?i)(\bor\b|\band\b)\s+['"]?\d+['"]?\s*=\s*['"]?\d+['"]?`),
	regexp.MustCompile(`(?i);\s*(drop|delete|insert|update)\s+\b`),
	regexp.MustCompile(`(?i)--\s*$`),
}

// ThreatFilterStage scans query values, route params, and a JSON body for
// XSS/SQL-injection payload shapes. A match rejects the request with 400
// rather than attempting to sanitize, since stripping a payload in place
// can silently change the meaning of otherwise-legitimate input.
func ThreatFilterStage(cfg config.SecuritySection, logger observability.Logger) pipeline.Stage {
	return pipeline.Stage{
		ID: "threat-filter",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !cfg.XSS && !cfg.SQLInjection {
				next(nil)
				return
			}

			var offending []string
			for key, values := range req.Query {
				for _, v := range values {
					if matchesThreat(v) {
						offending = append(offending, "query."+key)
					}
				}
			}
			for key, v := range req.Params {
				if matchesThreat(v) {
					offending = append(offending, "param."+key)
				}
			}
			walkJSONStrings(req.Body, &offending)

			if len(offending) > 0 {
				req.SetAttr(reqres.AttrThreatPaths, offending)
				action := observability.ActionXSSBlock
				if !cfg.XSS && cfg.SQLInjection {
					action = observability.ActionSQLInjectBlock
				}
				observability.LogAudit(logger, observability.AuditEvent{
					Action:   action,
					Resource: req.Path,
					Status:   "failure",
					Metadata: map[string]any{"paths": offending},
				})
				next(apperr.New("security.ThreatFilterStage", apperr.KindBadRequest,
					"UNSAFE_INPUT_DETECTED", "request rejected: unsafe input pattern detected"))
				return
			}

			next(nil)
		},
	}
}

func matchesThreat(s string) bool {
	for _, p := range threatPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// walkJSONStrings scans a JSON body's string leaves without requiring the
// body to already be parsed, since this stage may run before or without
// SanitizeStage having parsed it. It tolerates non-JSON/non-object bodies.
func walkJSONStrings(body []byte, offending *[]string) bool {
	if len(body) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return false
	}
	found := false
	walkAny("body", v, func(path, s string) {
		if matchesThreat(s) {
			*offending = append(*offending, path)
			found = true
		}
	})
	return found
}

func walkAny(path string, v any, visit func(path, s string)) {
	switch val := v.(type) {
	case string:
		visit(path, val)
	case map[string]any:
		for k, child := range val {
			walkAny(path+"."+k, child, visit)
		}
	case []any:
		for _, child := range val {
			walkAny(path+"[]", child, visit)
		}
	}
}
