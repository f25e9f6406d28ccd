package security

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

var mongoOperatorKey = regexp.MustCompile(`^\$`)

// SanitizeStage neutralizes NoSQL-injection-style keys (MongoDB query
// operators and dotted paths) in the query string and JSON body by
// replacing the offending character with `_`.
func SanitizeStage(cfg config.SecuritySection, logger observability.Logger) pipeline.Stage {
	return pipeline.Stage{
		ID: "mongo-sanitize",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !cfg.MongoSanitize {
				next(nil)
				return
			}

			warned := sanitizeQuery(req.Query)
			if sanitizeBody(req) {
				warned = true
			}
			if warned && logger != nil {
				logger.Warn("sanitized unsafe NoSQL operator key",
					observability.String("path", req.Path))
			}

			next(nil)
		},
	}
}

func sanitizeKey(key string) (string, bool) {
	if !mongoOperatorKey.MatchString(key) && !strings.Contains(key, ".") {
		return key, false
	}
	safe := mongoOperatorKey.ReplaceAllString(key, "_")
	safe = strings.ReplaceAll(safe, ".", "_")
	return safe, true
}

func sanitizeQuery(query map[string][]string) bool {
	warned := false
	for key, values := range query {
		if safe, changed := sanitizeKey(key); changed {
			delete(query, key)
			query[safe] = values
			warned = true
		}
	}
	return warned
}

// sanitizeBody walks a JSON object body in place, rewriting it onto
// req.Body. Non-object bodies (arrays, scalars, non-JSON) are left alone.
func sanitizeBody(req *reqres.Request) bool {
	if len(req.Body) == 0 {
		return false
	}
	var obj map[string]any
	if err := json.Unmarshal(req.Body, &obj); err != nil {
		return false
	}

	warned := sanitizeMap(obj)
	if !warned {
		return false
	}

	if rewritten, err := json.Marshal(obj); err == nil {
		req.Body = rewritten
	}
	return true
}

func sanitizeMap(m map[string]any) bool {
	warned := false
	for key, value := range m {
		if safe, changed := sanitizeKey(key); changed {
			delete(m, key)
			m[safe] = value
			key = safe
			warned = true
		}
		switch v := m[key].(type) {
		case map[string]any:
			if sanitizeMap(v) {
				warned = true
			}
		case []any:
			if sanitizeSlice(v) {
				warned = true
			}
		}
	}
	return warned
}

func sanitizeSlice(items []any) bool {
	warned := false
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			if sanitizeMap(v) {
				warned = true
			}
		case []any:
			if sanitizeSlice(v) {
				warned = true
			}
		}
	}
	return warned
}
