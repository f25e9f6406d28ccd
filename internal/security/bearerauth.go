package security

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// BearerAuthStage verifies an HS256 bearer token when cfg.BearerAuth is
// enabled and, on success, sets AttrUserID from the token's subject claim so
// the rate-limit stage can scope by user rather than by IP. It never rejects
// a request on its own: a missing or invalid token simply leaves AttrUserID
// unset, the same degrade-to-IP-scope behavior the rate limiter already has
// for anonymous traffic.
func BearerAuthStage(cfg config.SecuritySection) pipeline.Stage {
	return pipeline.Stage{
		ID: "bearer_auth",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !cfg.BearerAuth.Enabled {
				next(nil)
				return
			}

			header := cfg.BearerAuth.HeaderName
			if header == "" {
				header = "Authorization"
			}

			raw := req.Headers.Get(header)
			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok || token == "" {
				next(nil)
				return
			}

			claims := jwt.MapClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(cfg.BearerAuth.Secret), nil
			})
			if err != nil || !parsed.Valid {
				next(nil)
				return
			}

			if sub, err := claims.GetSubject(); err == nil && sub != "" {
				req.SetAttr(AttrUserID, sub)
			}
			next(nil)
		},
	}
}
