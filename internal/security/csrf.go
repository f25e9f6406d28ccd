package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/iruldev/xyprissgo/internal/apperr"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

const csrfCookieName = "__Host-csrf-token"
const csrfHeaderName = "X-CSRF-Token"
const csrfBodyField = "_csrf"
const csrfTokenBytes = 32

var unsafeMethods = map[string]bool{
	"POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

// CSRFStage implements the double-submit cookie pattern. The token is
// minted exclusively by the token-exchange endpoint (MintCSRFToken, wired
// under GET /__csrf/token); this stage only verifies unsafe-method
// requests against the cookie already issued and rotates the token on a
// successful check. Safe methods pass through untouched.
func CSRFStage(cfg config.SecuritySection, production bool, logger observability.Logger) pipeline.Stage {
	return pipeline.Stage{
		ID: "csrf",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !cfg.CSRF {
				next(nil)
				return
			}

			if !unsafeMethods[req.Method] {
				if cookie, ok := findCookie(req.Raw, csrfCookieName); ok {
					req.SetAttr(reqres.AttrCSRFToken, cookie)
				}
				next(nil)
				return
			}

			cookie, hasCookie := findCookie(req.Raw, csrfCookieName)
			submitted := req.Headers.Get(csrfHeaderName)
			if submitted == "" {
				submitted = bodyField(req, csrfBodyField)
			}

			if !hasCookie || submitted == "" || !tokensMatch(cookie, submitted) {
				observability.LogAudit(logger, observability.AuditEvent{
					Action:   observability.ActionCSRFReject,
					Resource: req.Path,
					Status:   "failure",
					Error:    "missing or mismatched CSRF token",
				})
				next(apperr.New("security.CSRFStage", apperr.KindForbidden,
					"CSRF_TOKEN_MISMATCH", "missing or mismatched CSRF token"))
				return
			}

			rotated := MintCSRFToken(resp, production)
			req.SetAttr(reqres.AttrCSRFToken, rotated)

			next(nil)
		},
	}
}

// MintCSRFToken generates a fresh token, sets it as the __Host-csrf-token
// cookie on resp, and returns the value. It is the single minting path:
// called by the token-exchange endpoint on first issue and by CSRFStage
// when rotating a token after a successful unsafe-method check.
func MintCSRFToken(resp *reqres.Response, production bool) string {
	token := newCSRFToken()
	cookie := &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteStrictMode,
	}
	resp.Header().Add("Set-Cookie", cookie.String())
	return token
}

func newCSRFToken() string {
	buf := make([]byte, csrfTokenBytes)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func tokensMatch(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func findCookie(r *http.Request, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// bodyField does a best-effort lookup of a field in a JSON request body. It
// unmarshals independently rather than through Request.JSON, since that
// cache is keyed to whichever parser calls it first and a later handler may
// need its own shape.
func bodyField(req *reqres.Request, field string) string {
	if len(req.Body) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(req.Body, &m); err != nil {
		return ""
	}
	s, _ := m[field].(string)
	return s
}
