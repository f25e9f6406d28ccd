package adminhttp

import (
	"github.com/iruldev/xyprissgo/internal/httpserver"
	"github.com/iruldev/xyprissgo/internal/router"
	"github.com/iruldev/xyprissgo/internal/security"
)

// CSRFTokenResponse is the body of GET /__csrf/token.
type CSRFTokenResponse struct {
	Token string `json:"token"`
}

// CSRFToken mints a fresh CSRF token, sets it as the __Host-csrf-token
// cookie, and returns it in the body for clients that submit it via the
// X-CSRF-Token header instead of reading the cookie directly. This is the
// only path that issues a token for a session that doesn't have one yet;
// CSRFStage only verifies and rotates tokens already issued here.
func (h *Handler) CSRFToken(ctx *router.Context) {
	token := security.MintCSRFToken(ctx.Response, h.Production)
	_ = httpserver.WriteJSON(ctx.Response, 200, CSRFTokenResponse{Token: token})
}
