package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/xyprissgo/internal/apperr"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

func TestCSRFStage_SafeMethodPassesThroughWithoutMinting(t *testing.T) {
	cfg := config.SecuritySection{CSRF: true}
	stage := CSRFStage(cfg, false, observability.NewNopLoggerInterface())

	req := reqres.New(httptest.NewRequest("GET", "/", nil), nil)
	rec := httptest.NewRecorder()
	resp := reqres.NewResponse(rec)

	var gotErr error
	stage.Fn(req, resp, func(err error) { gotErr = err })

	assert.NoError(t, gotErr)
	assert.Empty(t, rec.Header().Values("Set-Cookie"))
	_, ok := req.Attr(reqres.AttrCSRFToken)
	assert.False(t, ok)
}

func TestMintCSRFToken_SetsCookieAndReturnsValue(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := reqres.NewResponse(rec)

	token := MintCSRFToken(resp, true)

	assert.NotEmpty(t, token)
	cookies := rec.Header().Values("Set-Cookie")
	require.Len(t, cookies, 1)
	assert.Contains(t, cookies[0], csrfCookieName)
	assert.Contains(t, cookies[0], "Secure")
}

func TestCSRFStage_UnsafeMethodWithoutTokenIsForbidden(t *testing.T) {
	cfg := config.SecuritySection{CSRF: true}
	stage := CSRFStage(cfg, false, observability.NewNopLoggerInterface())

	req := reqres.New(httptest.NewRequest("POST", "/login", nil), nil)
	resp := reqres.NewResponse(httptest.NewRecorder())

	var gotErr error
	stage.Fn(req, resp, func(err error) { gotErr = err })

	require.Error(t, gotErr)
	var appErr *apperr.Error
	require.ErrorAs(t, gotErr, &appErr)
	assert.Equal(t, apperr.KindForbidden, appErr.Kind)
}

func TestCSRFStage_UnsafeMethodWithMatchingHeaderTokenSucceeds(t *testing.T) {
	cfg := config.SecuritySection{CSRF: true}
	stage := CSRFStage(cfg, false, observability.NewNopLoggerInterface())

	exchangeResp := reqres.NewResponse(httptest.NewRecorder())
	token := MintCSRFToken(exchangeResp, false)

	postRaw := httptest.NewRequest("POST", "/login", nil)
	postRaw.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
	postRaw.Header.Set(csrfHeaderName, token)
	postReq := reqres.New(postRaw, nil)
	postResp := reqres.NewResponse(httptest.NewRecorder())

	var gotErr error
	stage.Fn(postReq, postResp, func(err error) { gotErr = err })

	assert.NoError(t, gotErr)
}

func TestCSRFStage_LogsAuditEventOnRejection(t *testing.T) {
	cfg := config.SecuritySection{CSRF: true}
	logger := &recordingLogger{}
	stage := CSRFStage(cfg, false, logger)

	req := reqres.New(httptest.NewRequest("POST", "/login", nil), nil)
	resp := reqres.NewResponse(httptest.NewRecorder())

	var gotErr error
	stage.Fn(req, resp, func(err error) { gotErr = err })

	require.Error(t, gotErr)
	require.Len(t, logger.warnings, 1)
	assert.Equal(t, "audit event", logger.warnings[0])
}

func TestCSRFStage_DisabledPassesThrough(t *testing.T) {
	cfg := config.SecuritySection{CSRF: false}
	stage := CSRFStage(cfg, false, observability.NewNopLoggerInterface())

	req := reqres.New(httptest.NewRequest("POST", "/login", nil), nil)
	resp := reqres.NewResponse(httptest.NewRecorder())

	var gotErr error
	stage.Fn(req, resp, func(err error) { gotErr = err })

	assert.NoError(t, gotErr)
}
