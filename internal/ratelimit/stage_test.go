package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iruldev/xyprissgo/internal/apperr"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

func TestRateLimitStage_ExemptPathBypassesCheck(t *testing.T) {
	store := NewMemoryStore()
	cfg := config.RateLimitSection{Max: 0, WindowMS: 1000, ExemptPaths: []string{"/health"}}
	handlerRan := false

	p := pipeline.New([]pipeline.Stage{
		Stage(store, cfg, reqres.NewAttrKey("user_id"), observability.NewNopLoggerInterface()),
		pipeline.HandlerStage("handler", func(req *reqres.Request, resp *reqres.Response) {
			handlerRan = true
			_ = resp.WriteStatus(200)
		}),
	})

	rec := httptest.NewRecorder()
	req := reqres.New(httptest.NewRequest("GET", "/health", nil), nil)
	resp := reqres.NewResponse(rec)
	p.Run(req, resp)

	assert.True(t, handlerRan)
}

func TestRateLimitStage_RejectsOverLimitWith429(t *testing.T) {
	store := NewMemoryStore()
	cfg := config.RateLimitSection{Max: 1, WindowMS: 60000, HeadersOn: true}

	var handled error
	p := pipeline.New([]pipeline.Stage{
		Stage(store, cfg, reqres.NewAttrKey("user_id"), observability.NewNopLoggerInterface()),
		pipeline.HandlerStage("handler", func(req *reqres.Request, resp *reqres.Response) {
			_ = resp.WriteStatus(200)
		}),
	}, pipeline.WithErrorHandler(func(err error, req *reqres.Request, resp *reqres.Response) {
		handled = err
		var appErr *apperr.Error
		if assertAs(err, &appErr) {
			_ = resp.WriteStatus(apperr.HTTPStatus(appErr.Kind))
		}
	}))

	run := func(ip string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := reqres.New(httptest.NewRequest("GET", "/x", nil), nil)
		req.RemoteAddr = ip + ":1234"
		resp := reqres.NewResponse(rec)
		p.Run(req, resp)
		return rec
	}

	rec1 := run("9.9.9.9")
	assert.Equal(t, "1", rec1.Header().Get("X-RateLimit-Limit"))

	handled = nil
	rec2 := run("9.9.9.9")
	assert.Equal(t, 429, rec2.Code)
	assert.Error(t, handled)
}

func assertAs(err error, target **apperr.Error) bool {
	ae, ok := err.(*apperr.Error)
	if !ok {
		return false
	}
	*target = ae
	return true
}

// recordingLogger captures Warn calls so tests can assert an audit entry was
// actually emitted, without depending on zap.
type recordingLogger struct {
	observability.Logger
	warnings []string
}

func (r *recordingLogger) Warn(msg string, fields ...observability.Field) {
	r.warnings = append(r.warnings, msg)
}

func TestRateLimitStage_LogsAuditEventOnRejection(t *testing.T) {
	store := NewMemoryStore()
	cfg := config.RateLimitSection{Max: 1, WindowMS: 60000}
	logger := &recordingLogger{}

	p := pipeline.New([]pipeline.Stage{
		Stage(store, cfg, reqres.NewAttrKey("user_id"), logger),
		pipeline.HandlerStage("handler", func(req *reqres.Request, resp *reqres.Response) {
			_ = resp.WriteStatus(200)
		}),
	}, pipeline.WithErrorHandler(func(err error, req *reqres.Request, resp *reqres.Response) {
		var appErr *apperr.Error
		if assertAs(err, &appErr) {
			_ = resp.WriteStatus(apperr.HTTPStatus(appErr.Kind))
		}
	}))

	run := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := reqres.New(httptest.NewRequest("GET", "/x", nil), nil)
		req.RemoteAddr = "8.8.8.8:1234"
		resp := reqres.NewResponse(rec)
		p.Run(req, resp)
		return rec
	}

	run()
	rec2 := run()

	assert.Equal(t, 429, rec2.Code)
	assert.Len(t, logger.warnings, 1)
	assert.Equal(t, "audit event", logger.warnings[0])
}
