package pipeline

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/xyprissgo/internal/reqres"
)

func newReqResp() (*reqres.Request, *reqres.Response) {
	req := reqres.New(httptest.NewRequest("GET", "/", nil), nil)
	resp := reqres.NewResponse(httptest.NewRecorder())
	return req, resp
}

func TestPipeline_RunsStagesInOrder(t *testing.T) {
	var order []string
	stages := []Stage{
		{ID: "a", Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
			order = append(order, "a")
			next(nil)
		}},
		{ID: "b", Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
			order = append(order, "b")
			next(nil)
		}},
		HandlerStage("handler", func(req *reqres.Request, resp *reqres.Response) {
			order = append(order, "handler")
		}),
	}

	p := New(stages)
	req, resp := newReqResp()
	p.Run(req, resp)

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestPipeline_ErrorSkipsRemainingStages(t *testing.T) {
	var ran []string
	stages := []Stage{
		{ID: "fails", Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
			ran = append(ran, "fails")
			next(errors.New("boom"))
		}},
		{ID: "never", Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
			ran = append(ran, "never")
			next(nil)
		}},
	}

	var handledErr error
	p := New(stages, WithErrorHandler(func(err error, req *reqres.Request, resp *reqres.Response) {
		handledErr = err
	}))
	req, resp := newReqResp()
	p.Run(req, resp)

	assert.Equal(t, []string{"fails"}, ran)
	require.Error(t, handledErr)
	assert.Equal(t, "boom", handledErr.Error())
}

func TestPipeline_DefaultErrorHandlerWrites500(t *testing.T) {
	stages := []Stage{
		{ID: "fails", Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
			next(errors.New("boom"))
		}},
	}
	p := New(stages)
	rec := httptest.NewRecorder()
	req := reqres.New(httptest.NewRequest("GET", "/", nil), nil)
	resp := reqres.NewResponse(rec)
	p.Run(req, resp)

	assert.Equal(t, 500, rec.Code)
}

func TestPipeline_StageWritingDirectlyTerminatesChain(t *testing.T) {
	var ranSecond bool
	stages := []Stage{
		{ID: "short-circuit", Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
			_ = resp.WriteStatus(200)
			_, _ = resp.Write([]byte("cached"))
			// deliberately never calls next
		}},
		{ID: "second", Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
			ranSecond = true
			next(nil)
		}},
	}

	p := New(stages)
	rec := httptest.NewRecorder()
	req := reqres.New(httptest.NewRequest("GET", "/", nil), nil)
	resp := reqres.NewResponse(rec)
	p.Run(req, resp)

	assert.False(t, ranSecond)
	assert.Equal(t, "cached", rec.Body.String())
}

func TestPipeline_AsyncStageCompletesFromGoroutine(t *testing.T) {
	stages := []Stage{
		{ID: "async", Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
			go func() {
				time.Sleep(time.Millisecond)
				next(nil)
			}()
		}},
		HandlerStage("handler", func(req *reqres.Request, resp *reqres.Response) {
			_ = resp.WriteStatus(200)
		}),
	}

	p := New(stages)
	req, resp := newReqResp()
	p.Run(req, resp)

	assert.Equal(t, 200, resp.Status)
}

func TestPipeline_StalledStageForcesAdvanceAfterWatchdog(t *testing.T) {
	stages := []Stage{
		{ID: "stalls", Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
			// never calls next, never writes: simulates a buggy stage.
			select {}
		}},
		HandlerStage("handler", func(req *reqres.Request, resp *reqres.Response) {
			_ = resp.WriteStatus(200)
		}),
	}

	p := New(stages, WithWatchdog(5*time.Millisecond))
	req, resp := newReqResp()
	p.Run(req, resp)

	assert.Equal(t, 200, resp.Status)
}

func TestPipeline_DoubleNextIsIgnored(t *testing.T) {
	calls := 0
	stages := []Stage{
		{ID: "double", Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
			next(nil)
			next(errors.New("should be ignored"))
		}},
		HandlerStage("handler", func(req *reqres.Request, resp *reqres.Response) {
			calls++
			_ = resp.WriteStatus(200)
		}),
	}

	p := New(stages)
	req, resp := newReqResp()
	p.Run(req, resp)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 200, resp.Status)
}
