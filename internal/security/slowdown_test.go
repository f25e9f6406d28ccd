package security

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

func newReqResp() (*reqres.Request, *reqres.Response) {
	req := reqres.New(httptest.NewRequest("GET", "/", nil), nil)
	resp := reqres.NewResponse(httptest.NewRecorder())
	return req, resp
}

func TestSlowDownStage_NoDelayWhenDisabled(t *testing.T) {
	cfg := config.SecuritySection{SlowDown: false}
	stage := SlowDownStage(cfg)

	req, resp := newReqResp()
	start := time.Now()
	var called bool
	stage.Fn(req, resp, func(err error) { called = true })

	assert.True(t, called)
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestSlowDownStage_DelaysAfterThreshold(t *testing.T) {
	cfg := config.SecuritySection{
		SlowDown: true,
		SlowDownCfg: config.SlowDownSection{
			DelayAfter: 2,
			BaseDelay:  20,
			MaxDelay:   200,
		},
		RateLimit: config.RateLimitSection{WindowMS: 60000},
	}
	stage := SlowDownStage(cfg)

	for i := 0; i < 2; i++ {
		req, resp := newReqResp()
		stage.Fn(req, resp, func(err error) {})
	}

	req, resp := newReqResp()
	start := time.Now()
	stage.Fn(req, resp, func(err error) {})
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestSlowDownStage_CapsAtMaxDelay(t *testing.T) {
	cfg := config.SecuritySection{
		SlowDown: true,
		SlowDownCfg: config.SlowDownSection{
			DelayAfter: 0,
			BaseDelay:  1000,
			MaxDelay:   30,
		},
		RateLimit: config.RateLimitSection{WindowMS: 60000},
	}
	stage := SlowDownStage(cfg)

	req, resp := newReqResp()
	start := time.Now()
	stage.Fn(req, resp, func(err error) {})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 100*time.Millisecond)
}
