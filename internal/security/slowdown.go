package security

import (
	"strings"
	"sync"
	"time"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

type slowDownCounter struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// SlowDownStage adds an incremental per-request delay once an IP exceeds
// delayAfter requests within the rate-limit window: (count − delayAfter) ×
// baseDelayMs, capped at maxDelayMs.
func SlowDownStage(cfg config.SecuritySection) pipeline.Stage {
	var mu sync.Mutex
	counters := make(map[string]*slowDownCounter)
	window := time.Duration(cfg.RateLimit.WindowMS) * time.Millisecond

	return pipeline.Stage{
		ID: "slow-down",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !cfg.SlowDown {
				next(nil)
				return
			}

			ip := clientIP(req.RemoteAddr)
			now := time.Now()

			mu.Lock()
			c, ok := counters[ip]
			if !ok {
				c = &slowDownCounter{windowStart: now}
				counters[ip] = c
			}
			mu.Unlock()

			c.mu.Lock()
			if window > 0 && now.Sub(c.windowStart) >= window {
				c.windowStart = now
				c.count = 0
			}
			c.count++
			count := c.count
			c.mu.Unlock()

			excess := count - cfg.SlowDownCfg.DelayAfter
			if excess > 0 {
				delay := time.Duration(excess*cfg.SlowDownCfg.BaseDelay) * time.Millisecond
				max := time.Duration(cfg.SlowDownCfg.MaxDelay) * time.Millisecond
				if max > 0 && delay > max {
					delay = max
				}
				time.Sleep(delay)
			}

			next(nil)
		},
	}
}

func clientIP(remoteAddr string) string {
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}
