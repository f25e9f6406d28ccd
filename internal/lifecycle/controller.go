// Package lifecycle enforces per-request timeouts and admission control
// (global and per-IP concurrency caps) and coordinates graceful shutdown
// drain, mirroring the teacher's internal/infra/resilience timeout/bulkhead
// pattern (a semaphore-backed concurrency limiter plus a context-based
// deadline) generalized from a single outbound-call wrapper to the whole
// inbound request lifecycle.
package lifecycle

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iruldev/xyprissgo/internal/config"
)

// Controller admits or rejects inbound requests against global and
// per-IP concurrency caps, and tracks the requests currently in flight so
// Shutdown can wait for them to drain.
type Controller struct {
	cfg    config.RequestManagementSection
	logger *slog.Logger

	global chan struct{}

	mu    sync.Mutex
	perIP map[string]int

	inflight atomic.Int64
}

// New builds a Controller from the request-management configuration. A
// zero MaxConcurrentRequests or MaxPerIP disables that particular cap.
func New(cfg config.RequestManagementSection, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{cfg: cfg, logger: logger, perIP: map[string]int{}}
	if cfg.Concurrency.MaxConcurrentRequests > 0 {
		c.global = make(chan struct{}, cfg.Concurrency.MaxConcurrentRequests)
	}
	return c
}

// Admit attempts to reserve a concurrency slot for ip. ok is false when
// either the global or per-IP cap is already saturated; the caller must
// not call Release in that case.
func (c *Controller) Admit(ip string) (ok bool) {
	if c.global != nil {
		select {
		case c.global <- struct{}{}:
		default:
			return false
		}
	}

	if c.cfg.Concurrency.MaxPerIP > 0 {
		c.mu.Lock()
		if c.perIP[ip] >= c.cfg.Concurrency.MaxPerIP {
			c.mu.Unlock()
			if c.global != nil {
				<-c.global
			}
			return false
		}
		c.perIP[ip]++
		c.mu.Unlock()
	}

	c.inflight.Add(1)
	return true
}

// Release returns the slot reserved by a matching Admit(ip) call.
func (c *Controller) Release(ip string) {
	c.inflight.Add(-1)
	if c.cfg.Concurrency.MaxPerIP > 0 {
		c.mu.Lock()
		if c.perIP[ip] > 0 {
			c.perIP[ip]--
			if c.perIP[ip] == 0 {
				delete(c.perIP, ip)
			}
		}
		c.mu.Unlock()
	}
	if c.global != nil {
		<-c.global
	}
}

// Inflight returns the number of requests currently admitted.
func (c *Controller) Inflight() int64 {
	return c.inflight.Load()
}

// TimeoutFor resolves the effective timeout for a route pattern: the
// per-route override when configured, else the global default.
func (c *Controller) TimeoutFor(routePattern string) time.Duration {
	if d, ok := c.cfg.Timeout.Routes[routePattern]; ok {
		return d
	}
	return c.cfg.Timeout.DefaultTimeout
}
