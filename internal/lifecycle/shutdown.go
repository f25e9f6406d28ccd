package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// Shutdown waits for inflight requests to drain to zero, or until timeout
// elapses, whichever comes first. Callers stop accepting new connections
// before calling this so Inflight only decreases.
func (c *Controller) Shutdown(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.Inflight() <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			c.logger.Warn("shutdown drain aborted by context", "inflight", c.Inflight())
			return ctx.Err()
		case <-deadline.C:
			c.logger.Warn("graceful shutdown timeout exceeded, forcing close",
				"inflight", c.Inflight())
			return errShutdownTimeout
		case <-ticker.C:
		}
	}
}

var errShutdownTimeout = shutdownTimeoutError{}

type shutdownTimeoutError struct{}

func (shutdownTimeoutError) Error() string { return "lifecycle: graceful shutdown timeout exceeded" }
