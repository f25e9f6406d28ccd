package security

import (
	"time"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// AccessLogStage logs method, path, status, body size, and duration once
// the response finishes writing. Logging happens off a goroutine parked on
// resp.Done() so this stage itself returns immediately and never delays the
// chain, mirroring the morgan-style "log on finish" middleware idiom.
func AccessLogStage(cfg config.SecuritySection, logger observability.Logger) pipeline.Stage {
	return pipeline.Stage{
		ID: "access-log",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !cfg.Morgan || logger == nil {
				next(nil)
				return
			}

			start := time.Now()
			go func() {
				select {
				case <-resp.Done():
				case <-req.Context().Done():
					return
				}
				logger.Info("http access",
					observability.String("method", req.Method),
					observability.String("path", req.Path),
					observability.Int("status", resp.Status),
					observability.Int("bytes", len(resp.BodyBytes())),
					observability.Duration("duration", time.Since(start)),
				)
			}()

			next(nil)
		},
	}
}
