package lifecycle

import (
	"net/http"
	"strings"
	"time"

	"github.com/iruldev/xyprissgo/internal/apperr"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// respWriterAdapter lets the async timeout path reuse apperr.WriteError,
// which expects a raw http.ResponseWriter, against a *reqres.Response.
type respWriterAdapter struct{ resp *reqres.Response }

func (a *respWriterAdapter) Header() http.Header { return a.resp.Header() }
func (a *respWriterAdapter) WriteHeader(code int) { _ = a.resp.WriteStatus(code) }
func (a *respWriterAdapter) Write(b []byte) (int, error) { return a.resp.Write(b) }

// Stage admits the request against the configured concurrency caps and
// arms a per-route timeout. Admission rejection routes a 503 through
// next(err) like every other security-stack stage; the timeout fires
// asynchronously (the handler may still be running several stages deeper
// when the window elapses) so it writes the 504 directly and cancels the
// request context instead, mirroring the cache short-circuit contract of
// a stage that terminates the chain by writing rather than calling next.
func Stage(ctrl *Controller) pipeline.Stage {
	return pipeline.Stage{
		ID: "lifecycle",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			ip := clientIP(req.RemoteAddr)

			if !ctrl.Admit(ip) {
				next(apperr.New("lifecycle.Stage", apperr.KindServiceUnavailable,
					"ADMISSION_REJECTED", "server is at capacity"))
				return
			}

			released := false
			release := func() {
				if !released {
					released = true
					ctrl.Release(ip)
				}
			}

			routePattern, _ := req.Attr(reqres.AttrRoutePattern)
			pattern, _ := routePattern.(string)
			if pattern == "" {
				pattern = req.Path
			}
			timeout := ctrl.TimeoutFor(pattern)

			go func() {
				defer release()
				if timeout <= 0 {
					select {
					case <-resp.Done():
					case <-req.Context().Done():
					}
					return
				}
				timer := time.NewTimer(timeout)
				defer timer.Stop()
				select {
				case <-resp.Done():
				case <-req.Context().Done():
				case <-timer.C:
					req.Cancel()
					if !resp.IsWritten() {
						apperr.WriteError(&respWriterAdapter{resp},
							apperr.New("lifecycle.Stage", apperr.KindGatewayTimeout,
								"REQUEST_TIMEOUT", "request exceeded its timeout"),
							"", "")
					}
				}
			}()

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
