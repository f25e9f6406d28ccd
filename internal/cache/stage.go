package cache

import (
	"fmt"
	"net/url"
	"time"

	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// VaryHeaders lists the request headers folded into the cache fingerprint
// alongside method, path, and sorted query.
var VaryHeaders = []string{"Accept-Encoding", "Accept"}

// Stage returns a pipeline stage that serves a cache hit directly and
// terminates the chain, or records the fingerprint as a request attribute
// for a later recording stage to fill in on miss.
func Stage(store Store) pipeline.Stage {
	return pipeline.Stage{
		ID: "cache",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !SafeMethods[req.Method] {
				next(nil)
				return
			}

			// HEAD shares the GET entry; the hit path below suppresses the
			// body for HEAD.
			method := req.Method
			if method == "HEAD" {
				method = "GET"
			}
			fp := Fingerprint(method, req.Path, url.Values(req.Query), req.Headers, VaryHeaders)
			req.SetAttr(reqres.AttrCacheFingerprint, fp)

			start := time.Now()
			entry, ok := store.Get(fp)
			if !ok {
				_ = resp.SetHeader("X-Cache", "MISS")
				next(nil)
				return
			}

			body, err := entry.Body()
			if err != nil {
				_ = resp.SetHeader("X-Cache", "MISS")
				next(nil)
				return
			}

			for k, values := range entry.Headers {
				for _, v := range values {
					_ = resp.SetHeader(k, v)
				}
			}
			_ = resp.SetHeader("X-Cache", "HIT")
			_ = resp.SetHeader("X-Cache-Time", fmt.Sprintf("%dms", time.Since(start).Milliseconds()))
			req.SetAttr(reqres.AttrCacheHit, true)

			_ = resp.WriteStatus(entry.Status)
			if req.Method != "HEAD" {
				_, _ = resp.Write(body)
			} else {
				_, _ = resp.Write(nil)
			}
			// Chain terminates here: resp.Done() closes from the write above,
			// so the executor never calls the remaining stages.
		},
	}
}

// RecordStage returns a stage that stores the final response body under the
// fingerprint attribute set by Stage, when the response was a miss. It must
// run after the handler stage.
func RecordStage(store Store, ttl time.Duration) pipeline.Stage {
	return pipeline.Stage{
		ID: "cache-record",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			defer next(nil)

			if !SafeMethods[req.Method] || !resp.IsWritten() {
				return
			}
			if _, hit := req.Attr(reqres.AttrCacheHit); hit {
				return
			}
			fp, ok := req.Attr(reqres.AttrCacheFingerprint)
			if !ok {
				return
			}

			_ = store.Set(fp.(string), resp.BodyBytes(), resp.Header(), resp.Status, SetOptions{TTL: ttl})
		},
	}
}
