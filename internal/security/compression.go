package security

import (
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) { return g.gz.Write(b) }

// CompressionStage negotiates gzip encoding from Accept-Encoding and, when
// accepted, interposes a streaming gzip writer so the handler's output is
// compressed on the wire without buffering the whole body first.
func CompressionStage(cfg config.SecuritySection) pipeline.Stage {
	return pipeline.Stage{
		ID: "compression",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			if !cfg.Compression {
				next(nil)
				return
			}

			accept := req.Headers.Get("Accept-Encoding")
			if !strings.Contains(accept, "gzip") {
				next(nil)
				return
			}

			_ = resp.SetHeader("Content-Encoding", "gzip")
			resp.Header().Add("Vary", "Accept-Encoding")

			var gz *gzip.Writer
			_ = resp.WrapWriter(func(w http.ResponseWriter) http.ResponseWriter {
				gz = gzip.NewWriter(w)
				return &gzipResponseWriter{ResponseWriter: w, gz: gz}
			})
			resp.SetCloser(gz)

			next(nil)
		},
	}
}
