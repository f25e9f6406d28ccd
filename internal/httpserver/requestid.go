package httpserver

import (
	"github.com/google/uuid"

	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

const requestIDHeader = "X-Request-ID"

// requestIDStage generates or passes through a request ID, mirroring the
// teacher's interface/http/middleware.RequestID (X-Request-ID passthrough,
// uuid.New() otherwise) adapted from context.Value storage to the pipeline's
// typed attribute bag.
func requestIDStage() pipeline.Stage {
	return pipeline.Stage{
		ID: "request-id",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			id := req.Headers.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			req.SetAttr(reqres.AttrRequestID, id)
			_ = resp.SetHeader(requestIDHeader, id)
			next(nil)
		},
	}
}
