package app

import (
	"github.com/iruldev/xyprissgo/internal/cluster"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
)

// inflightStage brackets every request with Runtime.BeginRequest/EndRequest
// so this worker's heartbeat reports an accurate in-flight count to the
// supervisor, per cluster.Runtime's doc comment.
func inflightStage(rt *cluster.Runtime) pipeline.Stage {
	return pipeline.Stage{
		ID: "cluster:inflight",
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			rt.BeginRequest()
			defer rt.EndRequest()
			next(nil)
		},
	}
}
