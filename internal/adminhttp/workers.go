package adminhttp

import (
	"github.com/iruldev/xyprissgo/internal/cluster"
	"github.com/iruldev/xyprissgo/internal/httpserver"
	"github.com/iruldev/xyprissgo/internal/router"
)

// WorkersResponse is the body of GET /__admin/workers. Fallback is true
// when the cluster supervisor gave up on multi-process mode and the
// process is serving requests directly.
type WorkersResponse struct {
	Fallback bool                 `json:"fallback"`
	Workers  []cluster.Descriptor `json:"workers"`
}

// Workers reports every tracked worker's descriptor. Supervisor is nil in
// single-process deployments that never start a cluster supervisor.
func (h *Handler) Workers(ctx *router.Context) {
	if h.Supervisor == nil {
		_ = httpserver.WriteJSON(ctx.Response, 200, WorkersResponse{Fallback: true, Workers: []cluster.Descriptor{}})
		return
	}

	_ = httpserver.WriteJSON(ctx.Response, 200, WorkersResponse{
		Fallback: h.Supervisor.FallbackActive(),
		Workers:  h.Supervisor.Descriptors(),
	})
}
