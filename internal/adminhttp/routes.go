package adminhttp

import (
	"github.com/iruldev/xyprissgo/internal/httpserver"
	"github.com/iruldev/xyprissgo/internal/router"
)

// RouteEntry is one registered route, shaped for the JSON route table.
type RouteEntry struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
}

// RouteTableResponse is the body of GET /__admin/routes.
type RouteTableResponse struct {
	Routes []RouteEntry `json:"routes"`
}

// RouteTable lists every route registered in the handler's trie.
func (h *Handler) RouteTable(ctx *router.Context) {
	if h.Routes == nil {
		_ = httpserver.WriteJSON(ctx.Response, 200, RouteTableResponse{Routes: []RouteEntry{}})
		return
	}

	all := h.Routes.Routes()
	out := make([]RouteEntry, 0, len(all))
	for _, r := range all {
		out = append(out, RouteEntry{Method: string(r.Method), Pattern: r.Pattern})
	}

	_ = httpserver.WriteJSON(ctx.Response, 200, RouteTableResponse{Routes: out})
}
