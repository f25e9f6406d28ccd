package httpserver

import (
	"net/http"
	"sort"
	"strings"

	"github.com/iruldev/xyprissgo/internal/apperr"
	"github.com/iruldev/xyprissgo/internal/cache"
	"github.com/iruldev/xyprissgo/internal/lifecycle"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/reqres"
	"github.com/iruldev/xyprissgo/internal/router"
)

// dispatch resolves the route for req and runs the full stage chain:
// request-id, lifecycle admission/timeout, the security stack, cache
// lookup, route middleware, and the handler, in that order. HEAD is
// matched against the GET route; OPTIONS without a CORS preflight (a
// preflight is handled upstream by the security stack's CORSStage)
// answers with the allowed-methods list instead of dispatching.
func (s *Server) dispatch(req *reqres.Request, resp *reqres.Response) {
	lookupMethod := router.Method(req.Method)
	if lookupMethod == router.MethodHead {
		lookupMethod = router.MethodGet
	}

	route, params := s.trie.Match(lookupMethod, req.Path)

	if route == nil {
		if req.Method == http.MethodOptions {
			if methods := s.trie.AllowedMethods(req.Path); len(methods) > 0 {
				if req.Headers.Get("Access-Control-Request-Method") != "" {
					p := pipeline.New(append([]pipeline.Stage{requestIDStage()}, s.security...),
						pipeline.WithLogger(s.logger), pipeline.WithErrorHandler(s.writeError))
					p.Run(req, resp)
					if resp.IsWritten() {
						return
					}
				}
				writeAllowedMethods(resp, methods)
				return
			}
		}
		s.renderNotFound(req, resp)
		return
	}

	req.Params = params
	req.SetAttr(reqres.AttrRoutePattern, route.Pattern)

	if req.Method == http.MethodOptions && req.Headers.Get("Access-Control-Request-Method") == "" {
		writeAllowedMethods(resp, s.trie.AllowedMethods(req.Path))
		return
	}

	stages := make([]pipeline.Stage, 0, len(s.security)+5)
	stages = append(stages, requestIDStage())
	if s.ctrl != nil {
		stages = append(stages, lifecycle.Stage(s.ctrl))
	}
	stages = append(stages, s.security...)
	if s.cache != nil {
		stages = append(stages, cache.Stage(s.cache))
	}
	stages = append(stages, routeMiddlewareStage(route, params))
	if s.cache != nil {
		stages = append(stages, cache.RecordStage(s.cache, s.cacheTTL))
	}

	p := pipeline.New(stages, pipeline.WithLogger(s.logger), pipeline.WithErrorHandler(s.writeError))
	p.Run(req, resp)
}

// routeMiddlewareStage adapts a matched route's Handler/Middleware chain
// into the terminal pipeline.Stage. A HEAD request reuses the GET route's
// handler unmodified; handlers that want to skip body work on HEAD check
// req.Method themselves (the cache stage already does this for hits).
func routeMiddlewareStage(route *router.Route, params map[string]string) pipeline.Stage {
	return pipeline.Stage{
		ID: "handler:" + route.Pattern,
		Fn: func(req *reqres.Request, resp *reqres.Response, next pipeline.Next) {
			handler := route.Handler
			for i := len(route.Middleware) - 1; i >= 0; i-- {
				handler = route.Middleware[i](handler)
			}

			ctx := &router.Context{Params: params, Request: req, Response: resp}
			handler(ctx)

			next(nil)
		},
	}
}

func writeAllowedMethods(resp *reqres.Response, methods []router.Method) {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	sort.Strings(names)
	_ = resp.SetHeader("Allow", strings.Join(names, ", "))
	_ = resp.WriteStatus(http.StatusNoContent)
}

func (s *Server) writeError(err error, req *reqres.Request, resp *reqres.Response) {
	if resp.IsWritten() {
		return
	}
	requestID, _ := req.Attr(reqres.AttrRequestID)
	id, _ := requestID.(string)
	apperr.WriteError(&responseWriterAdapter{resp: resp}, err, id, "")
}

// handleConnect answers a CONNECT request: 200 and a raw tunnel handoff
// when a tunnel handler is registered (none is, in this framework's scope),
// else 405, per spec.
func (s *Server) handleConnect(req *reqres.Request, resp *reqres.Response) {
	_ = req
	_ = resp.WriteStatus(http.StatusMethodNotAllowed)
	_, _ = resp.Write([]byte(`{"error":"CONNECT tunneling is not supported"}`))
}

type responseWriterAdapter struct{ resp *reqres.Response }

func (a *responseWriterAdapter) Header() http.Header         { return a.resp.Header() }
func (a *responseWriterAdapter) WriteHeader(code int)        { _ = a.resp.WriteStatus(code) }
func (a *responseWriterAdapter) Write(b []byte) (int, error) { return a.resp.Write(b) }
