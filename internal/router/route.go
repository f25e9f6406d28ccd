// Package router implements the segment trie that matches an HTTP method
// and path to a registered Route.
package router

import (
	"net/http"

	"github.com/iruldev/xyprissgo/internal/reqres"
)

// Method is an HTTP method accepted by the router. ALL matches any method
// that has no more specific registration.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodDelete  Method = http.MethodDelete
	MethodPatch   Method = http.MethodPatch
	MethodHead    Method = http.MethodHead
	MethodOptions Method = http.MethodOptions
	MethodConnect Method = http.MethodConnect
	MethodAll     Method = "ALL"
)

// Handler is the terminal function invoked once the pipeline reaches a
// matched route.
type Handler func(ctx *Context)

// Context is the per-match context passed to a route handler: the captured
// path params plus the underlying request/response the HTTP server built
// for this call. Handlers read and write through Request/Response rather
// than an http.ResponseWriter directly, keeping them usable from both the
// single-process and clustered server.
type Context struct {
	Params   map[string]string
	Request  *reqres.Request
	Response *reqres.Response
}

// Middleware wraps a Handler with additional behavior.
type Middleware func(Handler) Handler

// Route is a single registered (method, pattern) pair.
type Route struct {
	Method     Method
	Pattern    string
	Handler    Handler
	Middleware []Middleware

	// CacheEligible overrides the default safe-method cache policy when
	// non-nil: true forces caching on, false forces it off regardless of
	// method.
	CacheEligible *bool
}

// segment classifies one path component of a pattern.
type segmentKind int

const (
	segStatic segmentKind = iota
	segParam
	segWild
)

func classify(seg string) (segmentKind, string) {
	if len(seg) == 0 {
		return segStatic, seg
	}
	switch seg[0] {
	case ':':
		return segParam, seg[1:]
	case '*':
		return segWild, seg[1:]
	default:
		return segStatic, seg
	}
}
