// Package pipeline implements the ordered middleware executor that runs
// security stages, route middleware, and the terminal handler for one
// request. The cursor-and-next design and per-stage watchdog follow the
// teacher's resilience.Timeout idiom (context.WithTimeout around a unit of
// work, with a named, observable failure) generalized from one timed
// operation to a chain of them.
package pipeline

import "github.com/iruldev/xyprissgo/internal/reqres"

// Next advances the pipeline cursor. Passing a non-nil err skips every
// remaining non-error stage and routes to the error handler. A stage may
// call Next from its own goroutine after returning (the "deferred
// completion" / async stage case) or may skip calling it entirely if it
// terminates the chain by writing the response directly (the cache
// short-circuit case).
type Next func(err error)

// Stage is one link in the chain: security stages, per-route middleware,
// and the eventual handler are all stages.
type Stage struct {
	ID string
	Fn func(req *reqres.Request, resp *reqres.Response, next Next)
}

// ErrorHandler handles an error value passed to Next, or a nil pipeline
// default when none is registered.
type ErrorHandler func(err error, req *reqres.Request, resp *reqres.Response)

// HandlerStage adapts a terminal route handler into a Stage that always
// calls next(nil) after running, since handlers don't continue a chain.
func HandlerStage(id string, fn func(req *reqres.Request, resp *reqres.Response)) Stage {
	return Stage{ID: id, Fn: func(req *reqres.Request, resp *reqres.Response, next Next) {
		fn(req, resp)
		next(nil)
	}}
}
