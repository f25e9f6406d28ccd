package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/iruldev/xyprissgo/internal/reqres"
)

// DefaultWatchdog is the per-stage grace period before the executor forces
// the cursor forward and logs the stall.
const DefaultWatchdog = 100 * time.Millisecond

// Pipeline is an ordered, mutable chain of stages executed sequentially for
// one request. Stages never run concurrently with each other within a
// single Run — only the request body I/O a stage performs may suspend.
type Pipeline struct {
	stages       []Stage
	errorHandler ErrorHandler
	watchdog     time.Duration
	logger       *slog.Logger
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithWatchdog overrides the default 100ms per-stage stall timeout.
func WithWatchdog(d time.Duration) Option {
	return func(p *Pipeline) { p.watchdog = d }
}

// WithLogger overrides the default slog logger used for watchdog and
// double-next warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithErrorHandler registers the handler invoked when a stage passes a
// non-nil error to Next. Without one, New installs a handler that writes a
// bare 500.
func WithErrorHandler(h ErrorHandler) Option {
	return func(p *Pipeline) { p.errorHandler = h }
}

// New builds a Pipeline from an ordered stage list.
func New(stages []Stage, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages:   stages,
		watchdog: DefaultWatchdog,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.errorHandler == nil {
		p.errorHandler = defaultErrorHandler
	}
	return p
}

func defaultErrorHandler(err error, _ *reqres.Request, resp *reqres.Response) {
	if resp.IsWritten() {
		return
	}
	_ = resp.WriteStatus(500)
	_, _ = resp.Write([]byte(`{"error":"internal_error"}`))
}

// Run executes the chain against one request/response pair, starting at
// stage 0. It returns once the chain is exhausted, a stage errors, or a
// stage terminates the chain by writing the response directly.
func (p *Pipeline) Run(req *reqres.Request, resp *reqres.Response) {
	p.runFrom(0, req, resp)
}

func (p *Pipeline) runFrom(index int, req *reqres.Request, resp *reqres.Response) {
	for i := index; i < len(p.stages); i++ {
		if resp.IsWritten() {
			return
		}
		if req.Cancelled() {
			return
		}

		stage := p.stages[i]
		result, ok := p.runStage(stage, req, resp)
		if !ok {
			// Stage terminated the chain by writing the response directly
			// (e.g. the cache short-circuit) without calling Next.
			return
		}
		if result != nil {
			p.errorHandler(result, req, resp)
			return
		}
	}
}

// runStage executes one stage and waits for it to either call Next, write
// the response, or stall past the watchdog. ok is false when the stage
// terminated the chain by writing rather than calling Next.
func (p *Pipeline) runStage(stage Stage, req *reqres.Request, resp *reqres.Response) (err error, ok bool) {
	advanced := make(chan error, 1)
	var once sync.Once
	next := func(e error) {
		once.Do(func() { advanced <- e })
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		stage.Fn(req, resp, next)
	}()

	timer := time.NewTimer(p.watchdog)
	defer timer.Stop()

	for {
		select {
		case e := <-advanced:
			return e, true
		default:
		}

		select {
		case e := <-advanced:
			return e, true
		case <-resp.Done():
			return nil, false
		case <-timer.C:
			p.logger.Warn("pipeline stage stalled past watchdog, forcing advance",
				"stage", stage.ID, "watchdog", p.watchdog)
			return nil, true
		case <-done:
			// stage.Fn returned; Next and the response write both race with
			// this case firing, so re-check both, preferring Next since it
			// is the explicit continuation signal. If neither has happened
			// yet, keep waiting: the stage may still call Next from its own
			// goroutine, and the watchdog bounds the wait.
			select {
			case e := <-advanced:
				return e, true
			default:
			}
			select {
			case <-resp.Done():
				return nil, false
			default:
				done = nil
			}
		}
	}
}
