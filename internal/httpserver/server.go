// Package httpserver implements the worker's listen/accept/dispatch loop:
// bind a port (falling back via internal/portacquire on conflict), parse
// each request into a reqres.Request, resolve it against an
// internal/router.Trie, build the per-request pipeline (security stack +
// route middleware + handler), run it, and flush the response. The
// listen/serve composition and graceful-shutdown shape follow the
// teacher's cmd/server/main.go (*http.Server plus a goroutine-driven
// ListenAndServe, shut down on a signal/deadline) generalized from one
// fixed chi router to the framework's own trie and pipeline.
package httpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iruldev/xyprissgo/internal/cache"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/lifecycle"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/portacquire"
	"github.com/iruldev/xyprissgo/internal/reqres"
	"github.com/iruldev/xyprissgo/internal/router"
)

// maxBodyBytesDefault bounds request bodies when ServerSection.JSONLimit is
// absent or unparseable.
const maxBodyBytesDefault = 1 << 20 // 1MiB

// Server binds one listener and dispatches every accepted request through
// the trie and pipeline. Multiple Servers (see internal/multiserver) may
// run in one process on different ports, each with its own route subset.
type Server struct {
	ID string

	cfg         config.ServerSection
	notFoundCfg config.NotFoundSection

	trie     *router.Trie
	security []pipeline.Stage
	ctrl     *lifecycle.Controller
	cache    cache.Store
	cacheTTL time.Duration

	logger   *slog.Logger
	acquirer *portacquire.Acquirer

	maxBodyBytes int64

	listener net.Listener
	raw      *http.Server
}

// New builds a Server for one (host, port) binding. security is the fixed
// stage list from security.Stack; ctrl governs per-request admission and
// timeout; store may be nil to disable response caching.
func New(
	id string,
	cfg config.ServerSection,
	notFoundCfg config.NotFoundSection,
	trie *router.Trie,
	security []pipeline.Stage,
	ctrl *lifecycle.Controller,
	store cache.Store,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ID:           id,
		cfg:          cfg,
		notFoundCfg:  notFoundCfg,
		trie:         trie,
		security:     security,
		ctrl:         ctrl,
		cache:        store,
		cacheTTL:     cacheTTL,
		logger:       logger,
		acquirer:     portacquire.New(logger, nil),
		maxBodyBytes: parseByteSize(cfg.JSONLimit, maxBodyBytesDefault),
	}
}

// Start binds the configured port (stepping to a fallback port on conflict
// when AutoPortSwitch is enabled) and begins serving in the background. It
// returns the port actually bound.
func (s *Server) Start() (int, error) {
	strategy := portacquire.StrategyIncrement
	if s.cfg.AutoPortSwitch.Strategy == string(portacquire.StrategyRandom) {
		strategy = portacquire.StrategyRandom
	}
	maxAttempts := 1
	if s.cfg.AutoPortSwitch.Enabled {
		maxAttempts = s.cfg.AutoPortSwitch.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = 10
		}
	}

	ln, port, err := s.acquirer.Acquire(s.cfg.Host, s.cfg.Port, strategy, maxAttempts)
	if err != nil {
		return 0, err
	}
	s.listener = ln

	s.raw = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		if err := s.raw.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "id", s.ID, "err", err)
		}
	}()

	s.logger.Info("http server listening", "id", s.ID, "host", s.cfg.Host, "port", port)
	return port, nil
}

// Shutdown drains in-flight requests (via the lifecycle controller, when
// set) and closes the listener, matching the teacher's graceful-shutdown
// budget idiom of a bounded wait before forcing close.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.raw == nil {
		return nil
	}
	if s.ctrl != nil {
		if err := s.ctrl.Shutdown(ctx, 15*time.Second); err != nil {
			s.logger.Warn("shutdown drain did not complete cleanly", "id", s.ID, "err", err)
		}
	}
	return s.raw.Shutdown(ctx)
}

// ServeHTTP implements http.Handler: parse the body, construct a
// reqres.Request/Response pair, dispatch it, and flush.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(io.LimitReader(r.Body, s.maxBodyBytes))
	_ = r.Body.Close()

	req := reqres.New(r, body)
	resp := reqres.NewResponse(w)
	defer resp.Close()

	if r.Method == http.MethodConnect {
		s.handleConnect(req, resp)
		return
	}

	s.dispatch(req, resp)
}

func parseByteSize(s string, fallback int64) int64 {
	n, unit := splitSizeUnit(s)
	if n <= 0 {
		return fallback
	}
	switch unit {
	case "kb", "k":
		return n * 1024
	case "mb", "m":
		return n * 1024 * 1024
	case "gb", "g":
		return n * 1024 * 1024 * 1024
	default:
		return n
	}
}

func splitSizeUnit(s string) (int64, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, ""
	}
	var n int64
	for _, c := range s[:i] {
		n = n*10 + int64(c-'0')
	}
	unit := ""
	for j := i; j < len(s); j++ {
		c := s[j]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		unit += string(c)
	}
	return n, unit
}
