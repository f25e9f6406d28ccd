// Package app composes every component this framework builds — the
// route trie, cache, rate limiter, security stack, lifecycle controller,
// HTTP server(s), and, in cluster mode, the worker supervisor and
// autoscaler — into the single App a binary starts and stops. Its
// signal-driven start/stop shape generalizes the teacher's
// cmd/server/main.go + GracefulShutdown pairing (one *http.Server, one
// signal channel) to the framework's full component set.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iruldev/xyprissgo/internal/adminhttp"
	"github.com/iruldev/xyprissgo/internal/autoscaler"
	"github.com/iruldev/xyprissgo/internal/cache"
	"github.com/iruldev/xyprissgo/internal/cluster"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/httpserver"
	"github.com/iruldev/xyprissgo/internal/ipc"
	"github.com/iruldev/xyprissgo/internal/lifecycle"
	"github.com/iruldev/xyprissgo/internal/multiserver"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/ratelimit"
	"github.com/iruldev/xyprissgo/internal/router"
	"github.com/iruldev/xyprissgo/internal/security"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests and
// worker processes to drain once a shutdown signal arrives.
const ShutdownTimeout = 30 * time.Second

// adminRoutePrefix is where the read-only introspection surface is
// mounted on every trie this package builds.
const adminRoutePrefix = "/__admin"

// App is the composition root returned by New. Exactly one of server/multi
// ever accepts connections in a given process: a cluster-mode parent that
// successfully started workers runs neither, since the workers serve
// traffic instead; it only supervises and autoscales them.
type App struct {
	cfg        *config.ServerConfig
	production bool

	trie    *router.Trie
	cache   cache.Store
	limiter ratelimit.Limiter
	ctrl    *lifecycle.Controller
	admin   *adminhttp.Handler

	server *httpserver.Server
	multi  *multiserver.Controller

	bus        *ipc.Bus
	supervisor *cluster.Supervisor
	runtime    *cluster.Runtime
	scaler     *autoscaler.AutoScaler
	scaleStop  chan struct{}

	watcher *configWatcher

	logger     observability.Logger
	slogLogger *slog.Logger
}

// New wires every component from cfg. trie must already have the caller's
// application routes registered; New additionally mounts the read-only
// admin introspection surface onto it at /__admin.
//
// If the current process was spawned by a ClusterSupervisor
// (cluster.IsWorkerProcess), New builds a single worker-mode server
// wrapped in a cluster.Runtime instead of a supervisor — cfg should then
// be the config the parent handed down (see loadWorkerConfig), not a
// fresh config.Load().
func New(cfg *config.ServerConfig, trie *router.Trie, logger observability.Logger) (*App, error) {
	if logger == nil {
		logger = observability.NewNopLoggerInterface()
	}

	a := &App{
		cfg:        cfg,
		production: isProduction(),
		trie:       trie,
		logger:     logger,
		slogLogger: buildSlogLogger(cfg.Log),
		scaleStop:  make(chan struct{}),
	}

	a.cache = cache.New(cfg.Cache, a.slogLogger)
	a.limiter = ratelimit.New(cfg.Cache)
	a.ctrl = lifecycle.New(cfg.RequestManagement, a.slogLogger)
	stages := security.Stack(cfg.Security, a.limiter, logger, a.production)

	a.admin = adminhttp.New(trie, a.cache, a.limiter, nil, a.production, logger)
	a.admin.Register(trie, adminRoutePrefix)

	if cluster.IsWorkerProcess() {
		return a, a.initWorker(stages)
	}
	if cfg.Cluster.Enabled && !clusteringForced() {
		return a, a.initSupervised(stages)
	}
	return a, a.initStandalone(stages)
}

// initStandalone builds the single-process (or multi-server) request path
// with no cluster supervisor involved.
func (a *App) initStandalone(stages []pipeline.Stage) error {
	return a.buildServers("default", a.cfg.Server, stages)
}

// initWorker builds the request path for a process spawned by a
// ClusterSupervisor: one server bound to WORKER_PORT (falling back to
// server.port), plus the IPC link and heartbeat loop back to the parent.
func (a *App) initWorker(stages []pipeline.Stage) error {
	id := os.Getenv(cluster.WorkerEnvVar)
	if id == "" {
		id = "worker-0"
	}

	a.bus = ipc.New(a.slogLogger)
	a.bus.Attach("supervisor", os.Stdout, os.Stdout, os.Stdin)

	srvCfg := a.cfg.Server
	srvCfg.Port = workerPort(a.cfg.Server)

	// Runtime is built before the Server it will end up fronting: the
	// inflight-tracking stage closes over Runtime, and Server needs that
	// stage in its chain from construction. Runtime.Server() is nil until
	// SetServer below; nothing in this package calls it before then.
	a.runtime = cluster.NewRuntime(id, a.bus, nil, a.logger)

	withInflight := append([]pipeline.Stage{inflightStage(a.runtime)}, stages...)
	a.server = httpserver.New(id, srvCfg, a.cfg.NotFound, a.trie, withInflight, a.ctrl, a.cache, a.cfg.Cache.TTL, a.slogLogger)
	a.runtime.SetServer(a.server)

	return nil
}

// initSupervised builds a cluster parent: a Supervisor that re-execs this
// binary per worker, and, if configured, an AutoScaler driving it. The
// single/multi server objects are also built eagerly so Start can fall
// back to serving in-process if clustering fails to come up (Supervisor
// sets FallbackActive in that case).
func (a *App) initSupervised(stages []pipeline.Stage) error {
	spawn, err := buildSpawnFunc(a.cfg)
	if err != nil {
		return err
	}

	a.bus = ipc.New(a.slogLogger)
	a.supervisor = cluster.New(a.cfg.Cluster, spawn, a.bus, a.logger)
	a.admin.Supervisor = a.supervisor

	if a.cfg.Cluster.AutoScaling.Enabled {
		a.scaler = autoscaler.New(a.cfg.Cluster.AutoScaling, a.logger)
	}

	if path := os.Getenv(config.ConfigFileEnvVar); path != "" {
		w, err := newConfigWatcher(path, a.supervisor.Broadcast, a.logger)
		if err != nil {
			a.logger.Warn("config watcher unavailable, hot-reload disabled", observability.Err(err))
		} else {
			a.watcher = w
		}
	}

	return a.buildServers("default", a.cfg.Server, stages)
}

func (a *App) buildServers(id string, srvCfg config.ServerSection, stages []pipeline.Stage) error {
	if a.cfg.MultiServer.Enabled {
		m, err := multiserver.New(a.cfg.MultiServer, srvCfg, a.cfg.NotFound, a.trie, stages, a.ctrl, a.cache, a.cfg.Cache.TTL, a.slogLogger)
		if err != nil {
			return fmt.Errorf("app: build multi-server: %w", err)
		}
		a.multi = m
		return nil
	}
	a.server = httpserver.New(id, srvCfg, a.cfg.NotFound, a.trie, stages, a.ctrl, a.cache, a.cfg.Cache.TTL, a.slogLogger)
	return nil
}

func buildSlogLogger(cfg config.LogSection) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "console" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// Run starts every component and blocks until SIGINT/SIGTERM or ctx is
// cancelled, then drains within ShutdownTimeout — the teacher's
// GracefulShutdown idiom generalized from one http.Server to the
// framework's full component set.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start binds and begins serving without blocking. Most callers want Run;
// Start is exposed separately for tests and for hosts that manage their
// own signal handling.
func (a *App) Start(ctx context.Context) error {
	if a.watcher != nil {
		a.watcher.Start()
	}

	switch {
	case a.runtime != nil:
		a.runtime.Run(a.cfg.Cluster.HealthCheck.Interval)
		if _, err := a.server.Start(); err != nil {
			return fmt.Errorf("app: start worker server: %w", err)
		}

	case a.supervisor != nil:
		if err := a.supervisor.Start(ctx, initialWorkerCount(a.cfg.Cluster)); err != nil {
			return fmt.Errorf("app: start cluster: %w", err)
		}
		if a.supervisor.FallbackActive() {
			if err := a.startLocal(); err != nil {
				return err
			}
		} else if a.scaler != nil {
			go a.runAutoscaleLoop(ctx, a.scaleStop)
		}

	default:
		if err := a.startLocal(); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) startLocal() error {
	if a.multi != nil {
		if _, err := a.multi.Start(); err != nil {
			return fmt.Errorf("app: start multi-server: %w", err)
		}
		return nil
	}
	if _, err := a.server.Start(); err != nil {
		return fmt.Errorf("app: start server: %w", err)
	}
	return nil
}

func initialWorkerCount(cfg config.ClusterSection) int {
	if cfg.AutoScaling.Enabled && cfg.AutoScaling.MinWorkers > 0 {
		return cfg.AutoScaling.MinWorkers
	}
	return 1
}

// Shutdown stops whichever components are running.
func (a *App) Shutdown(ctx context.Context) error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.scaler != nil {
		close(a.scaleStop)
	}

	var err error
	switch {
	case a.supervisor != nil && !a.supervisor.FallbackActive():
		err = a.supervisor.Stop(ctx)
	case a.multi != nil:
		err = a.multi.Stop(ctx)
	case a.server != nil:
		err = a.server.Shutdown(ctx)
	}

	if a.cache != nil {
		a.cache.Close()
	}
	return err
}

// Router exposes the trie for callers that want to register routes after
// New but before Run — the admin surface is already mounted on it.
func (a *App) Router() *router.Trie {
	return a.trie
}
