package cluster

import (
	"encoding/json"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/httpserver"
	"github.com/iruldev/xyprissgo/internal/ipc"
	"github.com/iruldev/xyprissgo/internal/observability"
)

// WorkerEnvVar is set by the supervisor in a spawned worker's environment
// so the child knows to run as a worker and skip its own cluster
// initialization, preventing recursive spawn.
const WorkerEnvVar = "XYPRISSGO_WORKER_ID"

// Runtime is the per-child WorkerRuntime: it owns one httpserver.Server,
// reports heartbeats over its Link back to the supervisor, and handles
// shutdown requests received over the bus. A config_update envelope is
// decoded and logged; the running server's settings are left unchanged.
type Runtime struct {
	id     string
	bus    *ipc.Bus
	server *httpserver.Server
	logger observability.Logger

	inflight  int64
	shutdownC chan struct{}
}

// NewRuntime wires a Runtime around an already-constructed server. The
// server itself is built the same way a single-process deployment builds
// one; Runtime only adds the supervisor link on top.
func NewRuntime(id string, bus *ipc.Bus, server *httpserver.Server, logger observability.Logger) *Runtime {
	if logger == nil {
		logger = observability.NewNopLoggerInterface()
	}
	return &Runtime{id: id, bus: bus, server: server, logger: logger, shutdownC: make(chan struct{})}
}

// Server returns the httpserver.Server this runtime owns, for the
// composition root to Start/Shutdown alongside the runtime's lifecycle.
func (r *Runtime) Server() *httpserver.Server {
	return r.server
}

// SetServer attaches the Server this runtime fronts. Composition roots
// that need the inflight-tracking stage (see BeginRequest/EndRequest) to
// close over the Runtime before the Server it instruments exists call
// this once construction completes, instead of passing the Server to
// NewRuntime.
func (r *Runtime) SetServer(server *httpserver.Server) {
	r.server = server
}

// IsWorkerProcess reports whether the current process was spawned by a
// ClusterSupervisor (its own cluster initialization must stay disabled).
func IsWorkerProcess() bool {
	return os.Getenv(WorkerEnvVar) != ""
}

// Run starts the runtime: announces readiness, begins heartbeat
// reporting, and subscribes to config_update and shutdown envelopes.
// It does not block; select on Done to block until a shutdown request
// arrives.
func (r *Runtime) Run(heartbeatInterval time.Duration) {
	r.bus.On(ipc.KindShutdown, r.onShutdown)
	r.bus.On(ipc.KindConfigUpdate, r.onConfigUpdate)

	_ = r.bus.Broadcast(ipc.Envelope{ID: r.id + "-ready", Kind: ipc.KindReady})

	if heartbeatInterval <= 0 {
		heartbeatInterval = 5 * time.Second
	}
	go r.heartbeatLoop(heartbeatInterval)
}

func (r *Runtime) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sendHeartbeat()
		case <-r.shutdownC:
			return
		}
	}
}

func (r *Runtime) sendHeartbeat() {
	payload, err := json.Marshal(struct {
		CPUPercent float64 `json:"cpuPercent"`
		MemPercent float64 `json:"memPercent"`
		Inflight   int     `json:"inflight"`
		Goroutines int     `json:"goroutines"`
	}{
		Inflight:   int(atomic.LoadInt64(&r.inflight)),
		Goroutines: runtime.NumGoroutine(),
	})
	if err != nil {
		return
	}
	_ = r.bus.Broadcast(ipc.Envelope{ID: r.id + "-hb", Kind: ipc.KindHeartbeat, Payload: payload})
}

// BeginRequest/EndRequest let the owning server bracket each handled
// request so heartbeats report an accurate inflight count.
func (r *Runtime) BeginRequest() { atomic.AddInt64(&r.inflight, 1) }
func (r *Runtime) EndRequest()   { atomic.AddInt64(&r.inflight, -1) }

func (r *Runtime) onShutdown(ipc.Envelope) {
	close(r.shutdownC)
}

// Done returns a channel closed once a shutdown envelope has been
// received from the supervisor.
func (r *Runtime) Done() <-chan struct{} {
	return r.shutdownC
}

func (r *Runtime) onConfigUpdate(env ipc.Envelope) {
	var section config.ServerSection
	if err := json.Unmarshal(env.Payload, &section); err != nil {
		r.logger.Warn("discarding malformed config_update envelope", observability.Err(err))
		return
	}
	r.logger.Info("received hot config update", observability.String("worker_id", r.id))
}
