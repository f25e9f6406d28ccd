package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/ipc"
	"github.com/iruldev/xyprissgo/internal/observability"
)

const (
	defaultWorkerStartTimeout  = 8 * time.Second
	defaultClusterStartTimeout = 15 * time.Second
	defaultStopTimeout         = 8 * time.Second
)

// EventKind classifies a Supervisor lifecycle Event.
type EventKind string

const (
	EventWorkerStart   EventKind = "start"
	EventWorkerExit    EventKind = "exit"
	EventWorkerRestart EventKind = "restart"
	EventHealthStatus  EventKind = "health-status"
)

// Event is emitted on the Supervisor's event channel for operators and
// the admin introspection surface to observe.
type Event struct {
	Kind      EventKind
	WorkerID  string
	State     State
	Err       error
	Timestamp time.Time
}

// SpawnFunc starts one worker process for id, with env merged into its
// environment, and returns the unstarted *exec.Cmd — Supervisor calls
// Bus.AttachCmd on it, which performs the actual Start(). The production
// SpawnFunc (internal/app's buildSpawnFunc) re-executes the current binary
// with its own arguments and sets WorkerEnvVar to id in the child's
// environment; tests substitute a command that exits immediately.
type SpawnFunc func(id string, env []string) (*exec.Cmd, error)

// Supervisor is the parent-process ClusterSupervisor: it spawns workers,
// wires their IPC links, tracks each one's Descriptor through the
// starting/alive/degraded/stopping/dead state machine, and respawns them
// with backoff when they die and respawn is enabled.
type Supervisor struct {
	cfg    config.ClusterSection
	spawn  SpawnFunc
	bus    *ipc.Bus
	logger observability.Logger

	mu            sync.Mutex
	workers       map[string]*Descriptor
	breakers      map[string]*gobreaker.CircuitBreaker
	cmds          map[string]*exec.Cmd
	waiters       map[string]chan struct{}
	draining      map[string]bool
	nextWorkerSeq int

	events chan Event

	fallback bool

	stopOnce sync.Once
	stopCh   chan struct{}

	// WorkerStartTimeout overrides defaultWorkerStartTimeout when set,
	// for tests that cannot afford to wait 8s on a worker that never
	// becomes ready.
	WorkerStartTimeout time.Duration
}

// New builds a Supervisor. bus must be fresh (no links attached yet).
func New(cfg config.ClusterSection, spawn SpawnFunc, bus *ipc.Bus, logger observability.Logger) *Supervisor {
	if logger == nil {
		logger = observability.NewNopLoggerInterface()
	}
	return &Supervisor{
		cfg:      cfg,
		spawn:    spawn,
		bus:      bus,
		logger:   logger,
		workers:  map[string]*Descriptor{},
		breakers: map[string]*gobreaker.CircuitBreaker{},
		cmds:     map[string]*exec.Cmd{},
		waiters:  map[string]chan struct{}{},
		draining: map[string]bool{},
		events:   make(chan Event, 64),
		stopCh:   make(chan struct{}),
	}
}

// Events returns the channel Event values are published on. The channel
// is never closed by Stop, so callers should select on their own done
// signal alongside it.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// FallbackActive reports whether the supervisor gave up on clustering
// during Start and the caller should run all request handling in the
// parent process instead.
func (s *Supervisor) FallbackActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback
}

func (s *Supervisor) emit(ev Event) {
	ev.Timestamp = time.Now()
	select {
	case s.events <- ev:
	default:
	}
}

// Start spawns initialWorkers children and waits for each to send a ready
// envelope within workerStartTimeout, and for the whole cluster within
// clusterStartTimeout. Only the ready envelope counts: a worker that stays
// up without sending one is treated as failed. If any worker fails
// to come up in time, clustering is abandoned: Start returns nil and
// FallbackActive reports true, so the caller serves requests in the
// parent process instead of aborting the server.
func (s *Supervisor) Start(ctx context.Context, initialWorkers int) error {
	if initialWorkers <= 0 {
		initialWorkers = 1
	}

	s.bus.On(ipc.KindReady, s.onReady)
	s.bus.On(ipc.KindHeartbeat, s.onHeartbeat)
	s.bus.On(ipc.KindMetrics, s.onMetrics)

	clusterCtx, cancel := context.WithTimeout(ctx, defaultClusterStartTimeout)
	defer cancel()

	ready := make(chan error, initialWorkers)
	for i := 0; i < initialWorkers; i++ {
		id := fmt.Sprintf("worker-%d", i)
		go func() {
			ready <- s.startWorker(clusterCtx, id)
		}()
	}

	for i := 0; i < initialWorkers; i++ {
		select {
		case err := <-ready:
			if err != nil {
				s.logger.Warn("worker failed to become ready, falling back to single-process mode",
					observability.Err(err))
				s.mu.Lock()
				s.fallback = true
				s.mu.Unlock()
				return nil
			}
		case <-clusterCtx.Done():
			s.logger.Warn("cluster start timed out, falling back to single-process mode")
			s.mu.Lock()
			s.fallback = true
			s.mu.Unlock()
			return nil
		}
	}

	return nil
}

func (s *Supervisor) startWorker(ctx context.Context, id string) error {
	s.setState(id, StateStarting)

	cmd, err := s.spawn(id, nil)
	if err != nil {
		return err
	}

	link, err := s.bus.AttachCmd(id, cmd)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cmds[id] = cmd
	s.breakers[id] = newWorkerBreaker(id, s.cfg.HealthCheck)
	s.mu.Unlock()
	_ = link

	startCtx, cancel := context.WithTimeout(ctx, s.workerStartTimeout())
	defer cancel()

	readyCh := make(chan struct{}, 1)
	s.mu.Lock()
	s.waiters[id] = readyCh
	s.mu.Unlock()

	select {
	case <-readyCh:
		s.setState(id, StateAlive)
		s.emit(Event{Kind: EventWorkerStart, WorkerID: id, State: StateAlive})
		go s.waitExit(id, cmd)
		return nil
	case <-startCtx.Done():
		return fmt.Errorf("worker %s did not become ready within %s", id, s.workerStartTimeout())
	}
}

func (s *Supervisor) workerStartTimeout() time.Duration {
	if s.WorkerStartTimeout > 0 {
		return s.WorkerStartTimeout
	}
	return defaultWorkerStartTimeout
}

func (s *Supervisor) waitExit(id string, cmd *exec.Cmd) {
	err := cmd.Wait()
	s.bus.Detach(id)
	s.setState(id, StateDead)
	s.emit(Event{Kind: EventWorkerExit, WorkerID: id, State: StateDead, Err: err})

	s.mu.Lock()
	drained := s.draining[id]
	delete(s.draining, id)
	s.mu.Unlock()

	if s.cfg.ProcessManagement.Respawn && !drained {
		s.respawn(id)
	}
}

// ScaleUp starts n additional workers beyond the initial Start set, for
// the autoscaler's scale_up decisions. Each gets a unique id so it never
// collides with the initial worker-<i> pool or a previous ScaleUp call.
func (s *Supervisor) ScaleUp(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		s.mu.Lock()
		id := fmt.Sprintf("worker-scale-%d", s.nextWorkerSeq)
		s.nextWorkerSeq++
		s.mu.Unlock()

		if err := s.startWorker(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ScaleDown gracefully stops up to n alive/degraded workers for the
// autoscaler's scale_down decisions, marking each as draining so waitExit
// does not respawn it once it exits.
func (s *Supervisor) ScaleDown(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	ids := make([]string, 0, n)
	for id, d := range s.workers {
		if len(ids) >= n {
			break
		}
		if d.State == StateAlive || d.State == StateDegraded {
			ids = append(ids, id)
			s.draining[id] = true
		}
	}
	s.mu.Unlock()

	timeout := s.cfg.ProcessManagement.GracefulShutdownTimeout
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stopErr error
	for _, id := range ids {
		s.setState(id, StateStopping)
		if err := s.bus.SendTo(id, ipc.Envelope{ID: id + "-shutdown", Kind: ipc.KindShutdown}); err != nil && stopErr == nil {
			stopErr = err
		}
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.allStopped(ids) {
			return stopErr
		}
		select {
		case <-ticker.C:
		case <-stopCtx.Done():
			return stopErr
		}
	}
}

// respawn restarts a dead worker after a constant RestartDelay backoff
// (one retry), bounded by MaxRestarts within the process's lifetime,
// grounded on the teacher's
// sethvargo/go-retry retrier shape.
func (s *Supervisor) respawn(id string) {
	s.mu.Lock()
	d := s.workers[id]
	count := 0
	if d != nil {
		count = d.RestartCount
	}
	s.mu.Unlock()

	maxRestarts := s.cfg.ProcessManagement.MaxRestarts
	if maxRestarts > 0 && count >= maxRestarts {
		s.logger.Warn("worker exceeded max restarts, not respawning", observability.String("worker_id", id))
		return
	}

	delay := s.cfg.ProcessManagement.RestartDelay
	if delay <= 0 {
		delay = time.Second
	}
	backoff := retry.WithMaxRetries(1, retry.NewConstant(delay))

	ctx := context.Background()
	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		s.mu.Lock()
		s.workers[id] = &Descriptor{ID: id, State: StateDead, RestartCount: count + 1}
		s.mu.Unlock()
		s.setState(id, StateStarting)

		if err := s.startWorker(ctx, id); err != nil {
			return retry.RetryableError(err)
		}
		s.emit(Event{Kind: EventWorkerRestart, WorkerID: id, State: StateAlive})
		return nil
	})
}

func (s *Supervisor) setState(id string, to State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.workers[id]
	if !ok {
		d = &Descriptor{ID: id, StartedAt: time.Now()}
		s.workers[id] = d
	}
	if d.State != "" && !canTransition(d.State, to) {
		s.logger.Warn("rejected invalid worker state transition",
			observability.String("worker_id", id), observability.String("from", string(d.State)), observability.String("to", string(to)))
		return
	}
	d.State = to
	if to == StateAlive {
		d.LastHeartbeat = time.Now()
	}
}

// newWorkerBreaker builds the gobreaker-backed health circuit for one
// worker: it trips to open (mapped onto State=degraded) after MaxFailures
// consecutive failed probes. RecordProbe replaces an open breaker with a
// fresh closed one on the next successful probe (mapped onto alive),
// following the teacher's
// internal/infra/resilience/circuit_breaker.go composition.
func newWorkerBreaker(id string, cfg config.HealthCheckSection) *gobreaker.CircuitBreaker {
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 2
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        id,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     interval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
	})
}

// RecordProbe feeds one health-probe result for id into its circuit
// breaker, driving the alive<->degraded transitions.
func (s *Supervisor) RecordProbe(id string, healthy bool) {
	s.mu.Lock()
	breaker := s.breakers[id]
	s.mu.Unlock()
	if breaker == nil {
		return
	}
	if healthy && breaker.State() == gobreaker.StateOpen {
		breaker = newWorkerBreaker(id, s.cfg.HealthCheck)
		s.mu.Lock()
		s.breakers[id] = breaker
		s.mu.Unlock()
	}

	_, _ = breaker.Execute(func() (any, error) {
		if !healthy {
			return nil, errProbeFailed
		}
		return nil, nil
	})

	switch breaker.State() {
	case gobreaker.StateOpen:
		s.setState(id, StateDegraded)
	case gobreaker.StateClosed, gobreaker.StateHalfOpen:
		s.mu.Lock()
		d := s.workers[id]
		s.mu.Unlock()
		if d != nil && d.State == StateDegraded {
			s.setState(id, StateAlive)
		}
	}
	s.emit(Event{Kind: EventHealthStatus, WorkerID: id, State: s.stateOf(id)})
}

var errProbeFailed = errors.New("cluster: health probe failed")

func (s *Supervisor) stateOf(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.workers[id]; ok {
		return d.State
	}
	return ""
}

// Descriptors returns a snapshot of every tracked worker, for the admin
// introspection surface.
func (s *Supervisor) Descriptors() []Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Descriptor, 0, len(s.workers))
	for _, d := range s.workers {
		out = append(out, *d)
	}
	return out
}

func (s *Supervisor) onReady(env ipc.Envelope) {
	s.mu.Lock()
	ch := s.waiters[env.From]
	s.mu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Supervisor) onHeartbeat(env ipc.Envelope) {
	s.mu.Lock()
	d, ok := s.workers[env.From]
	s.mu.Unlock()
	if !ok {
		return
	}
	var payload struct {
		CPUPercent float64 `json:"cpuPercent"`
		MemPercent float64 `json:"memPercent"`
		Inflight   int     `json:"inflight"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return
	}
	s.mu.Lock()
	d.LastHeartbeat = time.Now()
	d.CPUPercent = payload.CPUPercent
	d.MemPercent = payload.MemPercent
	d.Inflight = payload.Inflight
	s.mu.Unlock()
	s.RecordProbe(env.From, true)
}

func (s *Supervisor) onMetrics(env ipc.Envelope) {
	s.onHeartbeat(env)
}

// Broadcast forwards env to every attached worker. It is a no-op (never
// an error) when clustering fell back to single-process mode, so callers
// never need to branch on cluster state before using it.
func (s *Supervisor) Broadcast(env ipc.Envelope) error {
	if s.FallbackActive() {
		return nil
	}
	return s.bus.Broadcast(env)
}

// Stop asks every alive worker to shut down gracefully, waiting up to
// gracefulShutdownTimeout (default 8s) before the caller is expected to
// kill remaining processes itself.
func (s *Supervisor) Stop(ctx context.Context) error {
	var stopErr error
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	s.mu.Lock()
	ids := make([]string, 0, len(s.workers))
	for id, d := range s.workers {
		if d.State == StateAlive || d.State == StateDegraded {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	timeout := s.cfg.ProcessManagement.GracefulShutdownTimeout
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, id := range ids {
		s.setState(id, StateStopping)
		if err := s.bus.SendTo(id, ipc.Envelope{ID: id + "-shutdown", Kind: ipc.KindShutdown}); err != nil && stopErr == nil {
			stopErr = err
		}
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.allStopped(ids) {
			return stopErr
		}
		select {
		case <-ticker.C:
		case <-stopCtx.Done():
			return stopErr
		}
	}
}

func (s *Supervisor) allStopped(ids []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if d, ok := s.workers[id]; ok && d.State != StateDead {
			return false
		}
	}
	return true
}
