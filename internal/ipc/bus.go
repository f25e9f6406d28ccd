package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRPCTimeout is used by Request when the caller passes a
// non-positive timeout.
const DefaultRPCTimeout = 5 * time.Second

var (
	// ErrNoLinks is returned by SendRandom when no link is attached.
	ErrNoLinks = errors.New("ipc: no links attached")
	// ErrUnknownLink is returned when addressing a link id that was never
	// attached or has since detached.
	ErrUnknownLink = errors.New("ipc: unknown link")
	// ErrRPCTimeout is returned by Request when no reply arrives in time.
	ErrRPCTimeout = errors.New("ipc: rpc request timed out")
)

// Handler processes one received Envelope.
type Handler func(env Envelope)

// Bus is a registry of attached Links plus per-Kind handler subscriptions.
// One Bus runs in the supervisor (with one Link per worker) and one runs
// in each worker (with a single Link back to the supervisor).
type Bus struct {
	logger   *slog.Logger
	maxBytes int

	mu       sync.RWMutex
	links    map[string]*Link
	handlers map[Kind][]Handler

	pending sync.Map // id string -> chan Envelope
}

// New builds an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:   logger,
		maxBytes: DefaultMaxMessageBytes,
		links:    map[string]*Link{},
		handlers: map[Kind][]Handler{},
	}
}

// On registers a handler invoked for every received envelope of kind.
// Multiple handlers for the same kind all run, in registration order.
func (b *Bus) On(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Attach wires a named link over an existing writer/reader pair (typically
// one side of an os/exec stdio pipe) and starts its read loop. The read
// loop exits, detaching the link, when r returns EOF or a read error.
func (b *Bus) Attach(id string, w io.Writer, closer io.Closer, r io.Reader) *Link {
	link := newLink(id, w, closer, b.maxBytes)

	b.mu.Lock()
	b.links[id] = link
	b.mu.Unlock()

	go b.readLoop(id, r)
	return link
}

// AttachCmd starts cmd with stdio pipes wired into the bus under id,
// mirroring the teacher's exec.Command+StdinPipe+StdoutPipe respawn idiom
// (cmd/dev-console/bridge.go), generalized from a one-shot daemon handshake
// to a long-lived bidirectional link.
func (b *Bus) AttachCmd(id string, cmd *exec.Cmd) (*Link, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return b.Attach(id, stdin, stdin, stdout), nil
}

// Detach removes a link without waiting for its read loop to notice EOF,
// for the supervisor's respawn path after it has already declared a
// worker dead.
func (b *Bus) Detach(id string) {
	b.mu.Lock()
	delete(b.links, id)
	b.mu.Unlock()
}

func (b *Bus) readLoop(id string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), b.maxBytes+1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > b.maxBytes {
			b.logger.Warn("ipc: dropping oversize message", "from", id, "bytes", len(line))
			continue
		}
		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			b.logger.Warn("ipc: dropping malformed envelope", "from", id, "err", err)
			continue
		}
		env.From = id
		b.dispatch(env)
	}

	b.mu.Lock()
	delete(b.links, id)
	b.mu.Unlock()
}

func (b *Bus) dispatch(env Envelope) {
	if env.Kind == KindRPCReply {
		if chAny, ok := b.pending.LoadAndDelete(env.ID); ok {
			chAny.(chan Envelope) <- env
			return
		}
	}

	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[env.Kind]...)
	b.mu.RUnlock()

	for _, h := range hs {
		h(env)
	}
}

// Broadcast sends env to every attached link, continuing past individual
// send failures and returning the first error encountered, if any.
func (b *Bus) Broadcast(env Envelope) error {
	b.mu.RLock()
	links := make([]*Link, 0, len(b.links))
	for _, l := range b.links {
		links = append(links, l)
	}
	b.mu.RUnlock()

	var firstErr error
	for _, l := range links {
		if err := l.Send(env); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendTo addresses env to one specific link by id.
func (b *Bus) SendTo(id string, env Envelope) error {
	b.mu.RLock()
	link, ok := b.links[id]
	b.mu.RUnlock()
	if !ok {
		return ErrUnknownLink
	}
	env.To = id
	return link.Send(env)
}

// SendRandom addresses env to one uniformly-chosen attached link, for work
// that any worker may handle.
func (b *Bus) SendRandom(env Envelope) error {
	b.mu.RLock()
	ids := make([]string, 0, len(b.links))
	for id := range b.links {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	if len(ids) == 0 {
		return ErrNoLinks
	}
	return b.SendTo(ids[rand.Intn(len(ids))], env)
}

// Request sends a rpc_request envelope to id and blocks for its rpc_reply,
// the context, or timeout (DefaultRPCTimeout when timeout <= 0), whichever
// comes first.
func (b *Bus) Request(ctx context.Context, id string, payload json.RawMessage, timeout time.Duration) (Envelope, error) {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}

	reqID := uuid.NewString()
	ch := make(chan Envelope, 1)
	b.pending.Store(reqID, ch)
	defer b.pending.Delete(reqID)

	if err := b.SendTo(id, Envelope{ID: reqID, Kind: KindRPCRequest, Payload: payload}); err != nil {
		return Envelope{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		return Envelope{}, ErrRPCTimeout
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// LinkIDs returns the ids of every currently attached link.
func (b *Bus) LinkIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.links))
	for id := range b.links {
		ids = append(ids, id)
	}
	return ids
}
