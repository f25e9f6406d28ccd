// Package portacquire binds a listening TCP socket, falling back to a
// nearby port when the desired one is already in use.
package portacquire

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"syscall"
)

// Strategy selects how the next candidate port is chosen after an
// EADDRINUSE.
type Strategy string

const (
	StrategyIncrement Strategy = "increment"
	StrategyRandom    Strategy = "random"
)

// Event is emitted whenever Acquire lands on a port other than the one
// requested.
type Event struct {
	Desired int
	Actual  int
}

// ErrExhausted is returned once maxAttempts candidate ports have all
// failed to bind.
var ErrExhausted = errors.New("portacquire: exhausted all attempts without binding a port")

// Acquirer binds a listener for a host, stepping away from the desired
// port on conflict according to Strategy.
type Acquirer struct {
	logger *slog.Logger
	onSwitch func(Event)
}

// New builds an Acquirer. onSwitch, if non-nil, is invoked once if the
// bound port differs from the desired one.
func New(logger *slog.Logger, onSwitch func(Event)) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{logger: logger, onSwitch: onSwitch}
}

// Acquire attempts to bind host:desiredPort, stepping to the next
// candidate per strategy on EADDRINUSE, up to maxAttempts tries. It
// returns the bound listener and the actual port it ended up on.
func (a *Acquirer) Acquire(host string, desiredPort int, strategy Strategy, maxAttempts int) (net.Listener, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	port := desiredPort
	for attempt := 0; attempt < maxAttempts; attempt++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
		if err == nil {
			if port != desiredPort {
				a.logger.Info("port acquisition fell back to a different port",
					"desired", desiredPort, "actual", port, "attempts", attempt+1)
				if a.onSwitch != nil {
					a.onSwitch(Event{Desired: desiredPort, Actual: port})
				}
			}
			return ln, port, nil
		}

		if !isAddrInUse(err) {
			return nil, 0, err
		}

		port = nextCandidate(port, strategy)
	}

	return nil, 0, fmt.Errorf("%w: desired=%d strategy=%s attempts=%d",
		ErrExhausted, desiredPort, strategy, maxAttempts)
}

func nextCandidate(current int, strategy Strategy) int {
	if strategy == StrategyRandom {
		return 10000 + rand.Intn(50000)
	}
	return current + 1
}

func isAddrInUse(err error) bool {
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		return sysErr == syscall.EADDRINUSE
	}
	return false
}
