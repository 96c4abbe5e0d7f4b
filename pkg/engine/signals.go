package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Real-time signal range on Linux. Signal BaseSignal+k forces segment k-1,
// which is what a status click handler sends with `kill -$((34+k))`.
const (
	BaseSignal = 34
	MaxSignal  = 64
)

// ErrTerminated is returned by HandleSignals when a termination signal
// arrives.
var ErrTerminated = errors.New("terminated")

// TerminationSignals are the requests that shut the engine down.
var TerminationSignals = []os.Signal{unix.SIGINT, unix.SIGTERM}

// ForceSignal returns the signal that forces segment index.
func ForceSignal(index int) os.Signal {
	return unix.Signal(BaseSignal + index + 1)
}

// SignalIndex maps a force signal to its segment index.
func SignalIndex(sig os.Signal) (int, bool) {
	s, ok := sig.(unix.Signal)
	if !ok {
		return 0, false
	}
	n := int(s)
	if n <= BaseSignal || n > MaxSignal {
		return 0, false
	}
	return n - BaseSignal - 1, true
}

// ForceSignals lists the force signals for the first n segments.
func ForceSignals(n int) []os.Signal {
	if n > MaxSignal-BaseSignal {
		n = MaxSignal - BaseSignal
	}
	sigs := make([]os.Signal, 0, n)
	for i := 0; i < n; i++ {
		sigs = append(sigs, ForceSignal(i))
	}
	return sigs
}

func isTermination(sig os.Signal) bool {
	for _, t := range TerminationSignals {
		if sig == t {
			return true
		}
	}
	return false
}

// HandleSignals consumes ch until ctx is done or a termination signal is
// received, in which case it returns an error wrapping ErrTerminated. Force
// signals for indices without a segment are ignored.
func (e *Engine) HandleSignals(ctx context.Context, ch <-chan os.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			if isTermination(sig) {
				e.logger.Info("received shutdown signal", "signal", sig)
				return fmt.Errorf("%v: %w", sig, ErrTerminated)
			}
			idx, ok := SignalIndex(sig)
			if !ok {
				continue
			}
			if err := e.Force(idx); err != nil {
				e.logger.Debug("ignoring force signal", "signal", int(sig.(unix.Signal)), "error", err)
				continue
			}
			e.logger.Debug("force update", "index", idx)
		}
	}
}
