// Package notify defines the desktop notification capability handed to
// segments. Segments only notify when the engine forces an update; the
// engine itself never talks to the notification daemon.
package notify

import (
	"context"
	"sync"
	"time"
)

// Urgency mirrors the freedesktop notification urgency levels.
type Urgency byte

const (
	Low Urgency = iota
	Normal
	Critical
)

// DefaultTimeout is used when a Notification has no timeout set.
const DefaultTimeout = 3 * time.Second

// Notification is a single desktop pop-up.
type Notification struct {
	Summary string
	Body    string
	Icon    string

	// Value, when set, is a 0-100 percentage rendered as an ASCII gauge
	// appended to the body.
	Value *float64

	Urgency Urgency
	Timeout time.Duration
}

// Percent is a helper for filling Notification.Value.
func Percent(v float64) *float64 { return &v }

// FullBody returns the body with the gauge line appended when Value is set.
func (n Notification) FullBody() string {
	if n.Value == nil {
		return n.Body
	}
	g := Gauge(*n.Value, DefaultGaugeWidth)
	if n.Body == "" {
		return g
	}
	return n.Body + "\n" + g
}

// Notifier is the notification sink used by segments.
type Notifier interface {
	// Notify shows n. Failures are returned but callers treat them as
	// transient.
	Notify(ctx context.Context, n Notification) error

	// Paused reports whether the notification daemon is paused.
	Paused(ctx context.Context) (bool, error)
}

// Nop discards notifications and is never paused.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
func (Nop) Paused(context.Context) (bool, error)       { return false, nil }

// Recorder implements Notifier for testing. It keeps every notification it
// receives and returns a configurable paused state.
type Recorder struct {
	mu     sync.Mutex
	sent   []Notification
	paused bool
	err    error
}

// SetPaused sets the value returned by Paused.
func (r *Recorder) SetPaused(p bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = p
}

// SetError makes both Notify and Paused fail with err.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Notify records n.
func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

// Paused returns the configured paused state.
func (r *Recorder) Paused(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused, r.err
}

// Sent returns a copy of the recorded notifications.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
