// Package dunst provides a segment showing whether the notification daemon
// is paused (do-not-disturb).
package dunst

import (
	"context"
	"fmt"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// Dunst reports the paused state.
//
// Values: paused (bool).
type Dunst struct {
	segments.Base
	notifier notify.Notifier
}

// New creates a dunst segment querying n.
func New(opts segments.Options, n notify.Notifier) (*Dunst, error) {
	base, err := segments.NewBase("dunst", opts)
	if err != nil {
		return nil, err
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Dunst{Base: base, notifier: n}, nil
}

// Poll implements segments.Segment. A forced poll sends one notification
// with the current state; while paused, dunst queues it until resumed.
func (d *Dunst) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	paused, err := d.notifier.Paused(ctx)
	if err != nil {
		return nil, fmt.Errorf("dunst: %w", err)
	}
	if notifyUser {
		body := "Enabled"
		if paused {
			body = "Paused"
		}
		_ = d.notifier.Notify(ctx, notify.Notification{
			Summary: "Notifications",
			Body:    body,
			Urgency: notify.Low,
		})
	}
	return segments.Values{"paused": paused}, nil
}
