package segments

import (
	"context"
	"strings"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
)

// Static is a segment with fixed text, typically a separator or label. Its
// template is rendered with no values on every poll.
type Static struct {
	Base
	notifier notify.Notifier
}

// NewStatic returns a Static segment. The text is the template itself. A nil
// notifier discards forced notifications.
func NewStatic(opts Options, n notify.Notifier) (*Static, error) {
	base, err := NewBase("static", opts)
	if err != nil {
		return nil, err
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Static{Base: base, notifier: n}, nil
}

// Poll returns an empty, non-nil result so the template is rendered. A forced
// poll echoes the label as a notification.
func (s *Static) Poll(ctx context.Context, notifyUser bool) (Values, error) {
	if notifyUser {
		_ = s.notifier.Notify(ctx, notify.Notification{
			Summary: "barpulse",
			Body:    strings.TrimSpace(StripTags(s.opts.Format)),
			Urgency: notify.Low,
		})
	}
	return Values{}, nil
}
