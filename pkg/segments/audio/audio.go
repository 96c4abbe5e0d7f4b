// Package audio provides the ALSA mixer volume segment.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// DefaultControl is the mixer control read when none is configured.
const DefaultControl = "Master"

// Runner executes amixer with args and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func runAmixer(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "amixer", args...).Output()
}

var (
	percentRe = regexp.MustCompile(`\[(\d+)%\]`)
	switchRe  = regexp.MustCompile(`\[(on|off)\]`)

	errNoVolume = errors.New("no volume in amixer output")
)

// Mixer reads the mapped volume of one control, so the percentage follows
// perceived loudness rather than the raw register value.
//
// Values: perc, muted (bool).
type Mixer struct {
	segments.Base
	control  string
	run      Runner
	notifier notify.Notifier
}

// Option configures a Mixer.
type Option func(*Mixer)

// WithRunner replaces the amixer invocation.
func WithRunner(r Runner) Option {
	return func(m *Mixer) { m.run = r }
}

// New creates an audio segment for control. An empty control uses
// DefaultControl.
func New(opts segments.Options, control string, n notify.Notifier, mopts ...Option) (*Mixer, error) {
	base, err := segments.NewBase("audio", opts)
	if err != nil {
		return nil, err
	}
	if control == "" {
		control = DefaultControl
	}
	if n == nil {
		n = notify.Nop{}
	}
	m := &Mixer{Base: base, control: control, run: runAmixer, notifier: n}
	for _, o := range mopts {
		o(m)
	}
	return m, nil
}

// ParseAmixer extracts the volume and mute state of the first channel from
// `amixer get` output. Controls without a playback switch are never muted.
func ParseAmixer(out []byte) (perc float64, muted bool, err error) {
	m := percentRe.FindSubmatch(out)
	if m == nil {
		return 0, false, errNoVolume
	}
	perc, err = strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, false, err
	}
	if s := switchRe.FindSubmatch(out); s != nil {
		muted = string(s[1]) == "off"
	}
	return perc, muted, nil
}

// Poll implements segments.Segment.
func (m *Mixer) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	out, err := m.run(ctx, "-M", "get", m.control)
	if err != nil {
		return nil, fmt.Errorf("audio: amixer: %w", err)
	}
	perc, muted, err := ParseAmixer(out)
	if err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}

	if notifyUser {
		body := ""
		if muted {
			body = "Muted"
		}
		_ = m.notifier.Notify(ctx, notify.Notification{
			Summary: "Volume",
			Body:    body,
			Value:   notify.Percent(perc),
		})
	}

	return segments.Values{"perc": perc, "muted": muted}, nil
}
