// Package segments defines the contract, registry, and rendering rules for
// barpulse status-bar segments. Each segment (memory, cpu, battery, mail, ...)
// implements the Segment interface and is polled by the engine on its own
// interval; its result is rendered into a tagged text fragment that occupies
// one slot of the status line.
package segments

import (
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"
)

// DefaultInterval is used when a segment is configured without an interval.
const DefaultInterval = time.Second

// MaxColor is the largest color index a segment may request.
const MaxColor = 15

// Values is the result of one poll: placeholder name to value. A nil Values
// means the source had nothing to report this cycle.
type Values map[string]any

// Segment is the interface all status sources implement. Implementations
// live in sub-packages (e.g., pkg/segments/sysmetrics) and embed Base for
// the shared Name, Interval, and Render behaviour.
type Segment interface {
	// Name returns a human-readable identifier (e.g., "battery").
	Name() string

	// Interval returns how long the engine waits between polls.
	Interval() time.Duration

	// Poll performs one read of the source. When notify is true the segment
	// also sends a desktop notification summarising its state. A nil Values
	// or a non-nil error is "no result": the previously rendered text stays.
	Poll(ctx context.Context, notify bool) (Values, error)

	// Render fills the segment template with v and tags it with the given
	// 0-based slot index.
	Render(index int, v Values) (string, error)
}

// Options is the configuration surface shared by every segment.
type Options struct {
	// Format is a text/template rendered with the poll Values. Required.
	Format string

	// Interval between polls. Zero uses DefaultInterval.
	Interval time.Duration

	// Icons holds glyph groups available to the icon template func. A flat
	// list is a single group.
	Icons [][]string

	// Foreground and Background are optional color indices in 0..MaxColor.
	Foreground *int
	Background *int
}

// ErrNoFormat is returned when a segment is constructed without a template.
var ErrNoFormat = errors.New("segment format is required")

// Base carries the immutable descriptor of a segment. Concrete segments embed
// it and only add Poll.
type Base struct {
	name string
	opts Options
	tmpl *template.Template
}

// NewBase validates opts and parses the format template.
func NewBase(name string, opts Options) (Base, error) {
	if opts.Format == "" {
		return Base{}, fmt.Errorf("%s: %w", name, ErrNoFormat)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	for _, c := range []*int{opts.Foreground, opts.Background} {
		if c != nil && (*c < 0 || *c > MaxColor) {
			return Base{}, fmt.Errorf("%s: color %d out of range 0..%d", name, *c, MaxColor)
		}
	}

	tmpl, err := template.New(name).Option("missingkey=error").Funcs(templateFuncs(opts.Icons)).Parse(opts.Format)
	if err != nil {
		return Base{}, fmt.Errorf("%s: parse format: %w", name, err)
	}

	return Base{name: name, opts: opts, tmpl: tmpl}, nil
}

// Name returns the segment name.
func (b Base) Name() string { return b.name }

// Interval returns the poll interval.
func (b Base) Interval() time.Duration { return b.opts.Interval }

// Options returns a copy of the segment's options.
func (b Base) Options() Options { return b.opts }

// Render executes the template with v and applies the tagging bytes.
func (b Base) Render(index int, v Values) (string, error) {
	text, err := b.execute(index, v)
	if err != nil {
		return "", err
	}
	return Tag(index, b.opts.Foreground, b.opts.Background, text), nil
}
