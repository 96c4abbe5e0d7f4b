// Package sinks publishes the combined status line. A Publisher fans one
// string out to every configured Sink: the X root window title read by the
// window manager, a tmux status line, or a terminal preview.
package sinks

import (
	"context"
	"log/slog"
	"strings"
)

// Sink receives the full status line.
type Sink interface {
	Name() string
	Publish(ctx context.Context, status string) error
}

// Publisher concatenates fragments and forwards the result to its sinks.
// Sink errors are logged and dropped; a sink that is not running is a normal
// condition.
type Publisher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewPublisher returns a publisher for sinks. A nil logger uses slog.Default.
func NewPublisher(logger *slog.Logger, sinks ...Sink) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{sinks: sinks, logger: logger}
}

// Combine joins fragments in order. Fragments supply their own padding.
func Combine(fragments []string) string {
	return strings.Join(fragments, "")
}

// Publish implements engine.Publisher.
func (p *Publisher) Publish(ctx context.Context, fragments []string) {
	status := Combine(fragments)
	for _, s := range p.sinks {
		if err := s.Publish(ctx, status); err != nil {
			p.logger.Debug("sink publish failed", "sink", s.Name(), "error", err)
		}
	}
}

// Sinks returns the configured sinks.
func (p *Publisher) Sinks() []Sink {
	return p.sinks
}
