package sinks

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// Tmux sets the right-hand status of the tmux server on a named socket. It
// is a no-op when no socket is configured or no session exists.
type Tmux struct {
	socket string
	run    func(ctx context.Context, args ...string) error
}

// NewTmux returns a tmux sink for the server started with `tmux -L socket`.
func NewTmux(socket string) *Tmux {
	return &Tmux{socket: socket, run: runTmux}
}

func runTmux(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "tmux", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("tmux %s: %w: %s", args[2], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Name implements Sink.
func (t *Tmux) Name() string { return "tmux" }

// Publish implements Sink. Tag bytes are stripped and '#' is escaped so tmux
// does not expand it as a format.
func (t *Tmux) Publish(ctx context.Context, status string) error {
	if t.socket == "" {
		return nil
	}
	if err := t.run(ctx, "-L", t.socket, "has-session"); err != nil {
		return nil
	}
	text := strings.ReplaceAll(segments.StripTags(status), "#", "##")
	return t.run(ctx, "-L", t.socket, "set-option", "-g", "status-right", text)
}
