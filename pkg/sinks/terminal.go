package sinks

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Tag byte ranges, mirrored from pkg/segments.
const (
	tagColorMin  = 0x10
	tagColorMax  = 0x1f
	tagMarkerMin = 0x01
	tagMarkerMax = 0x0e
	tagEnd       = 0x0f
)

// Terminal previews the status line in a terminal, translating color tags
// into ANSI colors. On a TTY the line is redrawn in place; otherwise a line
// is written only when the status changes.
type Terminal struct {
	w        io.Writer
	tty      bool
	renderer *lipgloss.Renderer

	mu   sync.Mutex
	last string
}

// NewTerminal returns a terminal sink writing to w.
func NewTerminal(w io.Writer) *Terminal {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	r := lipgloss.NewRenderer(w)
	if !tty {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Terminal{w: w, tty: tty, renderer: r}
}

// Name implements Sink.
func (t *Terminal) Name() string { return "terminal" }

// Publish implements Sink.
func (t *Terminal) Publish(_ context.Context, status string) error {
	line := t.Render(status)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tty {
		_, err := io.WriteString(t.w, "\r\x1b[K"+line)
		return err
	}
	if line == t.last {
		return nil
	}
	t.last = line
	_, err := io.WriteString(t.w, line+"\n")
	return err
}

// Render converts a tagged status string into styled terminal text. Two
// color bytes before a marker are background then foreground; a single one
// is the foreground.
func (t *Terminal) Render(status string) string {
	var out strings.Builder
	var colors []int
	var text strings.Builder
	inSegment := false

	flush := func() {
		style := t.renderer.NewStyle()
		switch len(colors) {
		case 1:
			style = style.Foreground(lipgloss.Color(strconv.Itoa(colors[0])))
		case 2:
			style = style.Background(lipgloss.Color(strconv.Itoa(colors[0]))).
				Foreground(lipgloss.Color(strconv.Itoa(colors[1])))
		}
		if text.Len() > 0 {
			out.WriteString(style.Render(text.String()))
		}
		text.Reset()
		colors = colors[:0]
	}

	for i := 0; i < len(status); i++ {
		c := status[i]
		switch {
		case c >= tagColorMin && c <= tagColorMax && !inSegment:
			if len(colors) < 2 {
				colors = append(colors, int(c-tagColorMin))
			}
		case c >= tagMarkerMin && c <= tagMarkerMax:
			inSegment = true
		case c == tagEnd:
			flush()
			inSegment = false
		default:
			text.WriteByte(c)
		}
	}
	flush()
	return out.String()
}
