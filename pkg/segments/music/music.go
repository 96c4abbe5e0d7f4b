// Package music provides the MPD now-playing segment.
package music

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/fhs/gompd/v2/mpd"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// DefaultAddress is the MPD address used when none is configured.
const DefaultAddress = "localhost:6600"

// Conn is the subset of *mpd.Client the segment uses.
type Conn interface {
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	Close() error
}

// Dialer opens a connection to MPD.
type Dialer func() (Conn, error)

// dialerFor returns a Dialer for address, which is a unix socket path when
// it starts with a slash and host:port otherwise.
func dialerFor(address string) Dialer {
	network := "tcp"
	if strings.HasPrefix(address, "/") {
		network = "unix"
	}
	return func() (Conn, error) {
		c, err := mpd.Dial(network, address)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// MPD shows the current song. The connection is opened on first use and
// dropped after any error, so a restarted MPD is picked up on the next poll.
//
// Values: state, artist, title, album, elapsed, duration (seconds), perc.
type MPD struct {
	segments.Base
	dial     Dialer
	notifier notify.Notifier

	mu   sync.Mutex
	conn Conn
}

// Option configures an MPD segment.
type Option func(*MPD)

// WithDialer replaces the gompd dialer.
func WithDialer(d Dialer) Option {
	return func(m *MPD) { m.dial = d }
}

// New creates a music segment for the MPD instance at address.
func New(opts segments.Options, address string, n notify.Notifier, mopts ...Option) (*MPD, error) {
	base, err := segments.NewBase("music", opts)
	if err != nil {
		return nil, err
	}
	if address == "" {
		address = DefaultAddress
	}
	if n == nil {
		n = notify.Nop{}
	}
	m := &MPD{Base: base, dial: dialerFor(address), notifier: n}
	for _, o := range mopts {
		o(m)
	}
	return m, nil
}

func (m *MPD) query() (status, song mpd.Attrs, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		c, err := m.dial()
		if err != nil {
			return nil, nil, fmt.Errorf("dial: %w", err)
		}
		m.conn = c
	}

	status, err = m.conn.Status()
	if err == nil {
		song, err = m.conn.CurrentSong()
	}
	if err != nil {
		_ = m.conn.Close()
		m.conn = nil
		return nil, nil, err
	}
	return status, song, nil
}

// Close releases the MPD connection.
func (m *MPD) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

func seconds(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// Poll implements segments.Segment.
func (m *MPD) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	status, song, err := m.query()
	if err != nil {
		return nil, fmt.Errorf("music: %w", err)
	}

	elapsed := seconds(status["elapsed"])
	duration := seconds(status["duration"])
	if duration == 0 {
		duration = seconds(song["Time"])
	}
	perc := 0.0
	if duration > 0 {
		perc = elapsed / duration * 100
	}

	title := song["Title"]
	if title == "" {
		title = song["file"]
	}

	if notifyUser {
		body := song["Artist"]
		if album := song["Album"]; album != "" {
			body += " - " + album
		}
		_ = m.notifier.Notify(ctx, notify.Notification{
			Summary: title,
			Body:    body,
			Value:   notify.Percent(perc),
			Urgency: notify.Low,
		})
	}

	return segments.Values{
		"state":    status["state"],
		"artist":   song["Artist"],
		"title":    title,
		"album":    song["Album"],
		"elapsed":  elapsed,
		"duration": duration,
		"perc":     perc,
	}, nil
}
