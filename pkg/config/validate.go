package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Types lists the segment types Build understands.
var Types = []string{
	"memory", "cpu", "gpu", "audio", "backlight", "battery",
	"mail", "music", "network", "tailscale", "dunst", "static",
}

func knownType(t string) bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

// Validate rejects configurations that would fail at segment construction
// or could not be tagged.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.General.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(c.Segments) > segments.MaxSegments {
		errs = append(errs, fmt.Errorf("%d segments configured, at most %d supported", len(c.Segments), segments.MaxSegments))
	}
	for i, s := range c.Segments {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("segment %d: %w", i+1, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (s SegmentConfig) validate() error {
	if !knownType(s.Type) {
		return fmt.Errorf("unknown type %q", s.Type)
	}
	if s.format() == "" {
		return fmt.Errorf("%s: format is required", s.Type)
	}
	for name, c := range map[string]*int{"fg": s.Fg, "bg": s.Bg} {
		if c != nil && (*c < 0 || *c > segments.MaxColor) {
			return fmt.Errorf("%s: %s %d outside 0..%d", s.Type, name, *c, segments.MaxColor)
		}
	}
	if s.Samples < 0 || s.SmoothSeconds < 0 {
		return fmt.Errorf("%s: samples and smooth_seconds must not be negative", s.Type)
	}
	if s.Type == "mail" && s.Host == "" {
		return errors.New("mail: host is required")
	}
	return nil
}

// format returns the template, falling back to text for static segments.
func (s SegmentConfig) format() string {
	if s.Format == "" && s.Type == "static" {
		return s.Text
	}
	return s.Format
}

// ParseLevel maps a log level name to a slog.Level. Empty is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}
