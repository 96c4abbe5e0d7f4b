package config

import (
	"context"
	"fmt"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments/audio"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments/dunst"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments/gpu"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments/mail"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments/music"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments/network"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments/power"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments/sysmetrics"
)

// Options converts the shared fields into segment options.
func (s SegmentConfig) Options() segments.Options {
	return segments.Options{
		Format:     s.format(),
		Interval:   s.Interval.Duration,
		Icons:      s.Icons,
		Foreground: s.Fg,
		Background: s.Bg,
	}
}

// NewSegment constructs the segment described by s. Construction errors,
// including a failing mail password command, are configuration errors.
func NewSegment(ctx context.Context, s SegmentConfig, n notify.Notifier) (segments.Segment, error) {
	opts := s.Options()
	switch s.Type {
	case "memory":
		return sysmetrics.NewMemory(opts, n)
	case "cpu":
		return sysmetrics.NewCPU(opts, n)
	case "gpu":
		return gpu.New(opts, gpu.Config{Samples: s.Samples, SmoothSeconds: s.SmoothSeconds}, n)
	case "audio":
		return audio.New(opts, s.Control, n)
	case "backlight":
		return power.NewBacklight(opts, s.DeviceGlob, n)
	case "battery":
		// For batteries device_glob names the power_supply directory.
		return power.NewBattery(opts, s.DeviceGlob, n)
	case "mail":
		return mail.New(ctx, opts, mail.Config{
			Host:            s.Host,
			Port:            s.Port,
			User:            s.User,
			PasswordCommand: s.PasswordCommand,
			Mailbox:         s.Mailbox,
		}, n)
	case "music":
		return music.New(opts, s.Address, n)
	case "network":
		return network.NewLink(opts, n)
	case "tailscale":
		return network.NewTailscale(opts, network.NewLocalClient(s.Socket), n)
	case "dunst":
		return dunst.New(opts, n)
	case "static":
		return segments.NewStatic(opts, n)
	default:
		return nil, fmt.Errorf("unknown segment type %q", s.Type)
	}
}

// BuildRegistry constructs every configured segment in order. On error the
// segments built so far are closed.
func (c *Config) BuildRegistry(ctx context.Context, n notify.Notifier) (*segments.Registry, error) {
	reg := segments.NewRegistry()
	for i, sc := range c.Segments {
		seg, err := NewSegment(ctx, sc, n)
		if err == nil {
			_, err = reg.Register(seg)
		}
		if err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("segment %d (%s): %w", i+1, sc.Type, err)
		}
	}
	return reg, nil
}
