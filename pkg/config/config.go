// Package config provides TOML (and YAML) configuration for barpulse.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	General  GeneralConfig   `toml:"general" yaml:"general"`
	Sinks    SinksConfig     `toml:"sinks" yaml:"sinks"`
	Segments []SegmentConfig `toml:"segment" yaml:"segment"`
}

// GeneralConfig holds daemon-wide settings.
type GeneralConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level" yaml:"log_level"`

	// LogFile, when set, receives log output in addition to stderr.
	LogFile string `toml:"log_file" yaml:"log_file"`

	// Preset names the built-in segment list used when no segments are
	// configured.
	Preset string `toml:"preset" yaml:"preset"`

	// HeartbeatOffset is how far past each second boundary the status line
	// is published.
	HeartbeatOffset Duration `toml:"heartbeat_offset" yaml:"heartbeat_offset"`

	PIDFile        string   `toml:"pid_file" yaml:"pid_file"`
	HealthFile     string   `toml:"health_file" yaml:"health_file"`
	HealthInterval Duration `toml:"health_interval" yaml:"health_interval"`
	ControlSocket  string   `toml:"control_socket" yaml:"control_socket"`
}

// SinksConfig selects where the status line goes.
type SinksConfig struct {
	// XRoot sets the root window name on the X display.
	XRoot bool `toml:"xroot" yaml:"xroot"`

	// TmuxSocket names the tmux server (-L) receiving status-right.
	TmuxSocket string `toml:"tmux_socket" yaml:"tmux_socket"`

	// Terminal previews the line on stdout.
	Terminal bool `toml:"terminal" yaml:"terminal"`
}

// SegmentConfig describes one segment. Type-specific fields are ignored by
// the other types.
type SegmentConfig struct {
	Type     string   `toml:"type" yaml:"type"`
	Format   string   `toml:"format" yaml:"format"`
	Interval Duration `toml:"interval" yaml:"interval"`
	Icons    Icons    `toml:"icons" yaml:"icons"`
	Fg       *int     `toml:"fg" yaml:"fg"`
	Bg       *int     `toml:"bg" yaml:"bg"`

	// static
	Text string `toml:"text" yaml:"text"`

	// audio
	Control string `toml:"control" yaml:"control"`

	// backlight, battery
	DeviceGlob string `toml:"device_glob" yaml:"device_glob"`

	// gpu
	Samples       int `toml:"samples" yaml:"samples"`
	SmoothSeconds int `toml:"smooth_seconds" yaml:"smooth_seconds"`

	// mail
	Host            string `toml:"host" yaml:"host"`
	Port            int    `toml:"port" yaml:"port"`
	User            string `toml:"user" yaml:"user"`
	PasswordCommand string `toml:"password_command" yaml:"password_command"`
	Mailbox         string `toml:"mailbox" yaml:"mailbox"`

	// music
	Address string `toml:"address" yaml:"address"`

	// tailscale
	Socket string `toml:"socket" yaml:"socket"`
}

// Icons is a list of glyph groups. A flat list of strings is accepted as a
// single group.
type Icons [][]string

// UnmarshalTOML implements toml.Unmarshaler.
func (ic *Icons) UnmarshalTOML(v any) error {
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("icons: expected array, got %T", v)
	}
	groups, err := iconGroups(list)
	if err != nil {
		return err
	}
	*ic = groups
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (ic *Icons) UnmarshalYAML(n *yaml.Node) error {
	var raw []any
	if err := n.Decode(&raw); err != nil {
		return fmt.Errorf("icons: %w", err)
	}
	groups, err := iconGroups(raw)
	if err != nil {
		return err
	}
	*ic = groups
	return nil
}

func iconGroups(list []any) (Icons, error) {
	if len(list) == 0 {
		return nil, nil
	}
	if _, flat := list[0].(string); flat {
		g, err := iconGroup(list)
		if err != nil {
			return nil, err
		}
		return Icons{g}, nil
	}
	out := make(Icons, 0, len(list))
	for i, item := range list {
		inner, ok := item.([]any)
		if !ok {
			return nil, fmt.Errorf("icons: group %d: expected array, got %T", i, item)
		}
		g, err := iconGroup(inner)
		if err != nil {
			return nil, fmt.Errorf("icons: group %d: %w", i, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func iconGroup(list []any) ([]string, error) {
	g := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("icons: expected string, got %T", item)
		}
		g = append(g, s)
	}
	return g, nil
}
