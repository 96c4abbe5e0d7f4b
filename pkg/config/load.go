package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Supported file formats.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// Load reads configuration. An explicit path must exist; otherwise the
// search order is:
//  1. $XDG_CONFIG_HOME/barpulse/config.toml (or .yaml)
//  2. ~/.config/barpulse/config.toml (or .yaml)
//
// If no file exists, returns DefaultConfig().
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg, cfg.Validate()
}

// LoadFromFile reads configuration from a specific file. The format follows
// the extension: .yaml and .yml are YAML, anything else TOML.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, formatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes configuration in the given format over the
// defaults, applies environment overrides, and validates the result.
func LoadFromReader(r io.Reader, format string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Segments = nil

	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.Segments) == 0 {
		cfg.Segments = Preset(cfg.General.Preset)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// DefaultConfig returns the default configuration: the X root window sink
// and the laptop preset.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	runDir := xdgRuntimeDir()
	stateDir := filepath.Join(xdgCacheHome(home), "barpulse")

	return &Config{
		General: GeneralConfig{
			LogLevel:        "info",
			Preset:          DefaultPreset,
			HeartbeatOffset: Duration{10 * time.Millisecond},
			PIDFile:         filepath.Join(runDir, "barpulse.pid"),
			HealthFile:      filepath.Join(stateDir, "health.json"),
			HealthInterval:  Duration{30 * time.Second},
			ControlSocket:   filepath.Join(runDir, "barpulse.sock"),
		},
		Sinks: SinksConfig{
			XRoot: true,
		},
		Segments: Preset(DefaultPreset),
	}
}

// applyEnvOverrides checks environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BARPULSE_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
	if v := os.Getenv("BARPULSE_TMUX_SOCKET"); v != "" {
		cfg.Sinks.TmuxSocket = v
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	dirs := []string{filepath.Join(xdgConfigHome(home), "barpulse")}

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultDir := filepath.Join(home, ".config", "barpulse")
	if dirs[0] != defaultDir {
		dirs = append(dirs, defaultDir)
	}

	var paths []string
	for _, d := range dirs {
		paths = append(paths,
			filepath.Join(d, "config.toml"),
			filepath.Join(d, "config.yaml"),
		)
	}
	return paths
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgCacheHome returns XDG_CACHE_HOME or ~/.cache as fallback.
func xdgCacheHome(home string) string {
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".cache")
}

// xdgRuntimeDir returns XDG_RUNTIME_DIR or the temp dir as fallback.
func xdgRuntimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return v
	}
	return os.TempDir()
}
