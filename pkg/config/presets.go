package config

import "time"

// DefaultPreset is used when neither segments nor a preset are configured.
const DefaultPreset = "laptop"

var batteryIcons = Icons{{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}}

// Preset returns the segment list for a named preset. If the name is not
// recognized, the laptop preset is returned.
func Preset(name string) []SegmentConfig {
	switch name {
	case "minimal":
		return minimalPreset()
	case "desktop":
		return desktopPreset()
	case "laptop":
		return laptopPreset()
	default:
		return laptopPreset()
	}
}

// PresetNames lists the built-in presets.
func PresetNames() []string {
	return []string{"laptop", "desktop", "minimal"}
}

func every(d time.Duration) Duration { return Duration{d} }

// laptopPreset shows link, volume, brightness, battery, memory and load.
//
//	[network] [audio] [backlight] [battery] [memory] [cpu]
func laptopPreset() []SegmentConfig {
	return []SegmentConfig{
		{Type: "network", Format: "{{.kind}}{{if .iface}} {{pct .quality}}%{{end}} ", Interval: every(5 * time.Second)},
		{Type: "audio", Format: "VOL {{if .muted}}muted{{else}}{{pct .perc}}%{{end}} ", Interval: every(5 * time.Second)},
		{Type: "backlight", Format: "BRI {{pct .perc}}% ", Interval: every(5 * time.Second)},
		{Type: "battery", Format: "{{icon .perc}} {{pct .perc}}%{{if not .ac}} {{dur .time}}{{end}} ", Interval: every(30 * time.Second), Icons: batteryIcons},
		{Type: "memory", Format: "MEM {{pct .perc}}% ", Interval: every(2 * time.Second)},
		{Type: "cpu", Format: "CPU {{pct .perc}}%", Interval: every(time.Second)},
	}
}

// desktopPreset adds GPU and now-playing and drops the battery.
//
//	[music] [network] [audio] [gpu] [memory] [cpu]
func desktopPreset() []SegmentConfig {
	return []SegmentConfig{
		{Type: "music", Format: "{{if eq .state \"play\"}}{{.artist}} - {{.title}} {{end}}", Interval: every(5 * time.Second)},
		{Type: "network", Format: "{{.kind}} ", Interval: every(5 * time.Second)},
		{Type: "audio", Format: "VOL {{pct .perc}}% ", Interval: every(5 * time.Second)},
		{Type: "gpu", Format: "GPU {{pct .perc}}% ", Interval: every(time.Second), Samples: 4, SmoothSeconds: 3},
		{Type: "memory", Format: "MEM {{bytes .used}} ", Interval: every(2 * time.Second)},
		{Type: "cpu", Format: "CPU {{pct .perc}}% {{f1 .freq}}GHz", Interval: every(time.Second)},
	}
}

// minimalPreset is memory and CPU only.
func minimalPreset() []SegmentConfig {
	return []SegmentConfig{
		{Type: "memory", Format: "MEM {{pct .perc}}% ", Interval: every(2 * time.Second)},
		{Type: "cpu", Format: "CPU {{pct .perc}}%", Interval: every(time.Second)},
	}
}
