package power

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// DefaultBacklightGlob matches every backlight device.
const DefaultBacklightGlob = "/sys/class/backlight/*"

var errNoBacklight = errors.New("no readable backlight device")

// Backlight reports screen brightness. When several devices match, the last
// one that could be read wins.
//
// Values: perc.
type Backlight struct {
	segments.Base
	glob     string
	notifier notify.Notifier
}

// NewBacklight creates a backlight segment over the devices matching glob.
// An empty glob uses DefaultBacklightGlob.
func NewBacklight(opts segments.Options, glob string, n notify.Notifier) (*Backlight, error) {
	base, err := segments.NewBase("backlight", opts)
	if err != nil {
		return nil, err
	}
	if glob == "" {
		glob = DefaultBacklightGlob
	}
	if _, err := filepath.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("backlight: device glob: %w", err)
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Backlight{Base: base, glob: glob, notifier: n}, nil
}

func readNumber(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
}

func (b *Backlight) read() (float64, error) {
	devices, err := filepath.Glob(b.glob)
	if err != nil {
		return 0, err
	}
	perc, found := 0.0, false
	for _, dev := range devices {
		cur, err := readNumber(filepath.Join(dev, "brightness"))
		if err != nil {
			continue
		}
		top, err := readNumber(filepath.Join(dev, "max_brightness"))
		if err != nil || top <= 0 {
			continue
		}
		perc, found = cur/top*100, true
	}
	if !found {
		return 0, errNoBacklight
	}
	return perc, nil
}

// Poll implements segments.Segment.
func (b *Backlight) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	perc, err := b.read()
	if err != nil {
		return nil, fmt.Errorf("backlight: %w", err)
	}
	if notifyUser {
		_ = b.notifier.Notify(ctx, notify.Notification{
			Summary: "Brightness",
			Value:   notify.Percent(perc),
		})
	}
	return segments.Values{"perc": perc}, nil
}
