package power

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// DefaultPowerSupplyDir is where the kernel exposes batteries and adapters.
const DefaultPowerSupplyDir = "/sys/class/power_supply"

// lowBattery is the charge below which a forced notification is critical.
const lowBattery = 10

// Battery reports charge and estimated time for all batteries combined.
//
// Values: perc, time (hours of charge at the current rate), time_full (hours
// until full while charging), ac (bool), status.
type Battery struct {
	segments.Base
	dir      string
	notifier notify.Notifier
}

// NewBattery creates a battery segment reading from dir. An empty dir uses
// DefaultPowerSupplyDir.
func NewBattery(opts segments.Options, dir string, n notify.Notifier) (*Battery, error) {
	base, err := segments.NewBase("battery", opts)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = DefaultPowerSupplyDir
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Battery{Base: base, dir: dir, notifier: n}, nil
}

type batteryState struct {
	batteries int
	capacity  float64
	now       float64
	full      float64
	rate      float64
	ac        bool
	status    string
}

func (b *Battery) read() (batteryState, error) {
	var st batteryState
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return st, err
	}
	for _, e := range entries {
		u, err := ReadUevent(filepath.Join(b.dir, e.Name(), "uevent"))
		if err != nil {
			continue
		}
		switch u["TYPE"] {
		case "Mains":
			if u["ONLINE"] == "1" {
				st.ac = true
			}
		case "Battery":
			st.batteries++
			if c, ok := u.Float("CAPACITY"); ok {
				st.capacity += c
			}
			// Energy is reported in µWh with power in µW, or charge in µAh
			// with current in µA. Either pair yields hours.
			if now, ok := u.Float("ENERGY_NOW"); ok {
				st.now += now
				full, _ := u.Float("ENERGY_FULL")
				st.full += full
				rate, _ := u.Float("POWER_NOW")
				st.rate += rate
			} else if now, ok := u.Float("CHARGE_NOW"); ok {
				st.now += now
				full, _ := u.Float("CHARGE_FULL")
				st.full += full
				rate, _ := u.Float("CURRENT_NOW")
				st.rate += rate
			}
			if s := u["STATUS"]; s != "" && st.status == "" {
				st.status = s
			}
		}
	}
	return st, nil
}

// hours is the stored charge divided by the present rate. Zero when no rate
// is available.
func (st batteryState) hours() float64 {
	if st.rate <= 0 {
		return 0
	}
	return st.now / st.rate
}

// hoursToFull estimates time until full while charging. Zero when not
// charging or when the full level is unknown.
func (st batteryState) hoursToFull() float64 {
	if st.rate <= 0 || st.status != "Charging" || st.full <= st.now {
		return 0
	}
	return (st.full - st.now) / st.rate
}

// Poll implements segments.Segment.
func (b *Battery) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	st, err := b.read()
	if err != nil {
		return nil, fmt.Errorf("battery: %w", err)
	}
	if st.batteries == 0 {
		return nil, nil
	}

	perc := st.capacity / float64(st.batteries)
	hours := st.hours()
	status := st.status
	if status == "" {
		status = "Unknown"
	}

	if notifyUser {
		urgency := notify.Normal
		if perc < lowBattery && !st.ac {
			urgency = notify.Critical
		}
		body := status
		if hours > 0 {
			body += ", " + segments.FormatHours(hours) + " remaining"
		}
		_ = b.notifier.Notify(ctx, notify.Notification{
			Summary: "Battery",
			Body:    body,
			Value:   notify.Percent(perc),
			Urgency: urgency,
		})
	}

	return segments.Values{
		"perc":      perc,
		"time":      hours,
		"time_full": st.hoursToFull(),
		"ac":        st.ac,
		"status":    status,
	}, nil
}
