package sysmetrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// TimesReader returns aggregate CPU times since boot.
type TimesReader func(ctx context.Context) (cpu.TimesStat, error)

// FreqReader returns the current CPU frequency in GHz.
type FreqReader func(ctx context.Context) (float64, error)

func readTimes(ctx context.Context) (cpu.TimesStat, error) {
	ts, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return cpu.TimesStat{}, err
	}
	if len(ts) == 0 {
		return cpu.TimesStat{}, errors.New("no cpu times")
	}
	return ts[0], nil
}

const curFreqPath = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq"

// readFreq prefers the cpufreq current value and falls back to the first
// core reported by gopsutil.
func readFreq(ctx context.Context) (float64, error) {
	if b, err := os.ReadFile(curFreqPath); err == nil {
		khz, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
		if err == nil {
			return khz / 1e6, nil
		}
	}
	info, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	if len(info) == 0 {
		return 0, nil
	}
	return info[0].Mhz / 1000, nil
}

// CPU reports utilisation over the last poll interval, computed from the
// difference of successive idle and total times. The first poll compares
// against a zero baseline and so reports the average since boot.
//
// Values: perc, freq (GHz).
type CPU struct {
	segments.Base
	times    TimesReader
	freq     FreqReader
	notifier notify.Notifier

	mu        sync.Mutex
	prevIdle  float64
	prevTotal float64
}

// CPUOption configures a CPU segment.
type CPUOption func(*CPU)

// WithTimesReader replaces the gopsutil times reader.
func WithTimesReader(r TimesReader) CPUOption {
	return func(c *CPU) { c.times = r }
}

// WithFreqReader replaces the frequency reader.
func WithFreqReader(r FreqReader) CPUOption {
	return func(c *CPU) { c.freq = r }
}

// NewCPU creates a CPU segment.
func NewCPU(opts segments.Options, n notify.Notifier, copts ...CPUOption) (*CPU, error) {
	base, err := segments.NewBase("cpu", opts)
	if err != nil {
		return nil, err
	}
	if n == nil {
		n = notify.Nop{}
	}
	c := &CPU{Base: base, times: readTimes, freq: readFreq, notifier: n}
	for _, o := range copts {
		o(c)
	}
	return c, nil
}

// busyTotal splits t into idle and total jiffies. Guest time is already
// included in user and nice.
func busyTotal(t cpu.TimesStat) (idle, total float64) {
	idle = t.Idle + t.Iowait
	total = t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	return idle, total
}

// Poll implements segments.Segment.
func (c *CPU) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	t, err := c.times(ctx)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}
	idle, total := busyTotal(t)

	c.mu.Lock()
	dIdle := idle - c.prevIdle
	dTotal := total - c.prevTotal
	c.prevIdle, c.prevTotal = idle, total
	c.mu.Unlock()

	perc := 0.0
	if dTotal > 0 {
		perc = (1 - dIdle/dTotal) * 100
	}
	if perc < 0 {
		perc = 0
	}

	// Frequency is best effort; a missing cpufreq driver is common in VMs.
	freq, _ := c.freq(ctx)

	if notifyUser {
		_ = c.notifier.Notify(ctx, notify.Notification{
			Summary: "CPU",
			Body:    fmt.Sprintf("%.1f GHz", freq),
			Value:   notify.Percent(perc),
		})
	}

	return segments.Values{"perc": perc, "freq": freq}, nil
}
