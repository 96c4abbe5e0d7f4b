package sysmetrics

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

func opts(format string) segments.Options {
	return segments.Options{Format: format}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// --- Memory Tests ---

func TestMemoryPercent(t *testing.T) {
	read := func(context.Context) (*mem.VirtualMemoryStat, *mem.SwapMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 1000, Available: 400},
			&mem.SwapMemoryStat{Total: 200, Used: 50}, nil
	}
	m, err := NewMemory(opts("{{pct .perc}}%"), nil, WithMemoryReader(read))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}

	v, err := m.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if !approx(v["perc"].(float64), 60.0) {
		t.Errorf("perc = %v, want 60", v["perc"])
	}
	if v["used"].(uint64) != 600 {
		t.Errorf("used = %v, want 600", v["used"])
	}
	if !approx(v["swap_perc"].(float64), 25.0) {
		t.Errorf("swap_perc = %v, want 25", v["swap_perc"])
	}

	out, err := m.Render(0, v)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "\x0160%\x0f" {
		t.Errorf("Render = %q", out)
	}
}

func TestMemoryNoSwap(t *testing.T) {
	read := func(context.Context) (*mem.VirtualMemoryStat, *mem.SwapMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 100, Available: 100}, nil, nil
	}
	m, _ := NewMemory(opts("x"), nil, WithMemoryReader(read))
	v, err := m.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["swap_perc"].(float64) != 0 || v["perc"].(float64) != 0 {
		t.Errorf("values = %v", v)
	}
}

func TestMemoryReadError(t *testing.T) {
	read := func(context.Context) (*mem.VirtualMemoryStat, *mem.SwapMemoryStat, error) {
		return nil, nil, errors.New("no /proc")
	}
	m, _ := NewMemory(opts("x"), nil, WithMemoryReader(read))
	if v, err := m.Poll(context.Background(), false); err == nil || v != nil {
		t.Errorf("Poll = %v, %v; want no result", v, err)
	}
}

func TestMemoryNotify(t *testing.T) {
	read := func(context.Context) (*mem.VirtualMemoryStat, *mem.SwapMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 1000, Available: 400}, nil, nil
	}
	rec := &notify.Recorder{}
	m, _ := NewMemory(opts("x"), rec, WithMemoryReader(read))

	_, _ = m.Poll(context.Background(), false)
	if len(rec.Sent()) != 0 {
		t.Fatal("regular poll must not notify")
	}
	_, _ = m.Poll(context.Background(), true)
	sent := rec.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(sent))
	}
	if sent[0].Value == nil || !approx(*sent[0].Value, 60) {
		t.Errorf("notification value = %v, want 60", sent[0].Value)
	}
}

// --- CPU Tests ---

func TestCPUDelta(t *testing.T) {
	samples := []cpu.TimesStat{
		{User: 100, Idle: 300},
		{User: 150, Idle: 350},
		{User: 150, Idle: 350},
	}
	i := 0
	times := func(context.Context) (cpu.TimesStat, error) {
		s := samples[i]
		i++
		return s, nil
	}
	freq := func(context.Context) (float64, error) { return 2.4, nil }

	c, err := NewCPU(opts("{{pct .perc}}"), nil, WithTimesReader(times), WithFreqReader(freq))
	if err != nil {
		t.Fatalf("NewCPU failed: %v", err)
	}

	tests := []struct {
		name string
		want float64
	}{
		{"zero baseline averages since boot", 25},
		{"delta since previous poll", 50},
		{"no elapsed time", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := c.Poll(context.Background(), false)
			if err != nil {
				t.Fatalf("Poll failed: %v", err)
			}
			if !approx(v["perc"].(float64), tt.want) {
				t.Errorf("perc = %v, want %v", v["perc"], tt.want)
			}
			if v["freq"].(float64) != 2.4 {
				t.Errorf("freq = %v, want 2.4", v["freq"])
			}
		})
	}
}

func TestCPUFreqFailureIsNotFatal(t *testing.T) {
	times := func(context.Context) (cpu.TimesStat, error) { return cpu.TimesStat{User: 1, Idle: 1}, nil }
	freq := func(context.Context) (float64, error) { return 0, errors.New("no cpufreq") }
	rec := &notify.Recorder{}
	c, _ := NewCPU(opts("x"), rec, WithTimesReader(times), WithFreqReader(freq))

	v, err := c.Poll(context.Background(), true)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["freq"].(float64) != 0 {
		t.Errorf("freq = %v, want 0", v["freq"])
	}
	if len(rec.Sent()) != 1 {
		t.Errorf("sent %d notifications, want 1", len(rec.Sent()))
	}
}

func TestCPUTimesError(t *testing.T) {
	times := func(context.Context) (cpu.TimesStat, error) { return cpu.TimesStat{}, errors.New("boom") }
	c, _ := NewCPU(opts("x"), nil, WithTimesReader(times))
	if v, err := c.Poll(context.Background(), false); err == nil || v != nil {
		t.Errorf("Poll = %v, %v; want no result", v, err)
	}
}
