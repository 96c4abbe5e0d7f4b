// Package sysmetrics provides the memory and CPU segments. Both read through
// gopsutil so the same code runs wherever gopsutil has a backend; the readers
// are injectable for tests.
package sysmetrics

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/mem"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// MemoryReader returns the current physical and swap memory statistics. A
// nil swap result is treated as no swap.
type MemoryReader func(ctx context.Context) (*mem.VirtualMemoryStat, *mem.SwapMemoryStat, error)

func readMemory(ctx context.Context) (*mem.VirtualMemoryStat, *mem.SwapMemoryStat, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	// Swap might not be configured; not an error for this segment.
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		sw = nil
	}
	return vm, sw, nil
}

// Memory reports RAM usage as a percentage of total memory not available to
// new allocations, which matches what `free` calls used.
//
// Values: perc, used, total (bytes), swap_perc.
type Memory struct {
	segments.Base
	read     MemoryReader
	notifier notify.Notifier
}

// MemoryOption configures a Memory segment.
type MemoryOption func(*Memory)

// WithMemoryReader replaces the gopsutil reader.
func WithMemoryReader(r MemoryReader) MemoryOption {
	return func(m *Memory) { m.read = r }
}

// NewMemory creates a memory segment.
func NewMemory(opts segments.Options, n notify.Notifier, mopts ...MemoryOption) (*Memory, error) {
	base, err := segments.NewBase("memory", opts)
	if err != nil {
		return nil, err
	}
	if n == nil {
		n = notify.Nop{}
	}
	m := &Memory{Base: base, read: readMemory, notifier: n}
	for _, o := range mopts {
		o(m)
	}
	return m, nil
}

// Poll implements segments.Segment.
func (m *Memory) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	vm, sw, err := m.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	if vm == nil || vm.Total == 0 {
		return nil, nil
	}

	used := vm.Total - vm.Available
	if vm.Available > vm.Total {
		used = 0
	}
	perc := float64(used) / float64(vm.Total) * 100

	swapPerc := 0.0
	if sw != nil && sw.Total > 0 {
		swapPerc = float64(sw.Used) / float64(sw.Total) * 100
	}

	if notifyUser {
		_ = m.notifier.Notify(ctx, notify.Notification{
			Summary: "Memory",
			Body:    fmt.Sprintf("%s of %s used", humanize.IBytes(used), humanize.IBytes(vm.Total)),
			Value:   notify.Percent(perc),
		})
	}

	return segments.Values{
		"perc":      perc,
		"used":      used,
		"total":     vm.Total,
		"swap_perc": swapPerc,
	}, nil
}
