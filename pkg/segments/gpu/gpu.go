// Package gpu provides an NVIDIA GPU segment backed by nvidia-smi. GPU
// utilisation and clocks are spiky, so each poll takes a burst of samples
// spread over the poll interval and reports the mean of a rolling window.
package gpu

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// Defaults for sampling.
const (
	DefaultSamples       = 4
	DefaultSmoothSeconds = 3
)

const queryFields = "utilization.gpu,clocks.gr,clocks.mem,memory.used,memory.total"

// Sample is one nvidia-smi reading. Clocks are in MHz, memory in MiB.
type Sample struct {
	Util      float64
	CoreClock float64
	MemClock  float64
	MemUsed   float64
	MemTotal  float64
}

// Querier takes one sample from the GPU.
type Querier func(ctx context.Context) (Sample, error)

// Config controls sampling.
type Config struct {
	// Samples is the number of readings taken per poll. Zero uses
	// DefaultSamples.
	Samples int

	// SmoothSeconds is how many polls' worth of samples are averaged. Zero
	// uses DefaultSmoothSeconds.
	SmoothSeconds int
}

// GPU is the gpu segment.
//
// Values: perc, core, mem_clock, vram_used, vram_total (bytes), vram_perc.
type GPU struct {
	segments.Base
	cfg      Config
	query    Querier
	notifier notify.Notifier

	mu     sync.Mutex
	window []Sample
	next   int
	filled bool
}

// Option configures a GPU segment.
type Option func(*GPU)

// WithQuerier replaces the nvidia-smi querier.
func WithQuerier(q Querier) Option {
	return func(g *GPU) { g.query = q }
}

// New creates a GPU segment.
func New(opts segments.Options, cfg Config, n notify.Notifier, gopts ...Option) (*GPU, error) {
	base, err := segments.NewBase("gpu", opts)
	if err != nil {
		return nil, err
	}
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSamples
	}
	if cfg.SmoothSeconds <= 0 {
		cfg.SmoothSeconds = DefaultSmoothSeconds
	}
	if n == nil {
		n = notify.Nop{}
	}
	g := &GPU{
		Base:     base,
		cfg:      cfg,
		query:    querySMI,
		notifier: n,
		window:   make([]Sample, cfg.Samples*cfg.SmoothSeconds),
	}
	for _, o := range gopts {
		o(g)
	}
	return g, nil
}

// Poll implements segments.Segment. It blocks for roughly one interval while
// it collects the burst; cancellation ends the burst early.
func (g *GPU) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	spacing := g.Interval() / time.Duration(g.cfg.Samples)

	var last Sample
	var got bool
	var errs []error
	for i := 0; i < g.cfg.Samples; i++ {
		if i > 0 {
			t := time.NewTimer(spacing)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
		s, err := g.query(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.push(s)
		last, got = s, true
	}
	if !got {
		return nil, fmt.Errorf("gpu: %w", errors.Join(errs...))
	}

	avg := g.mean()
	vramPerc := 0.0
	if last.MemTotal > 0 {
		vramPerc = last.MemUsed / last.MemTotal * 100
	}
	used := uint64(last.MemUsed * (1 << 20))
	total := uint64(last.MemTotal * (1 << 20))

	if notifyUser {
		_ = g.notifier.Notify(ctx, notify.Notification{
			Summary: "GPU",
			Body: fmt.Sprintf("%.0f MHz core, %.0f MHz memory\n%s of %s VRAM",
				avg.CoreClock, avg.MemClock, humanize.IBytes(used), humanize.IBytes(total)),
			Value: notify.Percent(avg.Util),
		})
	}

	return segments.Values{
		"perc":       avg.Util,
		"core":       avg.CoreClock,
		"mem_clock":  avg.MemClock,
		"vram_used":  used,
		"vram_total": total,
		"vram_perc":  vramPerc,
	}, nil
}

func (g *GPU) push(v Sample) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.window[g.next] = v
	g.next++
	if g.next == len(g.window) {
		g.next = 0
		g.filled = true
	}
}

// mean averages utilisation and clocks over the samples collected so far,
// up to the window size. Memory fields are left zero; VRAM is reported from
// the latest sample.
func (g *GPU) mean() Sample {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.next
	if g.filled {
		n = len(g.window)
	}
	if n == 0 {
		return Sample{}
	}
	var sum Sample
	for _, v := range g.window[:n] {
		sum.Util += v.Util
		sum.CoreClock += v.CoreClock
		sum.MemClock += v.MemClock
	}
	k := float64(n)
	return Sample{Util: sum.Util / k, CoreClock: sum.CoreClock / k, MemClock: sum.MemClock / k}
}

func querySMI(ctx context.Context) (Sample, error) {
	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu="+queryFields,
		"--format=csv,noheader,nounits",
	).Output()
	if err != nil {
		return Sample{}, fmt.Errorf("nvidia-smi: %w", err)
	}
	return ParseSample(string(out))
}

// ParseSample parses the first line of nvidia-smi CSV output for the
// utilization, graphics clock, memory clock, used and total memory fields.
func ParseSample(out string) (Sample, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return Sample{}, fmt.Errorf("nvidia-smi: unexpected output %q", line)
	}
	var vals [5]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("nvidia-smi: field %d: %w", i, err)
		}
		vals[i] = v
	}
	return Sample{
		Util:      vals[0],
		CoreClock: vals[1],
		MemClock:  vals[2],
		MemUsed:   vals[3],
		MemTotal:  vals[4],
	}, nil
}
