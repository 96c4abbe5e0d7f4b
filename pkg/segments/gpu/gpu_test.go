package gpu

import (
	"context"
	"errors"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

func TestParseSample(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Sample
		wantErr bool
	}{
		{
			name: "single gpu",
			in:   "37, 1530, 7000, 2048, 8192\n",
			want: Sample{Util: 37, CoreClock: 1530, MemClock: 7000, MemUsed: 2048, MemTotal: 8192},
		},
		{
			name: "first of two gpus",
			in:   "5, 300, 405, 10, 4096\n90, 1900, 9500, 1, 2\n",
			want: Sample{Util: 5, CoreClock: 300, MemClock: 405, MemUsed: 10, MemTotal: 4096},
		},
		{name: "not supported", in: "[N/A], 300, 405, 10, 4096", wantErr: true},
		{name: "short", in: "5, 300", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSample(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSample err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSample = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func sequence(utils ...float64) Querier {
	i := 0
	return func(context.Context) (Sample, error) {
		u := utils[i%len(utils)]
		i++
		return Sample{Util: u, CoreClock: 1000, MemClock: 5000, MemUsed: 1024, MemTotal: 4096}, nil
	}
}

func TestBurstAndRollingWindow(t *testing.T) {
	opts := segments.Options{Format: "{{pct .perc}}", Interval: 4 * time.Millisecond}
	g, err := New(opts, Config{Samples: 2, SmoothSeconds: 2}, nil, WithQuerier(sequence(10, 30, 50, 70, 90, 110)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	want := []float64{20, 40, 80}
	for i, w := range want {
		v, err := g.Poll(context.Background(), false)
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		if got := v["perc"].(float64); got != w {
			t.Errorf("poll %d perc = %v, want %v", i, got, w)
		}
	}
}

func TestClocksAveragedOverWindow(t *testing.T) {
	clocks := []float64{1000, 2000, 3000, 4000}
	i := 0
	q := func(context.Context) (Sample, error) {
		c := clocks[i%len(clocks)]
		i++
		return Sample{Util: 50, CoreClock: c, MemClock: c * 2, MemTotal: 1}, nil
	}
	opts := segments.Options{Format: "{{pct .core}}", Interval: 4 * time.Millisecond}
	g, err := New(opts, Config{Samples: 4, SmoothSeconds: 1}, nil, WithQuerier(q))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	v, err := g.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if got := v["core"].(float64); got != 2500 {
		t.Errorf("core = %v, want 2500", got)
	}
	if got := v["mem_clock"].(float64); got != 5000 {
		t.Errorf("mem_clock = %v, want 5000", got)
	}
	if got := v["perc"].(float64); got != 50 {
		t.Errorf("perc = %v, want 50", got)
	}
}

func TestPollValues(t *testing.T) {
	rec := &notify.Recorder{}
	g, _ := New(segments.Options{Format: "x", Interval: time.Millisecond}, Config{Samples: 1}, rec, WithQuerier(sequence(40)))

	v, err := g.Poll(context.Background(), true)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["vram_perc"].(float64) != 25 {
		t.Errorf("vram_perc = %v, want 25", v["vram_perc"])
	}
	if v["vram_used"].(uint64) != 1<<30 {
		t.Errorf("vram_used = %v, want 1GiB", v["vram_used"])
	}
	sent := rec.Sent()
	if len(sent) != 1 || sent[0].Value == nil || *sent[0].Value != 40 {
		t.Errorf("notifications = %+v", sent)
	}
}

func TestPartialBurstFailure(t *testing.T) {
	calls := 0
	q := func(context.Context) (Sample, error) {
		calls++
		if calls%2 == 1 {
			return Sample{}, errors.New("busy")
		}
		return Sample{Util: 60}, nil
	}
	g, _ := New(segments.Options{Format: "x", Interval: 2 * time.Millisecond}, Config{Samples: 2}, nil, WithQuerier(q))
	v, err := g.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["perc"].(float64) != 60 {
		t.Errorf("perc = %v, want 60", v["perc"])
	}
}

func TestAllSamplesFail(t *testing.T) {
	q := func(context.Context) (Sample, error) { return Sample{}, errors.New("no driver") }
	g, _ := New(segments.Options{Format: "x", Interval: time.Millisecond}, Config{Samples: 1}, nil, WithQuerier(q))
	if v, err := g.Poll(context.Background(), false); err == nil || v != nil {
		t.Errorf("Poll = %v, %v; want no result", v, err)
	}
}

func TestPollCancelled(t *testing.T) {
	g, _ := New(segments.Options{Format: "x", Interval: time.Hour}, Config{Samples: 2}, nil, WithQuerier(sequence(1)))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := g.Poll(ctx, false); !errors.Is(err, context.Canceled) {
		t.Errorf("Poll err = %v, want context.Canceled", err)
	}
}
