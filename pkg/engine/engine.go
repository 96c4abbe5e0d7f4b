// Package engine schedules barpulse segments. It runs one goroutine per
// segment, keeps the latest rendered fragment of each in a shared Table,
// publishes the combined status line on a wall-clock aligned heartbeat, and
// serves out-of-band force requests that re-poll one segment with a
// notification and publish immediately.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// Default heartbeat cadence.
const (
	DefaultHeartbeatPeriod = time.Second
	DefaultHeartbeatOffset = 10 * time.Millisecond
)

var (
	// ErrIndexOutOfRange is returned by Force for an unknown segment index.
	ErrIndexOutOfRange = errors.New("segment index out of range")

	// ErrAlreadyStarted is returned by Start on a running engine.
	ErrAlreadyStarted = errors.New("engine already started")
)

// Publisher receives the ordered fragments on every heartbeat and forced
// update. Implementations must not return errors; sink failures are theirs
// to swallow.
type Publisher interface {
	Publish(ctx context.Context, fragments []string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithHeartbeat sets the publish period and the offset past each period
// boundary at which the heartbeat fires. A zero period disables the
// heartbeat.
func WithHeartbeat(period, offset time.Duration) Option {
	return func(e *Engine) {
		e.period = period
		e.offset = offset
	}
}

// WithClock overrides the wall clock used to align the heartbeat.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns the per-segment tasks, the slot table, and the heartbeat.
type Engine struct {
	reg    *segments.Registry
	segs   []segments.Segment
	table  *Table
	pub    Publisher
	logger *slog.Logger

	period time.Duration
	offset time.Duration
	now    func() time.Time

	// force[i] carries pending force requests to segment i's task. The
	// buffer of one coalesces bursts.
	force []chan struct{}

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an engine for the segments in reg. The registry must not be
// modified afterwards.
func New(reg *segments.Registry, pub Publisher, opts ...Option) *Engine {
	segs := reg.Segments()
	e := &Engine{
		reg:    reg,
		segs:   segs,
		table:  NewTable(len(segs)),
		pub:    pub,
		logger: slog.Default(),
		period: DefaultHeartbeatPeriod,
		offset: DefaultHeartbeatOffset,
		now:    time.Now,
		force:  make([]chan struct{}, len(segs)),
	}
	for i := range e.force {
		e.force[i] = make(chan struct{}, 1)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the slot table.
func (e *Engine) Table() *Table {
	return e.table
}

// Start launches one goroutine per segment plus the heartbeat. The tasks run
// until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for i, s := range e.segs {
		e.wg.Add(1)
		go e.runSegment(runCtx, i, s)
	}
	if e.period > 0 {
		e.wg.Add(1)
		go e.heartbeat(runCtx)
	}

	e.logger.Info("engine started", "segments", len(e.segs), "heartbeat", e.period)
	return nil
}

// Stop cancels every task and waits for all of them to return. After Stop
// returns no slot is written and nothing is published. It is safe to call
// more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Run starts the engine and blocks until ctx is done, then stops it.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	e.Stop()
	e.logger.Info("engine stopped")
	return nil
}

// Force asks segment i to poll with a notification, store its fragment,
// and publish immediately. The request is handled by the segment's own task,
// so it never waits on other segments. A request made while another is
// still pending for the same segment is merged into it.
func (e *Engine) Force(i int) error {
	if i < 0 || i >= len(e.force) {
		return fmt.Errorf("force %d: %w", i, ErrIndexOutOfRange)
	}
	select {
	case e.force[i] <- struct{}{}:
	default:
	}
	return nil
}

// Status returns the current combined status line.
func (e *Engine) Status() string {
	return e.table.Join()
}

func (e *Engine) runSegment(ctx context.Context, i int, s segments.Segment) {
	defer e.wg.Done()

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.poll(ctx, i, s, false)
			timer.Reset(s.Interval())
		case <-e.force[i]:
			e.poll(ctx, i, s, true)
			if ctx.Err() == nil {
				e.publish(ctx)
			}
		}
	}
}

// poll runs one poll of segment i and stores the rendered fragment. A poll
// that produced no result, failed, or finished after stop leaves the slot
// untouched.
func (e *Engine) poll(ctx context.Context, i int, s segments.Segment, notify bool) {
	start := time.Now()
	v, err := s.Poll(ctx, notify)
	latency := time.Since(start)

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		e.logger.Debug("segment poll failed", "segment", s.Name(), "index", i, "error", err)
		e.reg.Record(i, latency, notify, false, err)
		return
	}
	if v == nil {
		e.reg.Record(i, latency, notify, true, nil)
		return
	}

	text, err := s.Render(i, v)
	if err != nil {
		e.logger.Debug("segment render failed", "segment", s.Name(), "index", i, "error", err)
		e.reg.Record(i, latency, notify, false, err)
		return
	}

	e.table.Set(i, text)
	e.reg.Record(i, latency, notify, false, nil)
}

func (e *Engine) heartbeat(ctx context.Context) {
	defer e.wg.Done()

	for {
		t := time.NewTimer(NextTick(e.now(), e.period, e.offset))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if ctx.Err() != nil {
			return
		}
		e.publish(ctx)
	}
}

func (e *Engine) publish(ctx context.Context) {
	e.pub.Publish(ctx, e.table.Snapshot())
}

// NextTick returns how long to wait from now until the next period boundary
// plus offset. Boundaries are multiples of period since the zero time, so a
// one second period lands on whole wall-clock seconds.
func NextTick(now time.Time, period, offset time.Duration) time.Duration {
	if period <= 0 {
		return offset
	}
	next := now.Truncate(period).Add(offset)
	for !next.After(now) {
		next = next.Add(period)
	}
	return next.Sub(now)
}
