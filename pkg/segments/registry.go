package segments

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Status tracks the runtime state of a single segment. The engine updates
// it after every poll.
type Status struct {
	Name        string        `json:"name"`
	Position    int           `json:"position"`
	Healthy     bool          `json:"healthy"`
	LastRun     time.Time     `json:"last_run"`
	LastError   string        `json:"last_error,omitempty"`
	RunCount    int64         `json:"run_count"`
	ErrorCount  int64         `json:"error_count"`
	EmptyCount  int64         `json:"empty_count"`
	ForceCount  int64         `json:"force_count"`
	LastLatency time.Duration `json:"last_latency"`
}

// Registry is the ordered list of segments making up the status line. A
// segment's position in the registry is its slot index. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	segments []Segment
	statuses []*Status
}

// NewRegistry returns an empty registry ready for segment registration.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a segment and returns its 0-based index. It fails once
// MaxSegments segments are registered, since further segments could not be
// click-tagged.
func (r *Registry) Register(s Segment) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.segments) >= MaxSegments {
		return 0, fmt.Errorf("segment %q: at most %d segments supported", s.Name(), MaxSegments)
	}

	idx := len(r.segments)
	r.segments = append(r.segments, s)
	r.statuses = append(r.statuses, &Status{
		Name:     s.Name(),
		Position: idx + 1,
		Healthy:  true,
	})
	return idx, nil
}

// Len returns the number of registered segments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segments)
}

// At returns the segment at index i, or false if i is out of range.
func (r *Registry) At(i int) (Segment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.segments) {
		return nil, false
	}
	return r.segments[i], true
}

// Segments returns the registered segments in order.
func (r *Registry) Segments() []Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Segment, len(r.segments))
	copy(out, r.segments)
	return out
}

// Status returns a copy of the runtime status at index i.
func (r *Registry) Status(i int) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.statuses) {
		return Status{}, false
	}
	return *r.statuses[i], true
}

// AllStatus returns a copy of all statuses in segment order.
func (r *Registry) AllStatus() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, *s)
	}
	return out
}

// Record updates the status at index i after a poll. A nil err with
// empty=true counts as a poll that produced no result.
func (r *Registry) Record(i int, latency time.Duration, forced, empty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < 0 || i >= len(r.statuses) {
		return
	}
	s := r.statuses[i]
	s.LastRun = time.Now()
	s.LastLatency = latency
	s.RunCount++
	if forced {
		s.ForceCount++
	}
	switch {
	case err != nil:
		s.ErrorCount++
		s.Healthy = false
		s.LastError = err.Error()
	case empty:
		s.EmptyCount++
	default:
		s.Healthy = true
		s.LastError = ""
	}
}

// Close closes every segment that holds a connection (io.Closer) and joins
// their errors.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, s := range r.segments {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
