package segments

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockSegment implements Segment for testing. It tracks how many times Poll
// has been called and how many of those calls asked for a notification.
type MockSegment struct {
	Base

	values Values
	err    error

	mu          sync.RWMutex
	callCount   atomic.Int64
	notifyCount atomic.Int64

	// PollFunc, if set, overrides the default Poll behavior. This allows
	// tests to inject dynamic behavior (e.g., return different values on
	// each call, or block until a signal).
	PollFunc func(ctx context.Context, notify bool) (Values, error)
}

// MockOption configures a MockSegment.
type MockOption func(*MockSegment)

// WithValues sets the values returned by Poll.
func WithValues(v Values) MockOption {
	return func(m *MockSegment) { m.values = v }
}

// WithError sets the error returned by Poll.
func WithError(err error) MockOption {
	return func(m *MockSegment) { m.err = err }
}

// WithPollFunc sets a custom function for Poll.
func WithPollFunc(fn func(ctx context.Context, notify bool) (Values, error)) MockOption {
	return func(m *MockSegment) { m.PollFunc = fn }
}

// NewMockSegment creates a mock segment with the given name, interval, and
// format. It panics on an invalid format since it is only used in tests.
func NewMockSegment(name string, interval time.Duration, format string, opts ...MockOption) *MockSegment {
	base, err := NewBase(name, Options{Format: format, Interval: interval})
	if err != nil {
		panic(err)
	}
	m := &MockSegment{Base: base}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetValues updates the returned values (thread-safe).
func (m *MockSegment) SetValues(v Values) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = v
}

// SetError updates the returned error (thread-safe).
func (m *MockSegment) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Poll performs a mock poll. It increments the call counters and returns the
// configured values and error, or delegates to PollFunc if set.
func (m *MockSegment) Poll(ctx context.Context, notify bool) (Values, error) {
	m.callCount.Add(1)
	if notify {
		m.notifyCount.Add(1)
	}

	if m.PollFunc != nil {
		return m.PollFunc(ctx, notify)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values, m.err
}

// CallCount returns how many times Poll has been called.
func (m *MockSegment) CallCount() int64 {
	return m.callCount.Load()
}

// NotifyCount returns how many Poll calls requested a notification.
func (m *MockSegment) NotifyCount() int64 {
	return m.notifyCount.Load()
}
