package engine

import (
	"strings"
	"sync"
)

// Table holds the latest rendered fragment of every segment. Each segment
// task writes only its own slot; the heartbeat and forced publishes read a
// consistent snapshot of all slots.
type Table struct {
	mu    sync.RWMutex
	slots []string
}

// NewTable returns a table with n empty slots.
func NewTable(n int) *Table {
	return &Table{slots: make([]string, n)}
}

// Len returns the number of slots.
func (t *Table) Len() int {
	return len(t.slots)
}

// Set stores s in slot i. Out-of-range indices are ignored.
func (t *Table) Set(i int, s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.slots) {
		return
	}
	t.slots[i] = s
}

// Get returns the fragment in slot i.
func (t *Table) Get(i int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.slots) {
		return ""
	}
	return t.slots[i]
}

// Snapshot returns a copy of all slots in segment order.
func (t *Table) Snapshot() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.slots))
	copy(out, t.slots)
	return out
}

// Join concatenates all slots in order. Fragments carry their own padding,
// so no separator is inserted.
func (t *Table) Join() string {
	return strings.Join(t.Snapshot(), "")
}
