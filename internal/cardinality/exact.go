package cardinality

import "sync"

// ExactTracker remembers every row. Memory grows with the number of
// distinct rows.
type ExactTracker struct {
	mu   sync.RWMutex
	rows map[string]struct{}
}

// NewExactTracker returns an empty exact tracker.
func NewExactTracker() *ExactTracker {
	return &ExactTracker{rows: make(map[string]struct{})}
}

func (t *ExactTracker) Add(row string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[row]; ok {
		return false
	}
	t.rows[row] = struct{}{}
	return true
}

func (t *ExactTracker) Seen(row string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rows[row]
	return ok
}

func (t *ExactTracker) Count() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint64(len(t.rows))
}
