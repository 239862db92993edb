package cardinality

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Tracker records rows and answers membership and count queries. All
// implementations are safe for concurrent use.
type Tracker interface {
	// Add records row and reports whether it was new.
	Add(row string) bool
	// Seen reports whether row was probably recorded before, without
	// recording it.
	Seen(row string) bool
	// Count returns the number of distinct rows recorded.
	Count() uint64
}

// BloomTracker is a fixed-size probabilistic tracker. Seen may report a
// false positive; Count undercounts by the rows that collided on Add.
type BloomTracker struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	count  uint64
}

// NewBloomTracker sizes the filter from cfg.ExpectedItems and
// cfg.FalsePositiveRate.
func NewBloomTracker(cfg Config) *BloomTracker {
	n, fp := cfg.ExpectedItems, cfg.FalsePositiveRate
	if n == 0 {
		n = DefaultConfig().ExpectedItems
	}
	if fp <= 0 || fp >= 1 {
		fp = DefaultConfig().FalsePositiveRate
	}
	return &BloomTracker{filter: bloom.NewWithEstimates(n, fp)}
}

func (t *BloomTracker) Add(row string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filter.TestOrAddString(row) {
		return false
	}
	t.count++
	return true
}

func (t *BloomTracker) Seen(row string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.filter.TestString(row)
}

func (t *BloomTracker) Count() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}
