package cardinality

import (
	"sync"

	"github.com/axiomhq/hyperloglog"
)

// HLLTracker estimates distinct rows in about 12 KB regardless of input
// size. It cannot answer membership: Seen is always false and Add always
// reports the row as new.
type HLLTracker struct {
	mu     sync.Mutex
	sketch *hyperloglog.Sketch
}

// NewHLLTracker returns an empty sketch.
func NewHLLTracker() *HLLTracker {
	return &HLLTracker{sketch: hyperloglog.New()}
}

func (t *HLLTracker) Add(row string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sketch.Insert([]byte(row))
	return true
}

func (t *HLLTracker) Seen(string) bool { return false }

// Count takes the full lock because Estimate may merge the sparse list.
func (t *HLLTracker) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sketch.Estimate()
}
