// Package cardinality tracks which rows a split has already received.
//
// Trackers answer two questions: how many distinct rows went into a split,
// and whether a given row was already routed there. Bloom and exact trackers
// answer both; the HyperLogLog tracker only estimates the count.
package cardinality

import "fmt"

// Mode selects the membership tracker implementation.
type Mode int

const (
	// ModeBloom trades a small false positive rate for fixed memory.
	ModeBloom Mode = iota
	// ModeExact keeps every row in a map.
	ModeExact
)

// String returns the flag spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeBloom:
		return "bloom"
	case ModeExact:
		return "exact"
	default:
		return "unknown"
	}
}

// ParseMode parses "bloom" or "exact".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "bloom":
		return ModeBloom, nil
	case "exact":
		return ModeExact, nil
	default:
		return ModeBloom, fmt.Errorf("unknown tracker mode %q", s)
	}
}

// Config sizes membership trackers.
type Config struct {
	Mode Mode
	// ExpectedItems sizes the bloom filter; more items than this raise the
	// false positive rate above FalsePositiveRate.
	ExpectedItems uint
	// FalsePositiveRate is the bloom filter target, e.g. 0.01.
	FalsePositiveRate float64
}

// DefaultConfig sizes a bloom filter for a million rows at 1% false
// positives, roughly 1.2 MB per split.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeBloom,
		ExpectedItems:     1_000_000,
		FalsePositiveRate: 0.01,
	}
}

// NewTracker returns a membership tracker for cfg.
func NewTracker(cfg Config) Tracker {
	if cfg.Mode == ModeExact {
		return NewExactTracker()
	}
	return NewBloomTracker(cfg)
}
