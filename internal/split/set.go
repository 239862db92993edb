package split

import (
	"fmt"
	"math/rand/v2"
)

// Mode tells which kind of splits a Set holds. A run uses one mode only.
type Mode int

const (
	ModeRows Mode = iota
	ModeProportions
)

func (m Mode) String() string {
	if m == ModeRows {
		return "rows"
	}
	return "proportions"
}

// Kind is the outcome of a selection.
type Kind int

const (
	// Selected means Selection.Name names the split for the row.
	Selected Kind = iota
	// NoMatch means the draw fell outside every proportion; the row is
	// discarded.
	NoMatch
	// Exhausted means every row split is full; no more input should be read.
	Exhausted
)

// Selection is the result of Set.Select.
type Selection struct {
	Kind Kind
	Name string
}

// Set is the ordered collection of splits for one run. Only the dispatch
// goroutine may call Select; it mutates row counters without locking.
type Set struct {
	mode        Mode
	rows        []RowSplit
	proportions []ProportionSplit
	// remaining is Σ(Total-Done) over row splits.
	remaining float64
}

// NewRowSet builds a row-count set.
func NewRowSet(rows []RowSplit) (*Set, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no splits", ErrInvalidSet)
	}
	if err := uniqueNames(len(rows), func(i int) string { return rows[i].Name }); err != nil {
		return nil, err
	}
	s := &Set{mode: ModeRows, rows: append([]RowSplit(nil), rows...)}
	for _, r := range s.rows {
		if r.Done < 0 || r.Done > r.Total {
			return nil, fmt.Errorf("%w: split %q has done=%v outside [0, %v]", ErrInvalidSet, r.Name, r.Done, r.Total)
		}
		s.remaining += r.Remaining()
	}
	return s, nil
}

// NewProportionSet builds a proportion set. The proportions must not sum to
// more than 1; any shortfall becomes a discard bucket.
func NewProportionSet(props []ProportionSplit) (*Set, error) {
	if len(props) == 0 {
		return nil, fmt.Errorf("%w: no splits", ErrInvalidSet)
	}
	if err := uniqueNames(len(props), func(i int) string { return props[i].Name }); err != nil {
		return nil, err
	}
	total := 0.0
	for _, p := range props {
		if p.Proportion <= 0 || p.Proportion >= 1 {
			return nil, fmt.Errorf("%w: split %q has proportion %v outside (0, 1)", ErrInvalidSet, p.Name, p.Proportion)
		}
		total += p.Proportion
	}
	if total > 1.0 {
		return nil, fmt.Errorf("%w: proportions sum to %v, more than 1", ErrInvalidSet, total)
	}
	return &Set{mode: ModeProportions, proportions: append([]ProportionSplit(nil), props...)}, nil
}

// NewSet picks the mode from whichever list is non-empty. Mixing modes is
// rejected.
func NewSet(rows []RowSplit, props []ProportionSplit) (*Set, error) {
	switch {
	case len(rows) > 0 && len(props) > 0:
		return nil, fmt.Errorf("%w: row and proportion splits cannot be mixed", ErrInvalidSet)
	case len(rows) > 0:
		return NewRowSet(rows)
	default:
		return NewProportionSet(props)
	}
}

func uniqueNames(n int, name func(int) string) error {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		if seen[name(i)] {
			return fmt.Errorf("%w: duplicate split name %q", ErrInvalidSet, name(i))
		}
		seen[name(i)] = true
	}
	return nil
}

// Mode returns the set's mode.
func (s *Set) Mode() Mode { return s.mode }

// Len returns the number of splits.
func (s *Set) Len() int {
	if s.mode == ModeRows {
		return len(s.rows)
	}
	return len(s.proportions)
}

// Names returns the split names in declaration order.
func (s *Set) Names() []string {
	names := make([]string, 0, s.Len())
	for _, r := range s.rows {
		names = append(names, r.Name)
	}
	for _, p := range s.proportions {
		names = append(names, p.Name)
	}
	return names
}

// Rows returns a copy of the row splits with their current counters.
func (s *Set) Rows() []RowSplit {
	return append([]RowSplit(nil), s.rows...)
}

// Proportions returns a copy of the proportion splits.
func (s *Set) Proportions() []ProportionSplit {
	return append([]ProportionSplit(nil), s.proportions...)
}

// Exhausted reports whether every row split is full. Proportion sets are
// never exhausted.
func (s *Set) Exhausted() bool {
	return s.mode == ModeRows && s.remaining <= 0
}

// Select draws from rng and names the split the next row belongs to.
func (s *Set) Select(rng *rand.Rand) Selection {
	if s.mode == ModeRows {
		return s.selectRow(rng)
	}
	return s.selectProportion(rng)
}

func (s *Set) selectProportion(rng *rand.Rand) Selection {
	r := rng.Float64()
	cum := 0.0
	for _, p := range s.proportions {
		cum += p.Proportion
		if r < cum {
			return Selection{Kind: Selected, Name: p.Name}
		}
	}
	return Selection{Kind: NoMatch}
}

func (s *Set) selectRow(rng *rand.Rand) Selection {
	if s.remaining <= 0 {
		return Selection{Kind: Exhausted}
	}
	r := rng.Float64() * s.remaining
	cum := 0.0
	last := -1
	for i := range s.rows {
		if s.rows[i].Full() {
			continue
		}
		last = i
		cum += s.rows[i].Remaining()
		if r < cum {
			return s.take(i)
		}
	}
	// r rounded up to remaining; the walk covered every unfinished split.
	if last >= 0 {
		return s.take(last)
	}
	s.remaining = 0
	return Selection{Kind: Exhausted}
}

func (s *Set) take(i int) Selection {
	s.rows[i].Done++
	s.remaining--
	if s.rows[i].Full() {
		// Recompute to shed any floating point drift once a split fills.
		s.remaining = 0
		for _, r := range s.rows {
			if !r.Full() {
				s.remaining += r.Remaining()
			}
		}
	}
	return Selection{Kind: Selected, Name: s.rows[i].Name}
}
