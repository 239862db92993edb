package cardinality

import (
	"fmt"
	"sync"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeBloom, false},
		{"bloom", ModeBloom, false},
		{"exact", ModeExact, false},
		{"hll", ModeBloom, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ModeExact.String() != "exact" || ModeBloom.String() != "bloom" || Mode(9).String() != "unknown" {
		t.Error("unexpected Mode.String()")
	}
}

func TestMembershipTrackers(t *testing.T) {
	trackers := map[string]Tracker{
		"bloom": NewTracker(Config{Mode: ModeBloom, ExpectedItems: 1000, FalsePositiveRate: 0.001}),
		"exact": NewTracker(Config{Mode: ModeExact}),
	}
	for name, tr := range trackers {
		t.Run(name, func(t *testing.T) {
			if !tr.Add("a,1") {
				t.Error("first Add should report new")
			}
			if tr.Add("a,1") {
				t.Error("second Add should report seen")
			}
			tr.Add("b,2")
			if !tr.Seen("a,1") || !tr.Seen("b,2") {
				t.Error("Seen should find added rows")
			}
			if tr.Seen("never") {
				t.Error("Seen reported a row that was never added")
			}
			if got := tr.Count(); got != 2 {
				t.Errorf("Count() = %d, want 2", got)
			}
		})
	}
}

func TestBloomTrackerDefaultsForZeroConfig(t *testing.T) {
	tr := NewBloomTracker(Config{})
	if tr.filter.Cap() == 0 {
		t.Fatal("filter should be sized from defaults")
	}
	tr.Add("x")
	if !tr.Seen("x") {
		t.Error("Seen(x) = false after Add")
	}
}

func TestHLLTrackerEstimate(t *testing.T) {
	tr := NewHLLTracker()
	for i := 0; i < 10000; i++ {
		tr.Add(fmt.Sprintf("row-%d", i%5000))
	}
	got := tr.Count()
	if got < 4750 || got > 5250 {
		t.Errorf("Count() = %d, want about 5000", got)
	}
	if tr.Seen("row-1") {
		t.Error("HLL cannot answer membership")
	}
}

func TestTrackersConcurrentAdd(t *testing.T) {
	for _, tr := range []Tracker{NewExactTracker(), NewBloomTracker(DefaultConfig()), NewHLLTracker()} {
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					tr.Add(fmt.Sprintf("%d-%d", g, i))
					tr.Seen("x")
					tr.Count()
				}
			}()
		}
		wg.Wait()
		if tr.Count() == 0 {
			t.Errorf("%T counted nothing", tr)
		}
	}
}
