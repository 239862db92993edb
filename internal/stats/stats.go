// Package stats tracks per-split progress for a run and reports it as
// periodic log lines, a final summary and prometheus metrics.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/szibis/datasplit/internal/cardinality"
	"github.com/szibis/datasplit/internal/logging"
)

// Split describes one split to the collector.
type Split struct {
	Name string
	// Expected is the number of rows the split should receive, or 0 when
	// unknown.
	Expected uint64
}

// Options configure optional per-row statistics.
type Options struct {
	// Distinct estimates distinct rows per split with HyperLogLog.
	Distinct bool
	// DetectLeakage counts rows whose content already went to another split.
	DetectLeakage bool
	// Tracker sizes the membership trackers used for leakage detection.
	Tracker cardinality.Config
}

// Collector tracks per-split progress. Inc and Finish are called by the
// dispatch loop; reads may happen concurrently from the periodic logger or a
// metrics gatherer.
type Collector struct {
	mu      sync.RWMutex
	order   []string
	splits  map[string]*splitStats
	opts    Options
	runtime *RuntimeStats

	rowsDesc     *prometheus.Desc
	expectedDesc *prometheus.Desc
	distinctDesc *prometheus.Desc
	leakedDesc   *prometheus.Desc
}

type splitStats struct {
	rows     uint64
	expected uint64
	finished bool
	leaked   uint64
	distinct cardinality.Tracker
	members  cardinality.Tracker
}

// SplitSnapshot is a point-in-time copy of one split's statistics.
type SplitSnapshot struct {
	Name     string
	Rows     uint64
	Expected uint64
	Finished bool
	// Distinct is -1 when distinct tracking is off.
	Distinct int64
	// Leaked is -1 when leakage detection is off.
	Leaked int64
}

// Percent returns progress towards Expected, or -1 when it is unknown.
func (s SplitSnapshot) Percent() float64 {
	if s.Expected == 0 {
		return -1
	}
	return float64(s.Rows) / float64(s.Expected) * 100
}

// NewCollector creates a collector for splits, keeping their order.
func NewCollector(splits []Split, opts Options) *Collector {
	c := &Collector{
		splits:  make(map[string]*splitStats, len(splits)),
		opts:    opts,
		runtime: NewRuntimeStats(),
		rowsDesc: prometheus.NewDesc("datasplit_split_rows",
			"Rows dispatched to the split", []string{"split"}, nil),
		expectedDesc: prometheus.NewDesc("datasplit_split_expected_rows",
			"Rows the split is expected to receive, when known", []string{"split"}, nil),
		distinctDesc: prometheus.NewDesc("datasplit_split_distinct_rows",
			"Estimated distinct rows dispatched to the split", []string{"split"}, nil),
		leakedDesc: prometheus.NewDesc("datasplit_split_leaked_rows",
			"Rows whose content was already dispatched to another split", []string{"split"}, nil),
	}
	for _, s := range splits {
		st := &splitStats{expected: s.Expected}
		if opts.Distinct {
			st.distinct = cardinality.NewHLLTracker()
		}
		if opts.DetectLeakage {
			st.members = cardinality.NewTracker(opts.Tracker)
		}
		c.order = append(c.order, s.Name)
		c.splits[s.Name] = st
	}
	return c
}

// Inc adds n dispatched rows to split.
func (c *Collector) Inc(split string, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.splits[split]; ok {
		st.rows += n
	}
}

// Finish marks split as complete.
func (c *Collector) Finish(split string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.splits[split]; ok {
		st.finished = true
	}
}

// Observe records the content of a row dispatched to split.
func (c *Collector) Observe(split, row string) {
	if !c.opts.Distinct && !c.opts.DetectLeakage {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.splits[split]
	if !ok {
		return
	}
	if st.distinct != nil {
		st.distinct.Add(row)
	}
	if st.members == nil {
		return
	}
	for _, name := range c.order {
		if name == split {
			continue
		}
		if c.splits[name].members.Seen(row) {
			st.leaked++
			break
		}
	}
	st.members.Add(row)
}

// Snapshot returns the statistics of every split in creation order.
func (c *Collector) Snapshot() []SplitSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SplitSnapshot, 0, len(c.order))
	for _, name := range c.order {
		st := c.splits[name]
		snap := SplitSnapshot{
			Name:     name,
			Rows:     st.rows,
			Expected: st.expected,
			Finished: st.finished,
			Distinct: -1,
			Leaked:   -1,
		}
		if st.distinct != nil {
			snap.Distinct = int64(st.distinct.Count())
		}
		if st.members != nil {
			snap.Leaked = int64(st.leaked)
		}
		out = append(out, snap)
	}
	return out
}

// Total returns the rows dispatched across all splits.
func (c *Collector) Total() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total uint64
	for _, st := range c.splits {
		total += st.rows
	}
	return total
}

// StartPeriodicLogging logs one progress line per split every interval
// until ctx is done.
func (c *Collector) StartPeriodicLogging(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logProgress()
		}
	}
}

func (c *Collector) logProgress() {
	for _, s := range c.Snapshot() {
		fields := logging.F("split", s.Name, "rows", s.Rows, "finished", s.Finished)
		if s.Expected > 0 {
			fields["expected"] = s.Expected
			fields["percent"] = s.Percent()
		}
		logging.Info("progress", fields)
	}
}

// LogSummary logs the final per-split table and run resource usage.
func (c *Collector) LogSummary() {
	for _, s := range c.Snapshot() {
		fields := logging.F("split", s.Name, "rows", s.Rows)
		if s.Expected > 0 {
			fields["expected"] = s.Expected
		}
		if s.Distinct >= 0 {
			fields["distinct_rows"] = s.Distinct
		}
		if s.Leaked >= 0 {
			fields["leaked_rows"] = s.Leaked
			if s.Leaked > 0 {
				logging.Warn("split shares rows with another split", logging.F("split", s.Name, "leaked_rows", s.Leaked))
			}
		}
		logging.Info("split summary", fields)
	}
	fields := c.runtime.Snapshot().Fields()
	fields["rows_total"] = c.Total()
	logging.Info("run summary", fields)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rowsDesc
	ch <- c.expectedDesc
	ch <- c.distinctDesc
	ch <- c.leakedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.rowsDesc, prometheus.GaugeValue, float64(s.Rows), s.Name)
		if s.Expected > 0 {
			ch <- prometheus.MustNewConstMetric(c.expectedDesc, prometheus.GaugeValue, float64(s.Expected), s.Name)
		}
		if s.Distinct >= 0 {
			ch <- prometheus.MustNewConstMetric(c.distinctDesc, prometheus.GaugeValue, float64(s.Distinct), s.Name)
		}
		if s.Leaked >= 0 {
			ch <- prometheus.MustNewConstMetric(c.leakedDesc, prometheus.GaugeValue, float64(s.Leaked), s.Name)
		}
	}
}
