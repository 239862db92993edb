package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stages timed by Record.
const (
	StageRead     = "read"
	StageDispatch = "dispatch"
	StageDrain    = "drain"
)

var (
	rowsRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "datasplit_rows_read_total",
		Help: "Data rows read from the input, excluding the header",
	})

	rowsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "datasplit_rows_dropped_total",
		Help: "Rows that fell outside every proportion and were discarded",
	})

	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datasplit_runs_total",
		Help: "Completed runs by result (ok or the failure kind)",
	}, []string{"result"})

	stageSeconds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datasplit_stage_seconds_total",
		Help: "Wall-clock seconds spent in each pipeline stage",
	}, []string{"stage"})

	// Resolved once; the read and dispatch stages are recorded per row.
	stageCounters map[string]prometheus.Counter
)

func init() {
	prometheus.MustRegister(rowsRead, rowsDropped, runsTotal, stageSeconds)

	stageCounters = make(map[string]prometheus.Counter, 3)
	for _, s := range []string{StageRead, StageDispatch, StageDrain} {
		c := stageSeconds.WithLabelValues(s)
		c.Add(0)
		stageCounters[s] = c
	}
}

// Record adds d to the stage's time counter. Unknown stages are ignored.
func Record(stage string, d time.Duration) {
	if c, ok := stageCounters[stage]; ok {
		c.Add(d.Seconds())
	}
}
