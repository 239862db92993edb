package stats

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// RuntimeStats reports process resource usage for the run summary.
type RuntimeStats struct {
	startTime time.Time
}

// NewRuntimeStats starts the run clock.
func NewRuntimeStats() *RuntimeStats {
	return &RuntimeStats{startTime: time.Now()}
}

// RuntimeSnapshot is the resource usage of the process so far.
type RuntimeSnapshot struct {
	Elapsed         time.Duration
	Goroutines      int
	HeapAllocBytes  uint64
	TotalAllocBytes uint64
	GCCycles        uint32
	// PeakRSSBytes is 0 where /proc is unavailable.
	PeakRSSBytes uint64
}

// Snapshot reads the current runtime statistics.
func (r *RuntimeStats) Snapshot() RuntimeSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeSnapshot{
		Elapsed:         time.Since(r.startTime),
		Goroutines:      runtime.NumGoroutine(),
		HeapAllocBytes:  m.HeapAlloc,
		TotalAllocBytes: m.TotalAlloc,
		GCCycles:        m.NumGC,
		PeakRSSBytes:    peakRSS("/proc/self/status"),
	}
}

// Fields returns the snapshot as log attributes.
func (s RuntimeSnapshot) Fields() map[string]interface{} {
	f := map[string]interface{}{
		"elapsed_seconds":   s.Elapsed.Seconds(),
		"goroutines":        s.Goroutines,
		"heap_alloc_bytes":  s.HeapAllocBytes,
		"total_alloc_bytes": s.TotalAllocBytes,
		"gc_cycles":         s.GCCycles,
	}
	if s.PeakRSSBytes > 0 {
		f["peak_rss_bytes"] = s.PeakRSSBytes
	}
	return f
}

// peakRSS reads VmHWM from a /proc/<pid>/status file.
func peakRSS(path string) uint64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	return parseVmHWM(bufio.NewScanner(f))
}

func parseVmHWM(sc *bufio.Scanner) uint64 {
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "VmHWM:") {
			continue
		}
		// Format: "VmHWM:     1234 kB"
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}
	return 0
}
