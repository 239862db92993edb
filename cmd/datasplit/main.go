package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/szibis/datasplit/internal/config"
	"github.com/szibis/datasplit/internal/logging"
	"github.com/szibis/datasplit/internal/pipeline"
	"github.com/szibis/datasplit/internal/split"
	"github.com/szibis/datasplit/internal/stats"
)

// Exit codes.
const (
	exitOK    = 0
	exitRun   = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("datasplit", flag.ContinueOnError)
	cfg, err := config.ParseFlags(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "datasplit: %v\n", err)
		return exitUsage
	}
	if cfg.ShowHelp {
		config.PrintUsage()
		return exitOK
	}
	if cfg.ShowVersion {
		config.PrintVersion()
		return exitOK
	}

	runID := uuid.NewString()
	logging.SetOutput(os.Stderr)
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetResource(map[string]string{
		"service.name":    "datasplit",
		"service.version": config.Version(),
		"run.id":          runID,
	})

	if err := cfg.Validate(); err != nil {
		logging.Error("invalid configuration", logging.F(
			"error", err.Error(),
			"error_kind", string(pipeline.Classify(err)),
		))
		return exitUsage
	}
	set, err := cfg.SplitSet()
	if err != nil {
		logging.Error("invalid splits", logging.F("error", err.Error(), "error_kind", string(pipeline.Classify(err))))
		return exitUsage
	}

	applyMemoryLimit(cfg.MemoryLimitRatio)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector(expectedSplits(set, cfg.TotalRows), stats.Options{
		Distinct:      true,
		DetectLeakage: cfg.DetectLeakage,
		Tracker:       cfg.TrackerConfig(),
	})
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)

	progressCtx, stopProgress := context.WithCancel(ctx)
	progressDone := make(chan struct{})
	if cfg.ProgressInterval > 0 {
		go func() {
			defer close(progressDone)
			collector.StartPeriodicLogging(progressCtx, cfg.ProgressInterval)
		}()
	} else {
		close(progressDone)
	}

	logging.Info("datasplit starting", logging.F(
		"input", cfg.Input,
		"mode", set.Mode().String(),
		"splits", set.Names(),
		"seeded", cfg.SeedSet,
		"chunk_size", cfg.ChunkSize,
		"total_rows", cfg.TotalRows,
	))

	splitter := pipeline.New(cfg.PipelineConfig(), set, split.NewRand(cfg.SeedPtr()),
		pipeline.WithProgress(collector),
		pipeline.WithObserver(collector),
	)
	runErr := splitter.Run(ctx)

	stopProgress()
	<-progressDone
	collector.LogSummary()

	if cfg.MetricsFile != "" {
		gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, registry}
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, gatherers); err != nil {
			logging.Warn("failed to write metrics file", logging.F("path", cfg.MetricsFile, "error", err.Error()))
		}
	}

	if runErr != nil {
		logging.Error("split failed", logging.F(
			"error", runErr.Error(),
			"error_kind", string(pipeline.Classify(runErr)),
		))
		return exitRun
	}
	return exitOK
}

// expectedSplits sizes progress: the row target in row mode, total×p in
// proportion mode when the total is known.
func expectedSplits(set *split.Set, totalRows uint64) []stats.Split {
	var out []stats.Split
	for _, t := range pipeline.Targets(set) {
		s := stats.Split{Name: t.Name}
		switch {
		case t.ByRows:
			s.Expected = t.Rows
		case totalRows > 0:
			s.Expected = uint64(float64(totalRows) * t.Proportion)
		}
		out = append(out, s)
	}
	return out
}

// applyMemoryLimit sets GOMEMLIMIT from the cgroup limit, falling back to
// system memory. A ratio of 0 leaves the runtime default.
func applyMemoryLimit(ratio float64) {
	if ratio <= 0 {
		return
	}
	limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(ratio),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)
	if err != nil {
		logging.Warn("failed to set memory limit", logging.F("error", err.Error()))
		return
	}
	logging.Debug("memory limit set", logging.F("gomemlimit_bytes", limit, "ratio", ratio))
}
