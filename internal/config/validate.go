package config

import (
	"fmt"
	"strings"

	"github.com/szibis/datasplit/internal/cardinality"
	"github.com/szibis/datasplit/internal/compression"
	"github.com/szibis/datasplit/internal/split"
)

// ValidationError lists every configuration problem. It unwraps to the
// split errors behind them so callers can classify the failure.
type ValidationError struct {
	Problems []string
	causes   []error
}

func (e *ValidationError) Error() string {
	return "configuration validation failed:\n  - " + strings.Join(e.Problems, "\n  - ")
}

func (e *ValidationError) Unwrap() []error { return e.causes }

// Validate checks the configuration before any file is opened. All
// problems are reported together.
func (c *Config) Validate() error {
	var errs []string
	var causes []error

	if c.Input == "" {
		errs = append(errs, "input path is required (use - for stdin)")
	}
	if c.ReadsStdin() && c.OutputPrefix == "" {
		errs = append(errs, "output-prefix is required when reading stdin")
	}

	switch {
	case len(c.Rows) == 0 && len(c.Proportions) == 0:
		errs = append(errs, "one of rows or prop must define at least one split")
		causes = append(causes, split.ErrInvalidSet)
	case len(c.Rows) > 0 && len(c.Proportions) > 0:
		errs = append(errs, "rows and prop cannot be combined")
		causes = append(causes, split.ErrInvalidSet)
	default:
		if _, err := c.SplitSet(); err != nil {
			errs = append(errs, err.Error())
			causes = append(causes, err)
		}
	}

	if c.ChunkSizeSet && c.ChunkSize == 0 {
		errs = append(errs, "chunk-size must be > 0")
	}
	if c.ChannelCapacity < 1 {
		errs = append(errs, fmt.Sprintf("channel-capacity must be >= 1, got %d", c.ChannelCapacity))
	}
	if c.ProgressInterval < 0 {
		errs = append(errs, fmt.Sprintf("progress-interval must be >= 0, got %s", c.ProgressInterval))
	}
	if c.MemoryLimitRatio < 0 || c.MemoryLimitRatio > 1 {
		errs = append(errs, fmt.Sprintf("memory-limit-ratio must be between 0.0 and 1.0, got %v", c.MemoryLimitRatio))
	}

	if _, err := compression.ParseType(c.InputCompression); err != nil {
		errs = append(errs, fmt.Sprintf("input-compression must be none, gzip, zstd or auto: %v", err))
	}
	out, err := compression.ParseType(c.OutputCompression)
	switch {
	case err != nil:
		errs = append(errs, fmt.Sprintf("output-compression must be none, gzip or zstd: %v", err))
	case out == compression.TypeAuto:
		errs = append(errs, "output-compression must be none, gzip or zstd, got auto")
	}
	if err == nil && out != compression.TypeAuto {
		if lerr := c.OutputCompressionConfig().Validate(); lerr != nil {
			errs = append(errs, fmt.Sprintf("compression-level: %v", lerr))
		}
	}

	if _, err := cardinality.ParseMode(c.LeakageMode); err != nil {
		errs = append(errs, fmt.Sprintf("leakage-mode must be bloom or exact, got %q", c.LeakageMode))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log-level must be debug, info, warn or error, got %q", c.LogLevel))
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Problems: errs, causes: causes}
}
