package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the YAML configuration file structure. Pointer
// fields distinguish "absent" from a zero value.
type YAMLConfig struct {
	Input        string            `yaml:"input"`
	OutputPrefix string            `yaml:"output_prefix"`
	Splits       SplitsYAMLConfig  `yaml:"splits"`
	ChunkSize    *uint64           `yaml:"chunk_size"`
	TotalRows    *uint64           `yaml:"total_rows"`
	Seed         *uint64           `yaml:"seed"`
	Header       *bool             `yaml:"header"`
	CSV          *bool             `yaml:"csv"`
	Compression  CompressionYAML   `yaml:"compression"`
	Channel      ChannelYAMLConfig `yaml:"channel"`
	Stats        StatsYAMLConfig   `yaml:"stats"`
	Memory       MemoryYAMLConfig  `yaml:"memory"`
	LogLevel     string            `yaml:"log_level"`
}

// SplitsYAMLConfig lists the splits in order, as "name=N" or "name=F".
type SplitsYAMLConfig struct {
	Rows        []string `yaml:"rows"`
	Proportions []string `yaml:"proportions"`
}

// CompressionYAML holds input and output codec settings.
type CompressionYAML struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Level  *int   `yaml:"level"`
}

// ChannelYAMLConfig holds writer channel settings.
type ChannelYAMLConfig struct {
	Capacity *int `yaml:"capacity"`
}

// StatsYAMLConfig holds progress and statistics settings.
type StatsYAMLConfig struct {
	ProgressInterval *Duration `yaml:"progress_interval"`
	DetectLeakage    *bool     `yaml:"detect_leakage"`
	LeakageMode      string    `yaml:"leakage_mode"`
	MetricsFile      string    `yaml:"metrics_file"`
}

// MemoryYAMLConfig holds memory limit configuration.
type MemoryYAMLConfig struct {
	// LimitRatio is the ratio of container memory to use for GOMEMLIMIT (0.0-1.0)
	LimitRatio *float64 `yaml:"limit_ratio"`
}

// Duration is a wrapper for time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML parses YAML configuration data. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func ParseYAML(data []byte) (*YAMLConfig, error) {
	var cfg YAMLConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// ApplyTo overlays the values present in the file onto cfg.
func (y *YAMLConfig) ApplyTo(cfg *Config) {
	if y.Input != "" {
		cfg.Input = y.Input
	}
	if y.OutputPrefix != "" {
		cfg.OutputPrefix = y.OutputPrefix
	}
	if len(y.Splits.Rows) > 0 {
		cfg.Rows = append([]string(nil), y.Splits.Rows...)
	}
	if len(y.Splits.Proportions) > 0 {
		cfg.Proportions = append([]string(nil), y.Splits.Proportions...)
	}
	if y.ChunkSize != nil {
		cfg.ChunkSize, cfg.ChunkSizeSet = *y.ChunkSize, true
	}
	if y.TotalRows != nil {
		cfg.TotalRows = *y.TotalRows
	}
	if y.Seed != nil {
		cfg.Seed, cfg.SeedSet = *y.Seed, true
	}
	if y.Header != nil {
		cfg.NoHeader = !*y.Header
	}
	if y.CSV != nil {
		cfg.CSV = *y.CSV
	}
	if y.Compression.Input != "" {
		cfg.InputCompression = y.Compression.Input
	}
	if y.Compression.Output != "" {
		cfg.OutputCompression = y.Compression.Output
	}
	if y.Compression.Level != nil {
		cfg.CompressionLevel = *y.Compression.Level
	}
	if y.Channel.Capacity != nil {
		cfg.ChannelCapacity = *y.Channel.Capacity
	}
	if y.Stats.ProgressInterval != nil {
		cfg.ProgressInterval = time.Duration(*y.Stats.ProgressInterval)
	}
	if y.Stats.DetectLeakage != nil {
		cfg.DetectLeakage = *y.Stats.DetectLeakage
	}
	if y.Stats.LeakageMode != "" {
		cfg.LeakageMode = y.Stats.LeakageMode
	}
	if y.Stats.MetricsFile != "" {
		cfg.MetricsFile = y.Stats.MetricsFile
	}
	if y.Memory.LimitRatio != nil {
		cfg.MemoryLimitRatio = *y.Memory.LimitRatio
	}
	if y.LogLevel != "" {
		cfg.LogLevel = y.LogLevel
	}
}
