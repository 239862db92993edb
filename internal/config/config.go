package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/szibis/datasplit/internal/cardinality"
	"github.com/szibis/datasplit/internal/compression"
	"github.com/szibis/datasplit/internal/dataio"
	"github.com/szibis/datasplit/internal/pipeline"
	"github.com/szibis/datasplit/internal/split"
)

// version is set at build time via ldflags
var version = "dev"

// Version returns the build version.
func Version() string { return version }

// Config holds the application configuration.
type Config struct {
	ConfigFile string

	// Input is the file to split, or "-" for stdin.
	Input        string
	OutputPrefix string

	// Split definitions, "name=N" or "name=F". Exactly one list is used.
	Rows        []string
	Proportions []string

	// ChunkSize caps data rows per output file; 0 writes one file per split.
	ChunkSize uint64
	// ChunkSizeSet records that a chunk size was given, so 0 can be rejected.
	ChunkSizeSet bool
	TotalRows    uint64

	Seed    uint64
	SeedSet bool

	// Input decoding
	DecompressInput  bool
	InputCompression string
	CSV              bool
	NoHeader         bool

	// Output encoding
	CompressedOutput  bool
	OutputCompression string
	CompressionLevel  int

	ChannelCapacity int

	// Statistics
	ProgressInterval time.Duration
	DetectLeakage    bool
	LeakageMode      string
	MetricsFile      string

	MemoryLimitRatio float64
	LogLevel         string

	ShowHelp    bool
	ShowVersion bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		InputCompression:  "none",
		OutputCompression: "none",
		ChannelCapacity:   100,
		ProgressInterval:  5 * time.Second,
		LeakageMode:       "bloom",
		MemoryLimitRatio:  0.9,
		LogLevel:          "info",
	}
}

// listValue collects repeatable, comma separated flag values.
type listValue struct{ items *[]string }

func (l listValue) String() string {
	if l.items == nil {
		return ""
	}
	return strings.Join(*l.items, ",")
}

func (l listValue) Set(s string) error {
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*l.items = append(*l.items, item)
		}
	}
	return nil
}

// chunkSizeValue parses a chunk size and remembers that it was given.
type chunkSizeValue struct{ cfg *Config }

func (c chunkSizeValue) String() string {
	if c.cfg == nil {
		return "0"
	}
	return strconv.FormatUint(c.cfg.ChunkSize, 10)
}

func (c chunkSizeValue) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	c.cfg.ChunkSize, c.cfg.ChunkSizeSet = n, true
	return nil
}

// seedValue parses a uint64 seed and remembers that it was given.
type seedValue struct{ cfg *Config }

func (s seedValue) String() string {
	if s.cfg == nil || !s.cfg.SeedSet {
		return ""
	}
	return strconv.FormatUint(s.cfg.Seed, 10)
}

func (s seedValue) Set(v string) error {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return err
	}
	s.cfg.Seed, s.cfg.SeedSet = n, true
	return nil
}

// shortFlags maps single letter aliases to their long names.
var shortFlags = map[string]string{
	"r": "rows",
	"p": "prop",
	"c": "chunk-size",
	"t": "total-rows",
	"s": "seed",
	"o": "output-prefix",
	"d": "decompress-input",
	"C": "compressed-output",
	"n": "no-header",
	"h": "help",
}

func register(fs *flag.FlagSet, cfg *Config, configFile *string) {
	fs.StringVar(configFile, "config", "", "Path to YAML configuration file")

	for _, name := range []string{"rows", "r"} {
		fs.Var(listValue{&cfg.Rows}, name, "Row-count splits: name=N[,name=N...] (repeatable)")
	}
	for _, name := range []string{"prop", "p"} {
		fs.Var(listValue{&cfg.Proportions}, name, "Proportion splits: name=F[,name=F...] (repeatable)")
	}
	for _, name := range []string{"chunk-size", "c"} {
		fs.Var(chunkSizeValue{cfg}, name, "Maximum data rows per output file")
	}
	for _, name := range []string{"total-rows", "t"} {
		fs.Uint64Var(&cfg.TotalRows, name, cfg.TotalRows, "Expected number of data rows, used to plan chunks and progress")
	}
	for _, name := range []string{"seed", "s"} {
		fs.Var(seedValue{cfg}, name, "Random seed for reproducible splits")
	}
	for _, name := range []string{"output-prefix", "o"} {
		fs.StringVar(&cfg.OutputPrefix, name, cfg.OutputPrefix, "Output path prefix (directory and file stem)")
	}
	for _, name := range []string{"decompress-input", "d"} {
		fs.BoolVar(&cfg.DecompressInput, name, cfg.DecompressInput, "Read gzip compressed input")
	}
	for _, name := range []string{"compressed-output", "C"} {
		fs.BoolVar(&cfg.CompressedOutput, name, cfg.CompressedOutput, "Write gzip compressed output")
	}
	for _, name := range []string{"no-header", "n"} {
		fs.BoolVar(&cfg.NoHeader, name, cfg.NoHeader, "Input has no header row")
	}
	for _, name := range []string{"help", "h"} {
		fs.BoolVar(&cfg.ShowHelp, name, false, "Show help message")
	}

	fs.StringVar(&cfg.InputCompression, "input-compression", cfg.InputCompression, "Input compression: none, gzip, zstd, auto")
	fs.StringVar(&cfg.OutputCompression, "output-compression", cfg.OutputCompression, "Output compression: none, gzip, zstd")
	fs.IntVar(&cfg.CompressionLevel, "compression-level", cfg.CompressionLevel, "Output compression level (0 for default)")
	fs.BoolVar(&cfg.CSV, "csv", cfg.CSV, "Parse input as CSV records (quoted fields may span lines)")
	fs.IntVar(&cfg.ChannelCapacity, "channel-capacity", cfg.ChannelCapacity, "Rows buffered per chunk writer")
	fs.DurationVar(&cfg.ProgressInterval, "progress-interval", cfg.ProgressInterval, "Progress log interval (0 disables)")
	fs.BoolVar(&cfg.DetectLeakage, "detect-leakage", cfg.DetectLeakage, "Count rows whose content appears in more than one split")
	fs.StringVar(&cfg.LeakageMode, "leakage-mode", cfg.LeakageMode, "Leakage tracker: bloom or exact")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write run metrics to this file in Prometheus text format")
	fs.Float64Var(&cfg.MemoryLimitRatio, "memory-limit-ratio", cfg.MemoryLimitRatio, "Ratio of container/system memory for GOMEMLIMIT (0 disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version")
}

// ParseFlags parses args into a configuration. When -config names a YAML
// file its values apply first and flags given on the command line override
// them.
func ParseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := DefaultConfig()
	var configFile string
	register(fs, cfg, &configFile)
	fs.Usage = PrintUsage

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		cfg.Input = rest[0]
	default:
		return nil, fmt.Errorf("expected one input path, got %d: %s", len(rest), strings.Join(rest, " "))
	}

	if configFile == "" {
		return cfg, nil
	}

	y, err := LoadYAML(configFile)
	if err != nil {
		return nil, err
	}
	merged := DefaultConfig()
	y.ApplyTo(merged)
	merged.ConfigFile = configFile
	if cfg.Input != "" {
		merged.Input = cfg.Input
	}
	applyFlagOverrides(fs, cfg, merged)
	return merged, nil
}

// applyFlagOverrides copies flags set on the command line from parsed to dst.
func applyFlagOverrides(fs *flag.FlagSet, parsed, dst *Config) {
	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if long, ok := shortFlags[name]; ok {
			name = long
		}
		switch name {
		case "rows":
			dst.Rows = parsed.Rows
		case "prop":
			dst.Proportions = parsed.Proportions
		case "chunk-size":
			dst.ChunkSize, dst.ChunkSizeSet = parsed.ChunkSize, parsed.ChunkSizeSet
		case "total-rows":
			dst.TotalRows = parsed.TotalRows
		case "seed":
			dst.Seed, dst.SeedSet = parsed.Seed, parsed.SeedSet
		case "output-prefix":
			dst.OutputPrefix = parsed.OutputPrefix
		case "decompress-input":
			dst.DecompressInput = parsed.DecompressInput
		case "compressed-output":
			dst.CompressedOutput = parsed.CompressedOutput
		case "no-header":
			dst.NoHeader = parsed.NoHeader
		case "help":
			dst.ShowHelp = parsed.ShowHelp
		case "input-compression":
			dst.InputCompression = parsed.InputCompression
		case "output-compression":
			dst.OutputCompression = parsed.OutputCompression
		case "compression-level":
			dst.CompressionLevel = parsed.CompressionLevel
		case "csv":
			dst.CSV = parsed.CSV
		case "channel-capacity":
			dst.ChannelCapacity = parsed.ChannelCapacity
		case "progress-interval":
			dst.ProgressInterval = parsed.ProgressInterval
		case "detect-leakage":
			dst.DetectLeakage = parsed.DetectLeakage
		case "leakage-mode":
			dst.LeakageMode = parsed.LeakageMode
		case "metrics-file":
			dst.MetricsFile = parsed.MetricsFile
		case "memory-limit-ratio":
			dst.MemoryLimitRatio = parsed.MemoryLimitRatio
		case "log-level":
			dst.LogLevel = parsed.LogLevel
		case "version":
			dst.ShowVersion = parsed.ShowVersion
		}
	})
}

// SplitSet parses the split definitions into a selection set.
func (c *Config) SplitSet() (*split.Set, error) {
	var rows []split.RowSplit
	for _, s := range c.Rows {
		r, err := split.ParseRowSplit(s)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	var props []split.ProportionSplit
	for _, s := range c.Proportions {
		p, err := split.ParseProportionSplit(s)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return split.NewSet(rows, props)
}

// SeedPtr returns the seed, or nil when none was given.
func (c *Config) SeedPtr() *uint64 {
	if !c.SeedSet {
		return nil
	}
	seed := c.Seed
	return &seed
}

// InputCompressionType resolves -input-compression and the -d shorthand.
func (c *Config) InputCompressionType() compression.Type {
	t, err := compression.ParseType(c.InputCompression)
	if err != nil {
		return compression.TypeNone
	}
	if t == compression.TypeNone && c.DecompressInput {
		return compression.TypeGzip
	}
	return t
}

// OutputCompressionConfig resolves -output-compression and the -C shorthand.
func (c *Config) OutputCompressionConfig() compression.Config {
	t, err := compression.ParseType(c.OutputCompression)
	if err != nil {
		t = compression.TypeNone
	}
	if t == compression.TypeNone && c.CompressedOutput {
		t = compression.TypeGzip
	}
	return compression.Config{Type: t, Level: compression.Level(c.CompressionLevel)}
}

// TrackerConfig returns the leakage tracker settings.
func (c *Config) TrackerConfig() cardinality.Config {
	cfg := cardinality.DefaultConfig()
	if mode, err := cardinality.ParseMode(c.LeakageMode); err == nil {
		cfg.Mode = mode
	}
	if c.TotalRows > 0 {
		cfg.ExpectedItems = uint(c.TotalRows)
	}
	return cfg
}

// PipelineConfig returns the run settings for the splitter.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Input:            c.Input,
		OutputPrefix:     c.OutputPrefix,
		Header:           !c.NoHeader,
		CSV:              c.CSV,
		InputCompression: c.InputCompressionType(),
		Output:           c.OutputCompressionConfig(),
		ChunkSize:        c.ChunkSize,
		TotalRows:        c.TotalRows,
		Capacity:         c.ChannelCapacity,
	}
}

// ReadsStdin reports whether the input is standard input.
func (c *Config) ReadsStdin() bool { return c.Input == dataio.Stdin }

// PrintUsage prints the help message.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `datasplit - split a line or CSV dataset into randomized subsets

USAGE:
    datasplit [OPTIONS] <input | ->

DESCRIPTION:
    Reads the input once and assigns every data row to one split, either
    until each split holds an exact number of rows or by probability.
    Each split is written to {dir}/{split}/{stem}.{split}[.NNNN].csv.

OPTIONS:
    Configuration:
        -config <path>                   Path to YAML configuration file
                                         CLI flags override config file values

    Splits (exactly one kind):
        -r, -rows <name=N,...>           Row-count splits, filled exactly (repeatable)
        -p, -prop <name=F,...>           Proportion splits, 0 < F < 1, sum <= 1 (repeatable)
                                         Rows beyond the sum are discarded
        -s, -seed <n>                    Random seed for reproducible output

    Output:
        -o, -output-prefix <path>        Output directory and file stem (required for stdin)
        -c, -chunk-size <n>              Maximum data rows per file
        -t, -total-rows <n>              Expected data rows, used to plan chunks and progress
        -C, -compressed-output           Write gzip output (same as -output-compression gzip)
        -output-compression <type>       none, gzip, zstd (default: "none")
        -compression-level <n>           Compression level, 0 for the codec default
        -channel-capacity <n>            Rows buffered per chunk writer (default: 100)

    Input:
        -n, -no-header                   Input has no header row
        -csv                             Parse CSV records; quoted fields may span lines
        -d, -decompress-input            Read gzip input (same as -input-compression gzip)
        -input-compression <type>        none, gzip, zstd, auto (default: "none")

    Statistics:
        -progress-interval <dur>         Progress log interval, 0 disables (default: 5s)
        -detect-leakage                  Count rows whose content appears in another split
        -leakage-mode <mode>             bloom or exact (default: "bloom")
        -metrics-file <path>             Write run metrics in Prometheus text format

    Runtime:
        -memory-limit-ratio <f>          Ratio of container memory for GOMEMLIMIT (default: 0.9)
        -log-level <level>               debug, info, warn, error (default: "info")
        -h, -help                        Show this help message
        -version                         Show version

EXAMPLES:
    datasplit -r train=8000,test=2000 -s 42 data.csv
    datasplit -p train=0.8 -p test=0.1 -c 100000 -t 5000000 -C data.csv.gz
    zcat data.csv.gz | datasplit -p train=0.9,test=0.1 -o out/data -

`)
}

// PrintVersion prints the version.
func PrintVersion() {
	fmt.Printf("datasplit version %s\n", version)
}
