// Package compression provides streaming compression for split sources and sinks.
package compression

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Type represents a compression algorithm.
type Type string

const (
	// TypeNone means no compression.
	TypeNone Type = "none"
	// TypeGzip uses gzip compression.
	TypeGzip Type = "gzip"
	// TypeZstd uses zstd compression.
	TypeZstd Type = "zstd"
	// TypeAuto detects gzip or zstd from the stream's magic bytes. Only valid
	// for readers.
	TypeAuto Type = "auto"
)

// Level represents compression level settings.
type Level int

// LevelDefault uses the default compression level for the algorithm.
const LevelDefault Level = 0

// gzip levels
const (
	GzipStateless       Level = -3
	GzipBestSpeed       Level = 1
	GzipBestCompression Level = 9
)

// zstd levels
const (
	ZstdSpeedFastest           Level = 1
	ZstdSpeedDefault           Level = 3
	ZstdSpeedBetterCompression Level = 6
	ZstdSpeedBestCompression   Level = 11
)

// Config holds compression configuration.
type Config struct {
	// Type is the compression algorithm to use.
	Type Type
	// Level is the compression level (algorithm-specific).
	Level Level
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ParseType parses a compression type string.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TypeNone, nil
	case "gzip", "gz":
		return TypeGzip, nil
	case "zstd", "zst":
		return TypeZstd, nil
	case "auto":
		return TypeAuto, nil
	default:
		return TypeNone, fmt.Errorf("unsupported compression type: %s", s)
	}
}

// Extension returns the file name suffix for the compression type,
// including the leading dot, or "" for uncompressed output.
func (t Type) Extension() string {
	switch t {
	case TypeGzip:
		return ".gz"
	case TypeZstd:
		return ".zst"
	default:
		return ""
	}
}

// TrimExtension removes a known compression suffix from name.
func TrimExtension(name string) string {
	for _, ext := range []string{".gz", ".gzip", ".zst", ".zstd"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// Detect reports the compression type of a stream from its leading bytes.
func Detect(head []byte) Type {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return TypeGzip
	case bytes.HasPrefix(head, zstdMagic):
		return TypeZstd
	default:
		return TypeNone
	}
}

// Validate reports whether Level is usable with Type. The level of an
// uncompressed stream is ignored.
func (c Config) Validate() error {
	switch c.Type {
	case TypeNone, "":
		return nil
	case TypeGzip:
		if c.Level < GzipStateless || c.Level > GzipBestCompression {
			return fmt.Errorf("gzip level must be between %d and %d, got %d", GzipStateless, GzipBestCompression, c.Level)
		}
		return nil
	case TypeZstd:
		switch c.Level {
		case LevelDefault, ZstdSpeedFastest, ZstdSpeedDefault, ZstdSpeedBetterCompression, ZstdSpeedBestCompression:
			return nil
		}
		return fmt.Errorf("zstd level must be one of 0, 1, 3, 6, 11, got %d", c.Level)
	default:
		return fmt.Errorf("unsupported compression type: %s", c.Type)
	}
}

// NewWriter wraps w with an encoder for cfg.Type. Closing the returned
// writer flushes the encoder but does not close w.
func NewWriter(w io.Writer, cfg Config) (io.WriteCloser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case TypeNone, "":
		writersOpened.WithLabelValues(string(TypeNone)).Inc()
		return nopWriteCloser{w}, nil
	case TypeGzip:
		level := gzip.DefaultCompression
		if cfg.Level != LevelDefault {
			level = int(cfg.Level)
		}
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		writersOpened.WithLabelValues(string(TypeGzip)).Inc()
		return gw, nil
	case TypeZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel(cfg.Level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		writersOpened.WithLabelValues(string(TypeZstd)).Inc()
		return encoder, nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", cfg.Type)
	}
}

func zstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case ZstdSpeedFastest:
		return zstd.SpeedFastest
	case ZstdSpeedBetterCompression:
		return zstd.SpeedBetterCompression
	case ZstdSpeedBestCompression:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// NewReader wraps r with a decoder for t. TypeAuto peeks at the first bytes
// of r to choose. Closing the returned reader releases the decoder but does
// not close r.
func NewReader(r io.Reader, t Type) (io.ReadCloser, error) {
	if t == TypeAuto {
		br := bufio.NewReader(r)
		// A short or empty stream is treated as uncompressed.
		head, _ := br.Peek(len(zstdMagic))
		t = Detect(head)
		r = br
	}
	switch t {
	case TypeNone, "":
		readersOpened.WithLabelValues(string(TypeNone)).Inc()
		return io.NopCloser(r), nil
	case TypeGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		readersOpened.WithLabelValues(string(TypeGzip)).Inc()
		return gr, nil
	case TypeZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		readersOpened.WithLabelValues(string(TypeZstd)).Inc()
		return zstdReadCloser{decoder}, nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// zstd.Decoder.Close has no error result.
type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
