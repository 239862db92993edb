package dataio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/szibis/datasplit/internal/compression"
)

const writeBufferSize = 256 << 10

// Sink is a buffered, optionally compressed output file.
type Sink struct {
	path string
	file *os.File
	buf  *bufio.Writer
	enc  io.WriteCloser
}

// OpenSink creates (or truncates) path, creating parent directories first.
// An unusable compression config fails before anything is created.
func OpenSink(path string, cfg compression.Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	buf := bufio.NewWriterSize(f, writeBufferSize)
	enc, err := compression.NewWriter(buf, cfg)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	return &Sink{path: path, file: f, buf: buf, enc: enc}, nil
}

// Path returns the file path of the sink.
func (s *Sink) Path() string { return s.path }

// WriteLine writes line followed by a newline.
func (s *Sink) WriteLine(line string) error {
	if _, err := io.WriteString(s.enc, line); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIO, s.path, err)
	}
	if _, err := s.enc.Write(newline); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIO, s.path, err)
	}
	return nil
}

var newline = []byte{'\n'}

// Close flushes the encoder and the buffer, then closes the file. The first
// error wins; the file is closed regardless.
func (s *Sink) Close() error {
	err := s.enc.Close()
	if ferr := s.buf.Flush(); err == nil {
		err = ferr
	}
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrIO, s.path, err)
	}
	return nil
}
