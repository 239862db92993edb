// Package dataio opens the line-oriented inputs and the output files of a
// split run.
package dataio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/szibis/datasplit/internal/compression"
)

var (
	// ErrDecode is returned for input that is not valid UTF-8 text or not
	// valid CSV.
	ErrDecode = errors.New("malformed input")
	// ErrIO wraps failures to open, read, write or close a file.
	ErrIO = errors.New("i/o failure")
)

// Stdin is the path that selects standard input.
const Stdin = "-"

const readBufferSize = 1 << 20

// Options control how a source is decoded.
type Options struct {
	// Compression of the input stream. TypeAuto sniffs the magic bytes.
	Compression compression.Type
	// CSV parses records instead of lines, so quoted fields may span lines.
	CSV bool
}

// Source yields the rows of one input, lazily and once.
type Source struct {
	name  string
	file  io.Closer
	dec   io.ReadCloser
	br    *bufio.Reader
	csv   *csv.Reader
	raw   *recordTee
	count int64
}

// recordTee keeps the bytes the CSV reader has pulled but not yet returned
// as part of a record. base is the stream offset of buf[0].
type recordTee struct {
	r    io.Reader
	buf  []byte
	base int64
}

func (t *recordTee) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.buf = append(t.buf, p[:n]...)
	return n, err
}

// take returns the input text in [start, end) and drops everything before end.
func (t *recordTee) take(start, end int64) string {
	text := string(t.buf[start-t.base : end-t.base])
	n := copy(t.buf, t.buf[end-t.base:])
	t.buf = t.buf[:n]
	t.base = end
	return text
}

// OpenSource opens path (or stdin for "-") for reading.
func OpenSource(path string, opts Options) (*Source, error) {
	s := &Source{name: path}
	var r io.Reader
	if path == Stdin {
		s.name = "stdin"
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
		s.file = f
		r = f
	}
	dec, err := compression.NewReader(r, opts.Compression)
	if err != nil {
		if s.file != nil {
			s.file.Close()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, s.name, err)
	}
	s.dec = dec
	s.br = bufio.NewReaderSize(dec, readBufferSize)
	if opts.CSV {
		s.raw = &recordTee{r: s.br}
		s.csv = csv.NewReader(s.raw)
		s.csv.FieldsPerRecord = -1
		s.csv.ReuseRecord = true
	}
	return s, nil
}

// Name returns the display name of the source.
func (s *Source) Name() string { return s.name }

// Next returns the next row without its line terminator, or io.EOF.
func (s *Source) Next() (string, error) {
	var row string
	var err error
	if s.csv != nil {
		row, err = s.nextRecord()
	} else {
		row, err = s.nextLine()
	}
	if err == nil {
		s.count++
	}
	return row, err
}

func (s *Source) nextLine() (string, error) {
	line, err := s.br.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			return "", fmt.Errorf("%w: reading %s: %w", ErrIO, s.name, err)
		}
		if line == "" {
			return "", io.EOF
		}
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if !utf8.ValidString(line) {
		return "", fmt.Errorf("%w: %s: line %d is not valid UTF-8", ErrDecode, s.name, s.count+1)
	}
	return line, nil
}

// nextRecord parses one CSV record and returns its input text unchanged,
// minus the record terminator. Blank lines skipped by the parser are dropped.
func (s *Source) nextRecord() (string, error) {
	start := s.csv.InputOffset()
	_, err := s.csv.Read()
	if err != nil {
		if err == io.EOF {
			return "", io.EOF
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return "", fmt.Errorf("%w: %s: %w", ErrDecode, s.name, err)
		}
		return "", fmt.Errorf("%w: reading %s: %w", ErrIO, s.name, err)
	}
	rec := s.raw.take(start, s.csv.InputOffset())
	rec = strings.TrimLeft(rec, "\r\n")
	rec = strings.TrimSuffix(rec, "\n")
	rec = strings.TrimSuffix(rec, "\r")
	if !utf8.ValidString(rec) {
		return "", fmt.Errorf("%w: %s: record %d is not valid UTF-8", ErrDecode, s.name, s.count+1)
	}
	return rec, nil
}

// Close releases the decoder and the underlying file. Stdin is left open.
func (s *Source) Close() error {
	err := s.dec.Close()
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
