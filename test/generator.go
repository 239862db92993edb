// Package test holds binary-level functional tests and the dataset
// generator they use.
package test

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Dataset describes a generated CSV file.
type Dataset struct {
	Rows int
	// Header writes an "id,label,text" header line first.
	Header bool
	// Multiline puts a quoted field with an embedded newline on every
	// tenth row.
	Multiline bool
	// Duplicates makes every n-th row a copy of the row before it; 0
	// disables.
	Duplicates int
	Seed       uint64
}

// Generate renders the dataset as CSV text.
func (d Dataset) Generate() []byte {
	rng := rand.New(rand.NewPCG(d.Seed, d.Seed^0x9e3779b97f4a7c15))
	labels := []string{"cat", "dog", "bird", "fish"}

	var b bytes.Buffer
	if d.Header {
		b.WriteString("id,label,text\n")
	}
	var prev string
	for i := 1; i <= d.Rows; i++ {
		if d.Duplicates > 0 && i%d.Duplicates == 0 && prev != "" {
			b.WriteString(prev)
			continue
		}
		text := fmt.Sprintf("sample %d", rng.IntN(1_000_000))
		if d.Multiline && i%10 == 0 {
			text = fmt.Sprintf("\"line one\nline two %d\"", i)
		}
		prev = fmt.Sprintf("%d,%s,%s\n", i, labels[i%len(labels)], text)
		b.WriteString(prev)
	}
	return b.Bytes()
}

// WriteFile writes the dataset to path, compressed by the path's extension
// (.gz or .zst).
func (d Dataset) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.WriteCloser
	switch {
	case strings.HasSuffix(path, ".gz"):
		w = gzip.NewWriter(f)
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return err
		}
		w = zw
	default:
		_, err := f.Write(d.Generate())
		return err
	}
	if _, err := w.Write(d.Generate()); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}
