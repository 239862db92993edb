package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/szibis/datasplit/internal/compression"
	"github.com/szibis/datasplit/internal/dataio"
	"github.com/szibis/datasplit/internal/logging"
)

// ChunkWriter drains one chunk channel into a file. It owns its file
// exclusively.
type ChunkWriter struct {
	split       string
	id          int
	numbered    bool
	stride      int
	chunkSize   uint64
	naming      Naming
	compression compression.Config
	in          <-chan message
}

// Path returns the path of the writer's first file.
func (w *ChunkWriter) Path() string {
	return w.naming.Path(w.split, w.id, w.numbered)
}

// Run writes rows until the channel is closed and drained, or ctx is
// cancelled. The open file is always closed; a close error is returned when
// nothing failed earlier.
//
// A writer rotates only when its split was planned without knowing the
// input size: once it holds chunkSize rows it closes the file and moves its
// chunk id forward by stride.
func (w *ChunkWriter) Run(ctx context.Context) (err error) {
	id := w.id
	sink, err := w.open(id)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			writerErrors.WithLabelValues(w.split).Inc()
		}
	}()

	var header string
	hasHeader := false
	var rows uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var msg message
		var ok bool
		select {
		case msg, ok = <-w.in:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !ok {
			logging.Debug("chunk closed", logging.F("split", w.split, "path", sink.Path(), "rows", rows))
			return nil
		}

		if msg.header {
			header, hasHeader = msg.line, true
			if err := sink.WriteLine(header); err != nil {
				return err
			}
			continue
		}

		if w.numbered && w.chunkSize > 0 && rows >= w.chunkSize {
			prev := sink
			sink = closedSink{}
			if err := prev.Close(); err != nil {
				return err
			}
			id += w.stride
			next, err := w.open(id)
			if err != nil {
				return err
			}
			sink = next
			chunkRotations.WithLabelValues(w.split).Inc()
			if hasHeader {
				if err := sink.WriteLine(header); err != nil {
					return err
				}
			}
			rows = 0
		}

		if err := sink.WriteLine(msg.line); err != nil {
			return err
		}
		rows++
		rowsWritten.WithLabelValues(w.split).Inc()
	}
}

// lineSink is the part of dataio.Sink a writer needs.
type lineSink interface {
	WriteLine(string) error
	Close() error
	Path() string
}

func (w *ChunkWriter) open(id int) (lineSink, error) {
	path := w.naming.Path(w.split, id, w.numbered)
	sink, err := dataio.OpenSink(path, w.compression)
	if err != nil {
		return nil, fmt.Errorf("split %s: opening chunk: %w", w.split, err)
	}
	chunkFilesOpened.WithLabelValues(w.split).Inc()
	logging.Debug("chunk opened", logging.F("split", w.split, "chunk", id, "path", path))
	return sink, nil
}

type closedSink struct{}

func (closedSink) WriteLine(string) error { return nil }
func (closedSink) Close() error           { return nil }
func (closedSink) Path() string           { return "" }
