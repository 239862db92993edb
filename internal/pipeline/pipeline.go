// Package pipeline runs a split: it reads the input once, assigns every row
// to a split and feeds the split's chunk writers.
//
// One goroutine reads and dispatches; each chunk file has its own writer
// goroutine. All of them run in one errgroup, so the first failure cancels
// the rest and every writer still closes its file before Run returns.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/szibis/datasplit/internal/compression"
	"github.com/szibis/datasplit/internal/dataio"
	"github.com/szibis/datasplit/internal/logging"
	"github.com/szibis/datasplit/internal/split"
	"github.com/szibis/datasplit/internal/writer"
)

// ErrEmptyInput is returned when the input holds no data rows.
var ErrEmptyInput = errors.New("input has no data rows")

// Config holds the I/O settings of a run.
type Config struct {
	// Input is a file path, or "-" for stdin.
	Input string
	// OutputPrefix replaces Input as the base for output paths. Required
	// when reading stdin.
	OutputPrefix string
	// Header treats the first row as a header and copies it to every file.
	Header bool
	// CSV reads CSV records instead of lines.
	CSV              bool
	InputCompression compression.Type
	Output           compression.Config
	// ChunkSize caps data rows per output file; 0 disables chunking.
	ChunkSize uint64
	// TotalRows is the expected number of data rows, 0 when unknown.
	TotalRows uint64
	// Capacity is the per-chunk channel capacity.
	Capacity int
}

// Progress receives dispatch counts.
type Progress interface {
	Inc(split string, n uint64)
	Finish(split string)
}

// Observer sees the content of every dispatched row.
type Observer interface {
	Observe(split, row string)
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithProgress reports dispatch counts to p.
func WithProgress(p Progress) Option {
	return func(s *Splitter) { s.progress = p }
}

// WithObserver passes every dispatched row to o.
func WithObserver(o Observer) Option {
	return func(s *Splitter) { s.observer = o }
}

// Splitter runs one split of one input. It is not reusable: the split set
// is consumed by Run.
type Splitter struct {
	cfg      Config
	set      *split.Set
	rng      *rand.Rand
	progress Progress
	observer Observer

	rowsRead    uint64
	rowsDropped uint64
}

// New creates a Splitter.
func New(cfg Config, set *split.Set, rng *rand.Rand, opts ...Option) *Splitter {
	s := &Splitter{cfg: cfg, set: set, rng: rng}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Targets returns the writer targets of set in split order.
func Targets(set *split.Set) []writer.Target {
	var out []writer.Target
	switch set.Mode() {
	case split.ModeRows:
		for _, r := range set.Rows() {
			out = append(out, writer.Target{Name: r.Name, ByRows: true, Rows: uint64(r.Remaining())})
		}
	case split.ModeProportions:
		for _, p := range set.Proportions() {
			out = append(out, writer.Target{Name: p.Name, Proportion: p.Proportion})
		}
	}
	return out
}

// Run splits the input. No output file is created when the input has no
// data rows. On failure, files already written stay on disk.
func (s *Splitter) Run(ctx context.Context) error {
	start := time.Now()
	src, err := dataio.OpenSource(s.cfg.Input, dataio.Options{
		Compression: s.cfg.InputCompression,
		CSV:         s.cfg.CSV,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	if s.set.Exhausted() {
		// Every row target is already met: nothing is read and no file is created.
		runsTotal.WithLabelValues("ok").Inc()
		s.finish()
		logging.Info("all row splits full, input not read", logging.F("input", src.Name()))
		return nil
	}

	var header string
	if s.cfg.Header {
		if header, err = src.Next(); err != nil {
			return emptyOr(err)
		}
	}
	first, err := s.next(src)
	if err != nil {
		return emptyOr(err)
	}
	Record(StageRead, time.Since(start))

	base := s.cfg.OutputPrefix
	if base == "" {
		base = s.cfg.Input
	}
	opts := writer.Options{
		ChunkSize:   s.cfg.ChunkSize,
		TotalRows:   s.cfg.TotalRows,
		Capacity:    s.cfg.Capacity,
		Naming:      writer.NamingFor(base, s.cfg.Output.Type),
		Compression: s.cfg.Output,
	}

	routers := make(map[string]*writer.Router)
	order := make([]*writer.Router, 0, s.set.Len())
	var writers []*writer.ChunkWriter
	for _, t := range Targets(s.set) {
		r, ws := writer.NewRouter(t, opts)
		routers[t.Name] = r
		order = append(order, r)
		writers = append(writers, ws...)
		if logging.Enabled(logging.LevelDebug) {
			plan := r.Plan()
			logging.Debug("split planned", logging.F("split", t.Name, "chunks", plan.Chunks, "numbered", plan.Numbered, "stride", plan.Stride))
		}
	}

	logging.Info("split started", logging.F(
		"input", src.Name(),
		"mode", s.set.Mode().String(),
		"splits", len(order),
		"writers", len(writers),
		"header", s.cfg.Header,
	))

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range writers {
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error {
		defer func() {
			for _, r := range order {
				r.Finish()
			}
		}()
		return s.dispatch(gctx, src, routers, order, header, first)
	})

	wait := time.Now()
	err = g.Wait()
	Record(StageDrain, time.Since(wait))
	s.finish()
	if err != nil {
		runsTotal.WithLabelValues(string(Classify(err))).Inc()
		return err
	}
	runsTotal.WithLabelValues("ok").Inc()

	logging.Info("split finished", logging.F(
		"rows_read", s.rowsRead,
		"rows_dropped", s.rowsDropped,
		"duration_seconds", time.Since(start).Seconds(),
	))
	return nil
}

// finish marks every split done on the progress sink, whether or not the
// run succeeded.
func (s *Splitter) finish() {
	if s.progress == nil {
		return
	}
	for _, name := range s.set.Names() {
		s.progress.Finish(name)
	}
}

// dispatch runs in the errgroup; it owns src, the rng and the split set.
func (s *Splitter) dispatch(ctx context.Context, src *dataio.Source, routers map[string]*writer.Router, order []*writer.Router, header, row string) error {
	if s.cfg.Header {
		for _, r := range order {
			if err := r.Broadcast(ctx, header); err != nil {
				return err
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sel := s.set.Select(s.rng)
		switch sel.Kind {
		case split.Exhausted:
			logging.Info("all row splits full, input not read further", logging.F("rows_read", s.rowsRead))
			return nil
		case split.NoMatch:
			s.rowsDropped++
			rowsDropped.Inc()
		case split.Selected:
			r, ok := routers[sel.Name]
			if !ok {
				return fmt.Errorf("%w: no router for split %s", writer.ErrChannelClosed, sel.Name)
			}
			t := time.Now()
			if err := r.Dispatch(ctx, row); err != nil {
				return err
			}
			Record(StageDispatch, time.Since(t))
			if s.progress != nil {
				s.progress.Inc(sel.Name, 1)
			}
			if s.observer != nil {
				s.observer.Observe(sel.Name, row)
			}
		}

		if s.set.Exhausted() {
			logging.Info("all row splits full, input not read further", logging.F("rows_read", s.rowsRead))
			return nil
		}

		var err error
		t := time.Now()
		row, err = s.next(src)
		Record(StageRead, time.Since(t))
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *Splitter) next(src *dataio.Source) (string, error) {
	row, err := src.Next()
	if err == nil {
		s.rowsRead++
		rowsRead.Inc()
	}
	return row, err
}

func emptyOr(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrEmptyInput
	}
	return err
}
