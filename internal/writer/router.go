package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/szibis/datasplit/internal/compression"
)

// ErrChannelClosed is returned when a row is sent to a router that has
// finished or has no chunks.
var ErrChannelClosed = errors.New("chunk channel closed")

// DefaultCapacity is the per-chunk channel capacity.
const DefaultCapacity = 100

// Options configure the routers and writers of a run.
type Options struct {
	// ChunkSize caps the data rows per file; 0 disables chunking.
	ChunkSize uint64
	// TotalRows is the expected input size used to plan proportion
	// splits; 0 means unknown.
	TotalRows uint64
	// Capacity is the bounded channel size per chunk.
	Capacity int
	Naming   Naming
	// Compression of the output files.
	Compression compression.Config
}

// message is a row or the header travelling to a ChunkWriter.
type message struct {
	line   string
	header bool
}

// Router distributes the rows of one split across its chunk channels. It is
// used by the dispatch goroutine only.
type Router struct {
	split  string
	plan   ChunkPlan
	chans  []chan message
	next   int
	closed bool
}

// NewRouter plans the chunks of t and returns its router with one writer
// per chunk. The writers must be started before rows are dispatched.
func NewRouter(t Target, opts Options) (*Router, []*ChunkWriter) {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	plan := Plan(t, opts.ChunkSize, opts.TotalRows)
	r := &Router{split: t.Name, plan: plan}
	writers := make([]*ChunkWriter, 0, plan.Chunks)
	for i := 0; i < plan.Chunks; i++ {
		ch := make(chan message, capacity)
		r.chans = append(r.chans, ch)
		writers = append(writers, &ChunkWriter{
			split:       t.Name,
			id:          plan.FirstID + i,
			numbered:    plan.Numbered,
			stride:      plan.Stride,
			chunkSize:   opts.ChunkSize,
			naming:      opts.Naming,
			compression: opts.Compression,
			in:          ch,
		})
	}
	return r, writers
}

// Plan returns the chunk plan of the split.
func (r *Router) Plan() ChunkPlan { return r.plan }

// Dispatch sends row to the next chunk in round-robin order, blocking while
// that chunk's channel is full.
func (r *Router) Dispatch(ctx context.Context, row string) error {
	if r.closed || len(r.chans) == 0 {
		return fmt.Errorf("%w: split %s", ErrChannelClosed, r.split)
	}
	if r.next >= len(r.chans) {
		r.next = 0
	}
	if err := r.send(ctx, r.chans[r.next], message{line: row}); err != nil {
		return err
	}
	r.next++
	rowsDispatched.WithLabelValues(r.split).Inc()
	return nil
}

// Broadcast sends the header to every chunk so each file starts with it.
func (r *Router) Broadcast(ctx context.Context, header string) error {
	if r.closed {
		return fmt.Errorf("%w: split %s", ErrChannelClosed, r.split)
	}
	for _, ch := range r.chans {
		if err := r.send(ctx, ch, message{line: header, header: true}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) send(ctx context.Context, ch chan<- message, msg message) error {
	select {
	case ch <- msg:
		return nil
	default:
	}
	dispatchBlocked.WithLabelValues(r.split).Inc()
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish closes every chunk channel. Writers exit once they drain. Calling
// Finish more than once is a no-op.
func (r *Router) Finish() {
	if r.closed {
		return
	}
	r.closed = true
	for _, ch := range r.chans {
		close(ch)
	}
}
