package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// MergeConfig controls how trace files are read and merged.
type MergeConfig struct {
	// Window is the reorder tolerance: each file keeps up to Window+1
	// decoded records buffered and sorted by timestamp.
	Window int
	// Parallel decodes each file on its own goroutine (see ParallelSource).
	Parallel bool
}

// Merger produces one time-ordered stream from several per-CPU sources.
//
// The stream opens with a trace_files meta record and a num_cpus meta record
// (one CPU per source). Events are then emitted earliest-head first, ties
// going to the lowest source index. Sequence ids are assigned in emission
// order starting at 1. An event whose timestamp is earlier than the previous
// event's is preceded by an out_of_order_warning meta record; it is still
// emitted.
type Merger struct {
	all     []EventSource // every source, for Close
	live    []*mergeInput
	window  int
	files   []string
	bytes   int64
	numCPUs int

	pending  []Record
	started  bool
	nextID   uint64
	lastTime uint64
	emitted  bool
	closed   bool
	err      error // sticky source error
}

type mergeInput struct {
	src       EventSource
	buf       []*Event // sorted by When, stable
	exhausted bool
}

// NewMerger merges sources with the given reorder window. Negative windows
// are treated as 0.
func NewMerger(sources []EventSource, window int) *Merger {
	if window < 0 {
		window = 0
	}
	m := &Merger{
		all:     sources,
		window:  window,
		numCPUs: len(sources),
	}
	for _, s := range sources {
		m.live = append(m.live, &mergeInput{src: s})
	}
	return m
}

// Merge opens every path and returns a Merger over them. On error any file
// already opened is closed.
func Merge(ctx context.Context, paths []string, cfg MergeConfig) (*Merger, error) {
	var sources []EventSource
	var total int64
	for _, p := range paths {
		d, err := OpenFile(p)
		if err != nil {
			for _, s := range sources {
				_ = s.Close()
			}
			return nil, err
		}
		total += d.Size()
		var src EventSource = d
		if cfg.Parallel {
			src = NewParallelSource(ctx, d, cfg.Window+1)
		}
		sources = append(sources, src)
	}
	m := NewMerger(sources, cfg.Window)
	m.files = append([]string(nil), paths...)
	m.bytes = total
	return m, nil
}

// Next returns the next record, or io.EOF once every source is drained. A
// source error is returned by this call and every later one.
func (m *Merger) Next() (Record, error) {
	if m.closed {
		return nil, io.EOF
	}
	if !m.started {
		m.started = true
		if err := m.fill(); err != nil {
			m.err = err
			return nil, err
		}
		m.pending = append(m.pending,
			&Meta{Name: MetaTraceFiles, Files: m.files, TotalBytes: m.bytes},
			&Meta{Name: MetaNumCPUs, NumCPUs: m.numCPUs},
		)
	}
	if len(m.pending) > 0 {
		r := m.pending[0]
		m.pending = m.pending[1:]
		return r, nil
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.live) == 0 {
		return nil, io.EOF
	}

	// Earliest head; strict comparison keeps the first input on ties.
	best := 0
	for i := 1; i < len(m.live); i++ {
		if m.live[i].buf[0].When < m.live[best].buf[0].When {
			best = i
		}
	}
	in := m.live[best]
	ev := in.buf[0]
	in.buf[0] = nil
	in.buf = in.buf[1:]
	// A failed refill still hands out the popped event; the error is
	// returned from the following call on.
	if err := m.pull(in); err != nil {
		m.err = err
	}
	if len(in.buf) == 0 && in.exhausted {
		m.live = append(m.live[:best], m.live[best+1:]...)
	}

	m.nextID++
	ev.ID = m.nextID
	late := m.emitted && ev.When < m.lastTime
	m.lastTime = ev.When
	m.emitted = true
	if late {
		m.pending = append(m.pending, ev)
		return &Meta{Name: MetaOutOfOrder, RecordID: ev.ID}, nil
	}
	return ev, nil
}

// fill loads up to window+1 records from each source and drops sources
// that produced nothing.
func (m *Merger) fill() error {
	live := m.live[:0]
	for _, in := range m.live {
		for i := 0; i <= m.window && !in.exhausted; i++ {
			if err := m.pull(in); err != nil {
				return err
			}
		}
		if len(in.buf) > 0 {
			live = append(live, in)
		}
	}
	m.live = live
	return nil
}

// pull reads one record from in.src into its buffer, keeping the buffer
// sorted. Records with equal timestamps keep arrival order.
func (m *Merger) pull(in *mergeInput) error {
	if in.exhausted {
		return nil
	}
	ev, err := in.src.Next()
	if errors.Is(err, io.EOF) {
		in.exhausted = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("merging trace sources: %w", err)
	}
	i := sort.Search(len(in.buf), func(i int) bool { return in.buf[i].When > ev.When })
	in.buf = append(in.buf, nil)
	copy(in.buf[i+1:], in.buf[i:])
	in.buf[i] = ev
	return nil
}

// Close closes every source. Further calls to Next return io.EOF.
func (m *Merger) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.live = nil
	m.pending = nil
	var errs []error
	for _, s := range m.all {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
