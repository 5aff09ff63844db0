// Package filter provides Stream stages that narrow or clean a merged trace.
// Meta and error records are never filtered, only events are counted or
// dropped.
package filter

import (
	"io"

	"github.com/litmus-rt/unit-trace/trace"
)

// base holds the upstream stream and implements Close.
type base struct {
	up   trace.Stream
	done bool
}

func (b *base) Close() error {
	b.done = true
	return b.up.Close()
}

type skipStage struct {
	base
	n int
}

// Skip drops the first n event records.
func Skip(up trace.Stream, n int) trace.Stream {
	return &skipStage{base: base{up: up}, n: n}
}

func (s *skipStage) Next() (trace.Record, error) {
	for {
		r, err := s.up.Next()
		if err != nil {
			return nil, err
		}
		if r.Kind() == trace.KindEvent && s.n > 0 {
			s.n--
			continue
		}
		return r, nil
	}
}

type maxStage struct {
	base
	n int
}

// Max ends the stream after n event records.
func Max(up trace.Stream, n int) trace.Stream {
	return &maxStage{base: base{up: up}, n: n}
}

func (m *maxStage) Next() (trace.Record, error) {
	if m.done {
		return nil, io.EOF
	}
	r, err := m.up.Next()
	if err != nil {
		return nil, err
	}
	if r.Kind() == trace.KindEvent {
		if m.n == 0 {
			m.done = true
			return nil, io.EOF
		}
		m.n--
	}
	return r, nil
}

type earliestStage struct {
	base
	id      uint64
	reached bool
}

// Earliest drops event records until the first one with sequence id >= id.
// Everything after that passes.
func Earliest(up trace.Stream, id uint64) trace.Stream {
	return &earliestStage{base: base{up: up}, id: id}
}

func (e *earliestStage) Next() (trace.Record, error) {
	for {
		r, err := e.up.Next()
		if err != nil {
			return nil, err
		}
		if !e.reached && r.Kind() == trace.KindEvent {
			if r.SeqID() < e.id {
				continue
			}
			e.reached = true
		}
		return r, nil
	}
}

type latestStage struct {
	base
	id uint64
}

// Latest ends the stream at the first event record with sequence id > id.
func Latest(up trace.Stream, id uint64) trace.Stream {
	return &latestStage{base: base{up: up}, id: id}
}

func (l *latestStage) Next() (trace.Record, error) {
	if l.done {
		return nil, io.EOF
	}
	r, err := l.up.Next()
	if err != nil {
		return nil, err
	}
	if r.Kind() == trace.KindEvent && r.SeqID() > l.id {
		l.done = true
		return nil, io.EOF
	}
	return r, nil
}
