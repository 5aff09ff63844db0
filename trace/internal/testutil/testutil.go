// Package testutil provides shared test infrastructure for the trace packages:
// event constructors, binary trace file writers and an in-memory Stream.
package testutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/litmus-rt/unit-trace/trace"
)

// Ev builds an event with the given header fields and payload.
func Ev(cpu int8, pid int16, job int32, when uint64, p trace.Payload) *trace.Event {
	return &trace.Event{
		Header:  trace.Header{Type: p.Type(), CPU: cpu, PID: pid, Job: job},
		When:    when,
		Payload: p,
	}
}

func Release(cpu int8, pid int16, job int32, when, deadline uint64) *trace.Event {
	return Ev(cpu, pid, job, when, &trace.Release{Deadline: deadline})
}

func SwitchTo(cpu int8, pid int16, job int32, when uint64) *trace.Event {
	return Ev(cpu, pid, job, when, &trace.SwitchTo{})
}

func SwitchAway(cpu int8, pid int16, job int32, when uint64) *trace.Event {
	return Ev(cpu, pid, job, when, &trace.SwitchAway{})
}

func Completion(cpu int8, pid int16, job int32, when uint64) *trace.Event {
	return Ev(cpu, pid, job, when, &trace.Completion{})
}

func Block(cpu int8, pid int16, job int32, when uint64) *trace.Event {
	return Ev(cpu, pid, job, when, &trace.Block{})
}

func Resume(cpu int8, pid int16, job int32, when uint64) *trace.Event {
	return Ev(cpu, pid, job, when, &trace.Resume{})
}

func Params(cpu int8, pid int16, partition uint8) *trace.Event {
	return Ev(cpu, pid, 0, 0, &trace.Params{Partition: partition})
}

// WriteTrace encodes events into dir/name and returns the file path.
func WriteTrace(t *testing.T, dir, name string, events ...*trace.Event) string {
	t.Helper()
	var data []byte
	for _, e := range events {
		data = append(data, trace.Encode(e)...)
	}
	return WriteRaw(t, dir, name, data)
}

// WriteRaw writes raw bytes into dir/name and returns the file path.
func WriteRaw(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing trace fixture: %v", err)
	}
	return path
}

// Sequence assigns ids 1..n to the events and prepends the meta records a
// Merger over numCPUs files would produce.
func Sequence(numCPUs int, events ...*trace.Event) []trace.Record {
	recs := []trace.Record{
		&trace.Meta{Name: trace.MetaTraceFiles},
		&trace.Meta{Name: trace.MetaNumCPUs, NumCPUs: numCPUs},
	}
	for i, e := range events {
		e.ID = uint64(i + 1)
		recs = append(recs, e)
	}
	return recs
}

// SliceStream is an in-memory Stream over a fixed list of records.
type SliceStream struct {
	Records []trace.Record
	Closed  bool
	pos     int
}

func NewSliceStream(recs ...trace.Record) *SliceStream {
	return &SliceStream{Records: recs}
}

func (s *SliceStream) Next() (trace.Record, error) {
	if s.Closed || s.pos >= len(s.Records) {
		return nil, io.EOF
	}
	r := s.Records[s.pos]
	s.pos++
	return r, nil
}

func (s *SliceStream) Close() error {
	s.Closed = true
	return nil
}

// Collect drains s and returns every record up to io.EOF or the first error.
func Collect(s trace.Stream) ([]trace.Record, error) {
	var out []trace.Record
	for {
		r, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
}

// SliceSource is an in-memory EventSource.
type SliceSource struct {
	Events []*trace.Event
	Closed bool
	pos    int
}

func (s *SliceSource) Next() (*trace.Event, error) {
	if s.pos >= len(s.Events) {
		return nil, io.EOF
	}
	e := s.Events[s.pos]
	s.pos++
	return e, nil
}

func (s *SliceSource) Close() error {
	s.Closed = true
	return nil
}
