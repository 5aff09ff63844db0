package trace

import "fmt"

// Kind distinguishes decoded events from synthesized records.
type Kind string

const (
	// KindEvent marks a record decoded from a trace file.
	KindEvent Kind = "event"
	// KindMeta marks a record synthesized by the reader (file list, CPU count, ordering warnings).
	KindMeta Kind = "meta"
	// KindError marks an anomaly synthesized by a conformance checker.
	KindError Kind = "error"
)

// Record is one element of a trace stream. Implementations are *Event, *Meta
// and the checker's anomaly type.
type Record interface {
	Kind() Kind
	TypeName() string
	// SeqID is the sequence id for events, the anomaly id for errors, and the
	// referenced record id for out-of-order warnings.
	SeqID() uint64
	// Time is the record timestamp, 0 when the record carries none.
	Time() uint64
}

// Stream is a lazy, finite, non-restartable sequence of records.
// Next returns io.EOF after the last record. Close must be called on every
// path, including early exit, and releases upstream resources.
type Stream interface {
	Next() (Record, error)
	Close() error
}

// EventSource yields decoded events from a single trace file in file order.
type EventSource interface {
	Next() (*Event, error)
	Close() error
}

// Header is the common prefix of every binary trace record.
type Header struct {
	Type Type
	CPU  int8
	PID  int16
	Job  int32
}

// Event is a record decoded from a trace file.
type Event struct {
	Header
	ID      uint64 // sequence id, assigned by the merger
	When    uint64 // 0 for types without a timestamp
	Payload Payload
}

func (e *Event) Kind() Kind       { return KindEvent }
func (e *Event) TypeName() string { return e.Type.String() }
func (e *Event) SeqID() uint64    { return e.ID }
func (e *Event) Time() uint64     { return e.When }

func (e *Event) String() string {
	return fmt.Sprintf("#%d %s %d.%d cpu=%d t=%d", e.ID, e.Type, e.PID, e.Job, e.CPU, e.When)
}

// Meta record names.
const (
	MetaTraceFiles = "trace_files"
	MetaNumCPUs    = "num_cpus"
	MetaOutOfOrder = "out_of_order_warning"
)

// Meta is a record synthesized by the merger.
type Meta struct {
	Name string

	// trace_files
	Files      []string
	TotalBytes int64

	// num_cpus
	NumCPUs int

	// out_of_order_warning: id of the record that arrived late
	RecordID uint64
}

func (m *Meta) Kind() Kind       { return KindMeta }
func (m *Meta) TypeName() string { return m.Name }
func (m *Meta) SeqID() uint64    { return m.RecordID }
func (m *Meta) Time() uint64     { return 0 }
