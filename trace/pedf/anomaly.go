package pedf

import (
	"fmt"

	"github.com/litmus-rt/unit-trace/trace"
)

// AnomalyType names a detected conformance violation.
type AnomalyType string

const (
	InversionStart AnomalyType = "inversion_start"
	InversionEnd   AnomalyType = "inversion_end"
	MissDeadline   AnomalyType = "miss_deadline"
	WrongPartition AnomalyType = "wrong_partition"
)

// Anomaly is an error record synthesized by the Checker. Job, OnCPU and
// OffCPU are snapshots taken at detection time.
type Anomaly struct {
	ID        uint64
	Type      AnomalyType
	Partition int
	When      uint64

	Job    Job
	OnCPU  []Job
	OffCPU []Job

	// TriggeringEventID is the id of the first simulated event of the time
	// bucket that was scanned, not the later event whose timestamp opened
	// the next bucket and so fired the scan. For miss_deadline it is the
	// completion event.
	TriggeringEventID uint64

	// inversion_end only: the matching inversion_start.
	InversionStartID                uint64
	InversionStartTriggeringEventID uint64

	// miss_deadline only.
	LateCompletion uint64

	// wrong_partition only: the partition recorded for the task by params.
	ExpectedPartition int
}

func (a *Anomaly) Kind() trace.Kind { return trace.KindError }
func (a *Anomaly) TypeName() string { return string(a.Type) }
func (a *Anomaly) SeqID() uint64    { return a.ID }
func (a *Anomaly) Time() uint64     { return a.When }

// Duration is the inversion length for inversion_end anomalies, 0 otherwise.
func (a *Anomaly) Duration() uint64 {
	if a.Type != InversionEnd || a.Job.InversionEnd < a.Job.InversionStart {
		return 0
	}
	return a.Job.InversionEnd - a.Job.InversionStart
}

func (a *Anomaly) String() string {
	return fmt.Sprintf("#%d %s %s t=%d", a.ID, a.Type, a.Job, a.When)
}

// ProtocolError reports a record that contradicts the simulated scheduler
// state, such as switching to a job that was never released. The trace is
// inconsistent and no further analysis is sound.
type ProtocolError struct {
	ID       uint64
	TypeName string
	Reason   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("event %d (%s): %s", e.ID, e.TypeName, e.Reason)
}
