package pedf

import (
	"fmt"
	"strings"
)

// Job is one released instance of a task, tracked while it is alive.
// Two Jobs are the same job iff PID and Number match.
type Job struct {
	PID       int16
	Number    int32
	Deadline  uint64
	Partition int

	Complete bool
	Blocked  bool

	// Inverted is set while an inversion is open for this job.
	Inverted       bool
	InversionStart uint64
	InversionEnd   uint64

	// Cross references to the anomaly that opened the current inversion.
	InversionStartID        uint64
	InversionStartTriggerID uint64
}

func (j *Job) is(pid int16, number int32) bool {
	return j.PID == pid && j.Number == number
}

func (j Job) String() string {
	return fmt.Sprintf("(%d.%d:%d on %d)", j.PID, j.Number, j.Deadline, j.Partition)
}

// JobQueue is an ordered set of live jobs. Order is insertion order.
type JobQueue struct {
	jobs []*Job
}

// Append adds j at the back of the queue.
func (q *JobQueue) Append(j *Job) {
	q.jobs = append(q.jobs, j)
}

// Len returns the number of jobs in the queue.
func (q *JobQueue) Len() int {
	return len(q.jobs)
}

// Find returns the index of job pid.number, or -1.
func (q *JobQueue) Find(pid int16, number int32) int {
	for i, j := range q.jobs {
		if j.is(pid, number) {
			return i
		}
	}
	return -1
}

// Contains reports whether the queue holds j itself.
func (q *JobQueue) Contains(j *Job) bool {
	return q.Find(j.PID, j.Number) >= 0
}

// Remove deletes and returns the job at index i, preserving order.
func (q *JobQueue) Remove(i int) *Job {
	j := q.jobs[i]
	copy(q.jobs[i:], q.jobs[i+1:])
	q.jobs[len(q.jobs)-1] = nil
	q.jobs = q.jobs[:len(q.jobs)-1]
	return j
}

// Items returns the queue contents for iteration.
// Callers MUST NOT append to or reslice the returned slice.
func (q *JobQueue) Items() []*Job {
	return q.jobs
}

// Snapshot returns owned copies of every job, so later mutation of the live
// jobs does not show through.
func (q *JobQueue) Snapshot() []Job {
	out := make([]Job, len(q.jobs))
	for i, j := range q.jobs {
		out[i] = *j
	}
	return out
}

func (q *JobQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, j := range q.jobs {
		sb.WriteString(j.String())
		if i < len(q.jobs)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
