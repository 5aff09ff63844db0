// Package pedf checks a merged trace stream for conformance to partitioned
// earliest-deadline-first scheduling.
//
// The Checker replays release, switch and completion events against one run
// queue pair (on-CPU, off-CPU) per partition. Whenever the coarse time bucket
// advances it asks, for every partition, which jobs EDF says should be
// running and reports the differences as anomaly records interleaved into
// the stream.
package pedf

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/litmus-rt/unit-trace/trace"
)

// Config controls the checker.
type Config struct {
	// TimerResolution is the width of a time bucket; scans run when an event
	// lands in a different bucket than the previous simulated event.
	TimerResolution uint64
	// FirstRealJob is the lowest job number that is simulated. Lower job
	// numbers are task setup noise and pass through untouched. It is used
	// as given: 0 simulates every job.
	FirstRealJob int32
	// ClusterSize is the number of CPUs per partition. A record on CPU c
	// belongs to partition c / ClusterSize, and that many jobs may run in a
	// partition at once.
	ClusterSize int
}

// DefaultConfig returns one-millisecond buckets (nanosecond timestamps), jobs
// from 3 on, and one CPU per partition.
func DefaultConfig() Config {
	return Config{
		TimerResolution: 1_000_000,
		FirstRealJob:    3,
		ClusterSize:     1,
	}
}

type partition struct {
	onCPU  JobQueue
	offCPU JobQueue
}

// Checker is a trace.Stream that passes every upstream record through and
// interleaves Anomaly records. A protocol violation ends the stream with a
// *ProtocolError.
type Checker struct {
	upstream trace.Stream
	cfg      Config

	partitions    []*partition
	taskPartition map[int16]int // from params records

	lastTime      uint64
	bucketFirstID uint64
	nextID        uint64 // anomaly id generator

	out []trace.Record
	err error
}

// NewChecker wraps upstream. A zero TimerResolution or ClusterSize takes its
// DefaultConfig value.
func NewChecker(upstream trace.Stream, cfg Config) *Checker {
	def := DefaultConfig()
	if cfg.TimerResolution == 0 {
		cfg.TimerResolution = def.TimerResolution
	}
	if cfg.ClusterSize <= 0 {
		cfg.ClusterSize = def.ClusterSize
	}
	return &Checker{
		upstream:      upstream,
		cfg:           cfg,
		taskPartition: make(map[int16]int),
	}
}

// Next returns the next record. Pending anomalies are delivered before the
// record that caused them to be detected.
func (c *Checker) Next() (trace.Record, error) {
	for {
		if len(c.out) > 0 {
			r := c.out[0]
			c.out[0] = nil
			c.out = c.out[1:]
			return r, nil
		}
		if c.err != nil {
			return nil, c.err
		}
		rec, err := c.upstream.Next()
		if err != nil {
			c.err = err
			continue
		}
		if err := c.process(rec); err != nil {
			c.err = err
		}
	}
}

// Close closes the upstream stream.
func (c *Checker) Close() error {
	if c.err == nil {
		c.err = io.EOF
	}
	c.out = nil
	return c.upstream.Close()
}

func (c *Checker) emit(r trace.Record) {
	c.out = append(c.out, r)
}

func (c *Checker) process(rec trace.Record) error {
	switch r := rec.(type) {
	case *trace.Meta:
		if r.Name == trace.MetaNumCPUs {
			c.setup(r.NumCPUs)
		}
		c.emit(r)
		return nil
	case *trace.Event:
		return c.processEvent(r)
	default:
		c.emit(rec)
		return nil
	}
}

func (c *Checker) setup(numCPUs int) {
	n := (numCPUs + c.cfg.ClusterSize - 1) / c.cfg.ClusterSize
	c.partitions = make([]*partition, n)
	for i := range c.partitions {
		c.partitions[i] = &partition{}
	}
}

func (c *Checker) partitionOf(cpu int) int {
	return cpu / c.cfg.ClusterSize
}

func (c *Checker) processEvent(ev *trace.Event) error {
	if p, ok := ev.Payload.(*trace.Params); ok {
		c.taskPartition[ev.PID] = c.partitionOf(int(p.Partition))
		c.emit(ev)
		return nil
	}
	if ev.Job < c.cfg.FirstRealJob {
		c.emit(ev)
		return nil
	}
	if c.partitions == nil {
		return &ProtocolError{ID: ev.ID, TypeName: ev.TypeName(), Reason: "event precedes the num_cpus record"}
	}
	p := c.partitionOf(int(ev.CPU))
	if ev.CPU < 0 || p >= len(c.partitions) {
		return &ProtocolError{ID: ev.ID, TypeName: ev.TypeName(), Reason: fmt.Sprintf("cpu %d is outside the %d traced partitions", ev.CPU, len(c.partitions))}
	}

	if c.lastTime/c.cfg.TimerResolution != ev.When/c.cfg.TimerResolution {
		c.scan(c.lastTime)
		c.bucketFirstID = ev.ID
	}
	if c.bucketFirstID == 0 {
		c.bucketFirstID = ev.ID
	}

	if err := c.apply(ev, p); err != nil {
		return err
	}
	c.lastTime = ev.When
	return nil
}

// apply performs the queue transition for ev and emits it, preceded by a
// miss_deadline anomaly when a job completes late.
func (c *Checker) apply(ev *trace.Event, p int) error {
	part := c.partitions[p]
	on, off := &part.onCPU, &part.offCPU
	log := logrus.WithFields(logrus.Fields{"event": ev.ID, "job": fmt.Sprintf("%d.%d", ev.PID, ev.Job)})

	switch pl := ev.Payload.(type) {
	case *trace.Release:
		off.Append(&Job{PID: ev.PID, Number: ev.Job, Deadline: pl.Deadline, Partition: p})

	case *trace.SwitchTo:
		i := off.Find(ev.PID, ev.Job)
		if i < 0 {
			return &ProtocolError{ID: ev.ID, TypeName: ev.TypeName(), Reason: "switched to a job that was not on the off-CPU queue"}
		}
		on.Append(off.Remove(i))

	case *trace.SwitchAway:
		i := on.Find(ev.PID, ev.Job)
		if i < 0 {
			if ev.Job == 0 {
				break
			}
			return &ProtocolError{ID: ev.ID, TypeName: ev.TypeName(), Reason: "switched away a job that was not running"}
		}
		j := on.Remove(i)
		if !j.Complete {
			off.Append(j)
		}

	case *trace.Completion:
		// A running job stays on the CPU until its switch_away. A job that
		// completes without running (the last job of a task) leaves now.
		var j *Job
		if i := on.Find(ev.PID, ev.Job); i >= 0 {
			j = on.Items()[i]
		} else if i := off.Find(ev.PID, ev.Job); i >= 0 {
			j = off.Remove(i)
		} else {
			log.Warn("completion for a job that is not simulated")
			break
		}
		j.Complete = true
		if ev.When > j.Deadline {
			a := c.newAnomaly(MissDeadline, j, p, ev.When, ev.ID)
			a.LateCompletion = ev.When
			c.emit(a)
		}

	case *trace.Block:
		// Some loggers record the block after the switch_away.
		j := c.lookup(on, off, ev)
		if j == nil {
			log.Warn("block for a job that is not simulated")
			break
		}
		j.Blocked = true

	case *trace.Resume:
		i := off.Find(ev.PID, ev.Job)
		if i < 0 {
			log.Warn("resume for a job that is not on the off-CPU queue")
			break
		}
		off.Items()[i].Blocked = false
	}

	c.emit(ev)
	return nil
}

func (c *Checker) lookup(on, off *JobQueue, ev *trace.Event) *Job {
	if i := on.Find(ev.PID, ev.Job); i >= 0 {
		return on.Items()[i]
	}
	if i := off.Find(ev.PID, ev.Job); i >= 0 {
		return off.Items()[i]
	}
	return nil
}

// newAnomaly snapshots j and partition p's queues.
func (c *Checker) newAnomaly(t AnomalyType, j *Job, p int, when, trigger uint64) *Anomaly {
	c.nextID++
	part := c.partitions[p]
	return &Anomaly{
		ID:                c.nextID,
		Type:              t,
		Partition:         p,
		When:              when,
		Job:               *j,
		OnCPU:             part.onCPU.Snapshot(),
		OffCPU:            part.offCPU.Snapshot(),
		TriggeringEventID: trigger,
	}
}

// scan runs the EDF conformance check for every partition at time when.
func (c *Checker) scan(when uint64) {
	for p := range c.partitions {
		c.scanPartition(p, when)
	}
}

func (c *Checker) scanPartition(p int, when uint64) {
	part := c.partitions[p]
	trigger := c.bucketFirstID

	var cands []*Job
	for _, j := range part.onCPU.Items() {
		if !j.Complete && !j.Blocked {
			cands = append(cands, j)
		}
	}
	for _, j := range part.offCPU.Items() {
		if !j.Complete && !j.Blocked {
			cands = append(cands, j)
		}
	}

	// Deadline first; on equal deadlines the running job wins, then queue order.
	running := make(map[*Job]bool, len(cands))
	for _, j := range cands {
		running[j] = part.onCPU.Contains(j)
	}
	sort.SliceStable(cands, func(a, b int) bool {
		ja, jb := cands[a], cands[b]
		if ja.Deadline != jb.Deadline {
			return ja.Deadline < jb.Deadline
		}
		return running[ja] && !running[jb]
	})

	for _, j := range cands {
		if want, ok := c.taskPartition[j.PID]; ok && want != j.Partition {
			a := c.newAnomaly(WrongPartition, j, p, when, trigger)
			a.ExpectedPartition = want
			c.emit(a)
		}
	}

	m := c.cfg.ClusterSize
	for i, j := range cands {
		switch {
		case i < m && !running[j] && !j.Inverted:
			c.startInversion(j, p, when, trigger)
		case i < m && running[j] && j.Inverted:
			c.endInversion(j, p, when, trigger)
		case i >= m && j.Inverted:
			c.endInversion(j, p, when, trigger)
		}
	}

	// A blocked job is not contending, so its inversion is over.
	for _, q := range []*JobQueue{&part.onCPU, &part.offCPU} {
		for _, j := range q.Items() {
			if j.Blocked && j.Inverted {
				c.endInversion(j, p, when, trigger)
			}
		}
	}
}

func (c *Checker) startInversion(j *Job, p int, when, trigger uint64) {
	j.Inverted = true
	j.InversionStart = when
	j.InversionStartID = c.nextID + 1
	j.InversionStartTriggerID = trigger
	c.emit(c.newAnomaly(InversionStart, j, p, when, trigger))
}

func (c *Checker) endInversion(j *Job, p int, when, trigger uint64) {
	j.InversionEnd = when
	a := c.newAnomaly(InversionEnd, j, p, when, trigger)
	a.InversionStartID = j.InversionStartID
	a.InversionStartTriggeringEventID = j.InversionStartTriggerID
	c.emit(a)

	j.Inverted = false
	j.InversionStart = 0
	j.InversionEnd = 0
	j.InversionStartID = 0
	j.InversionStartTriggerID = 0
}

// IsProtocolError reports whether err is (or wraps) a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
