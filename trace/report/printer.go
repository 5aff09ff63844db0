package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/litmus-rt/unit-trace/trace"
	"github.com/litmus-rt/unit-trace/trace/pedf"
)

var (
	labelColor   = color.New(color.Bold)
	eventColor   = color.New(color.FgCyan, color.Bold)
	startColor   = color.New(color.FgYellow, color.Bold)
	endColor     = color.New(color.FgGreen, color.Bold)
	missColor    = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgMagenta, color.Bold)
)

// Printer writes a human-readable block for every event and anomaly.
// Meta records are not printed.
type Printer struct {
	w   io.Writer
	err error
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Consume(r trace.Record) error {
	switch rec := r.(type) {
	case *trace.Event:
		p.event(rec)
	case *pedf.Anomaly:
		switch rec.Type {
		case pedf.InversionStart:
			p.inversionStart(rec)
		case pedf.InversionEnd:
			p.inversionEnd(rec)
		case pedf.MissDeadline:
			p.missDeadline(rec)
		case pedf.WrongPartition:
			p.wrongPartition(rec)
		}
	default:
		return nil
	}
	p.printf("\n")
	return p.err
}

func (p *Printer) Finish() error { return p.err }

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) field(label, format string, args ...any) {
	if p.err != nil {
		return
	}
	if _, p.err = labelColor.Fprint(p.w, label+": "); p.err != nil {
		return
	}
	p.printf(format+"\n", args...)
}

func (p *Printer) typeLine(c *color.Color, name string) {
	if p.err != nil {
		return
	}
	if _, p.err = labelColor.Fprint(p.w, "Type: "); p.err != nil {
		return
	}
	_, p.err = c.Fprintln(p.w, name)
}

func (p *Printer) event(e *trace.Event) {
	p.field("Event ID", "%d", e.ID)
	p.field("Job", "%d.%d", e.PID, e.Job)
	p.typeLine(eventColor, e.TypeName())
	p.field("Time", "%d", e.When)
	p.field("CPU", "%d", e.CPU)
}

func (p *Printer) inversionStart(a *pedf.Anomaly) {
	p.typeLine(startColor, "Inversion start")
	p.field("Inversion Record IDs", "(%d, U)", a.ID)
	p.field("Triggering Event IDs", "(%d, U)", a.TriggeringEventID)
	p.field("Time", "%d", a.Job.InversionStart)
	p.jobAndQueues(a)
}

func (p *Printer) inversionEnd(a *pedf.Anomaly) {
	p.typeLine(endColor, "Inversion end")
	p.field("Inversion Record IDs", "(%d, %d)", a.InversionStartID, a.ID)
	p.field("Triggering Event IDs", "(%d, %d)", a.InversionStartTriggeringEventID, a.TriggeringEventID)
	p.field("Time", "%d", a.Job.InversionEnd)
	p.field("Duration", "%s", formatMillis(a.Duration()))
	p.jobAndQueues(a)
}

func (p *Printer) missDeadline(a *pedf.Anomaly) {
	p.typeLine(missColor, "Miss deadline")
	p.field("Job", "%d.%d", a.Job.PID, a.Job.Number)
	p.field("Deadline", "%d", a.Job.Deadline)
	p.field("Completion time", "%d", a.LateCompletion)
}

func (p *Printer) wrongPartition(a *pedf.Anomaly) {
	p.typeLine(warningColor, "Wrong partition")
	p.field("Job", "%d.%d", a.Job.PID, a.Job.Number)
	p.field("Time", "%d", a.When)
	p.field("Partition", "%d", a.Partition)
	p.field("Expected partition", "%d", a.ExpectedPartition)
}

func (p *Printer) jobAndQueues(a *pedf.Anomaly) {
	p.field("Job", "%d.%d", a.Job.PID, a.Job.Number)
	p.field("Deadline", "%d", a.Job.Deadline)
	p.field("Off CPU", "%s", joinJobs(a.OffCPU))
	p.field("On CPU", "%s", joinJobs(a.OnCPU))
}

func joinJobs(jobs []pedf.Job) string {
	parts := make([]string, len(jobs))
	for i, j := range jobs {
		parts[i] = j.String()
	}
	return strings.Join(parts, " ")
}

// formatMillis renders a nanosecond duration in milliseconds.
func formatMillis(ns uint64) string {
	return fmt.Sprintf("%f ms", float64(ns)/1e6)
}
