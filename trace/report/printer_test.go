package report_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litmus-rt/unit-trace/trace"
	"github.com/litmus-rt/unit-trace/trace/internal/testutil"
	"github.com/litmus-rt/unit-trace/trace/pedf"
	"github.com/litmus-rt/unit-trace/trace/report"
)

func init() {
	color.NoColor = true
}

func TestPrinter_Event(t *testing.T) {
	var buf bytes.Buffer
	p := report.NewPrinter(&buf)
	ev := testutil.SwitchTo(2, 7, 4, 1234)
	ev.ID = 9

	require.NoError(t, p.Consume(ev))

	assert.Equal(t,
		"Event ID: 9\nJob: 7.4\nType: switch_to\nTime: 1234\nCPU: 2\n\n",
		buf.String())
}

func TestPrinter_InversionEnd(t *testing.T) {
	var buf bytes.Buffer
	p := report.NewPrinter(&buf)
	a := &pedf.Anomaly{
		ID:   12,
		Type: pedf.InversionEnd,
		Job: pedf.Job{
			PID: 5, Number: 3, Deadline: 900,
			InversionStart: 1_000_000, InversionEnd: 3_500_000,
		},
		OnCPU:                           []pedf.Job{{PID: 6, Number: 3, Deadline: 950}},
		TriggeringEventID:               11,
		InversionStartID:                4,
		InversionStartTriggeringEventID: 3,
	}

	require.NoError(t, p.Consume(a))

	out := buf.String()
	assert.Contains(t, out, "Type: Inversion end\n")
	assert.Contains(t, out, "Inversion Record IDs: (4, 12)\n")
	assert.Contains(t, out, "Triggering Event IDs: (3, 11)\n")
	assert.Contains(t, out, "Duration: 2.500000 ms\n")
	assert.Contains(t, out, "On CPU: (6.3:950 on 0)\n")
	assert.Contains(t, out, "Off CPU: \n")
}

func TestPrinter_InversionStartUsesPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	p := report.NewPrinter(&buf)

	require.NoError(t, p.Consume(&pedf.Anomaly{ID: 4, Type: pedf.InversionStart, TriggeringEventID: 3}))

	assert.Contains(t, buf.String(), "Inversion Record IDs: (4, U)\n")
	assert.Contains(t, buf.String(), "Triggering Event IDs: (3, U)\n")
}

func TestPrinter_MissDeadlineAndWrongPartition(t *testing.T) {
	var buf bytes.Buffer
	p := report.NewPrinter(&buf)

	require.NoError(t, p.Consume(&pedf.Anomaly{
		Type: pedf.MissDeadline, Job: pedf.Job{PID: 1, Number: 4, Deadline: 100}, LateCompletion: 130,
	}))
	require.NoError(t, p.Consume(&pedf.Anomaly{
		Type: pedf.WrongPartition, Job: pedf.Job{PID: 2, Number: 5}, When: 40, Partition: 1, ExpectedPartition: 0,
	}))

	out := buf.String()
	assert.Contains(t, out, "Type: Miss deadline\nJob: 1.4\nDeadline: 100\nCompletion time: 130\n")
	assert.Contains(t, out, "Type: Wrong partition\nJob: 2.5\nTime: 40\nPartition: 1\nExpected partition: 0\n")
}

func TestPrinter_SkipsMeta(t *testing.T) {
	var buf bytes.Buffer
	p := report.NewPrinter(&buf)

	require.NoError(t, p.Consume(&trace.Meta{Name: trace.MetaNumCPUs, NumCPUs: 2}))

	assert.Empty(t, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestPrinter_WriteErrorIsSticky(t *testing.T) {
	p := report.NewPrinter(failingWriter{})
	ev := testutil.Completion(0, 1, 3, 10)

	err := p.Consume(ev)
	require.Error(t, err)
	assert.Equal(t, err, p.Finish())
}
