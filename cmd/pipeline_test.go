package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/litmus-rt/unit-trace/trace"
	"github.com/litmus-rt/unit-trace/trace/pedf"
	"github.com/litmus-rt/unit-trace/trace/report"
)

func ev(cpu int8, pid int16, job int32, when uint64, p trace.Payload) *trace.Event {
	return &trace.Event{Header: trace.Header{CPU: cpu, PID: pid, Job: job}, When: when, Payload: p}
}

func writeTraceFile(t *testing.T, dir, name string, events ...*trace.Event) string {
	t.Helper()
	var data []byte
	for _, e := range events {
		data = append(data, trace.Encode(e)...)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// inversionTrace is a single-CPU trace with one 20ns inversion of job 1.3.
func inversionTrace(t *testing.T) []string {
	dir := t.TempDir()
	return []string{
		writeTraceFile(t, dir, "st-0.bin",
			ev(0, 1, 3, 5, &trace.Release{Deadline: 100}),
			ev(0, 2, 3, 15, &trace.Release{Deadline: 300}),
			ev(0, 1, 3, 25, &trace.SwitchTo{}),
			ev(0, 2, 3, 35, &trace.Block{}),
		),
	}
}

func testOptions() Options {
	return Options{
		Buffer:         10,
		InversionStats: 2,
		StatsYAML:      true,
		Checker:        pedf.Config{TimerResolution: 10, FirstRealJob: 3, ClusterSize: 1},
	}
}

func TestRunAnalysis_InversionStatsYAML(t *testing.T) {
	// GIVEN a trace with one inversion and stats requested as YAML
	paths := inversionTrace(t)
	var out bytes.Buffer

	// WHEN the analysis runs
	require.NoError(t, runAnalysis(context.Background(), "run-1", testOptions(), paths, &out))

	// THEN the summary reports the inversion
	var sum report.InversionSummary
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &sum))
	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, 1, sum.Count)
	assert.Equal(t, uint64(20), sum.Max)
	require.Len(t, sum.Longest, 1)
	assert.Equal(t, int16(1), sum.Longest[0].PID)
	assert.Equal(t, int32(3), sum.Longest[0].Job)
}

func TestRunAnalysis_ParallelMatchesSequential(t *testing.T) {
	paths := inversionTrace(t)
	opts := testOptions()

	var seq, par bytes.Buffer
	require.NoError(t, runAnalysis(context.Background(), "r", opts, paths, &seq))
	opts.Parallel = true
	require.NoError(t, runAnalysis(context.Background(), "r", opts, paths, &par))

	assert.Equal(t, seq.String(), par.String())
}

func TestRunAnalysis_PrintWritesRecords(t *testing.T) {
	color.NoColor = true
	opts := testOptions()
	opts.Print = true
	opts.InversionStats = -1
	opts.PEDF = true
	var out bytes.Buffer

	require.NoError(t, runAnalysis(context.Background(), "r", opts, inversionTrace(t), &out))

	assert.Contains(t, out.String(), "Type: release\n")
	assert.Contains(t, out.String(), "Type: Inversion start\n")
	assert.Contains(t, out.String(), "Type: Inversion end\n")
	assert.NotContains(t, out.String(), "Num inversions")
}

func TestRunAnalysis_FiltersApply(t *testing.T) {
	color.NoColor = true
	opts := Options{Buffer: 10, Print: true, Max: 2, InversionStats: -1}
	var out bytes.Buffer

	require.NoError(t, runAnalysis(context.Background(), "r", opts, inversionTrace(t), &out))

	assert.Contains(t, out.String(), "Event ID: 2\n")
	assert.NotContains(t, out.String(), "Event ID: 3\n")
}

func TestRunAnalysis_ProtocolErrorSurfaces(t *testing.T) {
	// GIVEN a trace that switches to a job that was never released
	dir := t.TempDir()
	paths := []string{writeTraceFile(t, dir, "st-0.bin",
		ev(0, 1, 3, 5, &trace.Release{Deadline: 100}),
		ev(0, 9, 4, 6, &trace.SwitchTo{}),
	)}

	// WHEN the checker runs
	err := runAnalysis(context.Background(), "r", testOptions(), paths, &bytes.Buffer{})

	// THEN the error identifies the offending event
	var pe *pedf.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, uint64(2), pe.ID)
}

func TestRunAnalysis_MissingFile(t *testing.T) {
	err := runAnalysis(context.Background(), "r", testOptions(),
		[]string{filepath.Join(t.TempDir(), "absent.bin")}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunAnalysis_FirstRealJobZero_AnalyzesEarlyJobs(t *testing.T) {
	// GIVEN a trace whose only jobs are numbered 1, sanitized with a zero threshold
	dir := t.TempDir()
	paths := []string{writeTraceFile(t, dir, "st-0.bin",
		ev(0, 1, 1, 5, &trace.Release{Deadline: 100}),
		ev(0, 2, 1, 15, &trace.Release{Deadline: 300}),
		ev(0, 1, 1, 25, &trace.SwitchTo{}),
		ev(0, 2, 1, 35, &trace.Block{}),
	)}
	opts := testOptions()
	opts.Sanitize = true
	opts.Checker.FirstRealJob = 0
	var out bytes.Buffer

	// WHEN the analysis runs
	require.NoError(t, runAnalysis(context.Background(), "r", opts, paths, &out))

	// THEN the inversion of job 1.1 is counted
	var sum report.InversionSummary
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &sum))
	assert.Equal(t, 1, sum.Count)
	assert.Equal(t, uint64(20), sum.Max)
}
