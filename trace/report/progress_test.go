package report_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litmus-rt/unit-trace/trace"
	"github.com/litmus-rt/unit-trace/trace/internal/testutil"
	"github.com/litmus-rt/unit-trace/trace/report"
)

func messages(hook *logtest.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		out = append(out, e.Message)
	}
	return out
}

func TestProgress_LogsSizeIntervalAndTotals(t *testing.T) {
	// GIVEN a stream of 2500 events behind a trace_files record of 48000 bytes
	log, hook := logtest.NewNullLogger()
	recs := []trace.Record{&trace.Meta{Name: trace.MetaTraceFiles, TotalBytes: 48000}}
	for i := 0; i < 2500; i++ {
		recs = append(recs, testutil.Release(0, 1, 3, uint64(i), 100))
	}
	p := report.NewProgress(testutil.NewSliceStream(recs...), log)

	// WHEN it is drained
	got, err := testutil.Collect(p)
	require.NoError(t, err)

	// THEN every record passes through unchanged
	assert.Len(t, got, 2501)
	assert.Equal(t, 2500, p.Count())

	// AND the size, two interval lines and the totals are logged
	msgs := messages(hook)
	assert.Contains(t, msgs, "Total bytes  : 48000 (48 kB)")
	assert.Contains(t, msgs, "Total records: 2,000")
	assert.Contains(t, msgs, "Parsed 1000 event records")
	assert.Contains(t, msgs, "Parsed 2000 event records")
	assert.NotContains(t, msgs, "Parsed 3000 event records")
	assert.Contains(t, msgs, "Total records processed: 2500")
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestProgress_TotalsLoggedOnce(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	p := report.NewProgress(testutil.NewSliceStream(), log)

	_, err := p.Next()
	require.Error(t, err)
	_, err = p.Next()
	require.Error(t, err)

	n := 0
	for _, m := range messages(hook) {
		if m == "Total records processed: 0" {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestProgress_CloseReachesUpstream(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	up := testutil.NewSliceStream()
	p := report.NewProgress(up, log)

	require.NoError(t, p.Close())
	assert.True(t, up.Closed)
}
