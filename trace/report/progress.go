package report

import (
	"errors"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/litmus-rt/unit-trace/trace"
)

// ProgressInterval is the number of event records between progress lines.
const ProgressInterval = 1000

// Progress is a pass-through stage that logs input size, a line every
// ProgressInterval events, and totals once the stream ends.
type Progress struct {
	up       trace.Stream
	log      logrus.FieldLogger
	now      func() time.Time
	start    time.Time
	count    int
	finished bool
}

// NewProgress wraps up. Progress lines go to log.
func NewProgress(up trace.Stream, log logrus.FieldLogger) *Progress {
	return &Progress{up: up, log: log, now: time.Now, start: time.Now()}
}

// Count returns the number of event records seen so far.
func (p *Progress) Count() int { return p.count }

func (p *Progress) Next() (trace.Record, error) {
	r, err := p.up.Next()
	if errors.Is(err, io.EOF) {
		if !p.finished {
			p.finished = true
			p.log.Infof("Total records processed: %d", p.count)
			p.log.Infof("Time elapsed: %s", p.now().Sub(p.start).Round(time.Millisecond))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	switch rec := r.(type) {
	case *trace.Event:
		p.count++
		if p.count%ProgressInterval == 0 {
			p.log.Infof("Parsed %d event records", p.count)
		}
	case *trace.Meta:
		if rec.Name == trace.MetaTraceFiles {
			p.log.Infof("Total bytes  : %d (%s)", rec.TotalBytes, humanize.Bytes(uint64(rec.TotalBytes)))
			p.log.Infof("Total records: %s", humanize.Comma(rec.TotalBytes/trace.RecordSize))
			p.start = p.now()
		}
	}
	return r, nil
}

func (p *Progress) Close() error {
	return p.up.Close()
}
