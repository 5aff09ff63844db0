package report

import (
	"github.com/sirupsen/logrus"

	"github.com/litmus-rt/unit-trace/trace"
)

// OutOfOrder collects the ids named by out_of_order_warning records and
// reports them once the stream has ended.
type OutOfOrder struct {
	IDs []uint64
}

func (o *OutOfOrder) Consume(r trace.Record) error {
	if m, ok := r.(*trace.Meta); ok && m.Name == trace.MetaOutOfOrder {
		o.IDs = append(o.IDs, m.RecordID)
	}
	return nil
}

func (o *OutOfOrder) Finish() error {
	if len(o.IDs) > 0 {
		logrus.Warnf("The following %d records were out of order: %v", len(o.IDs), o.IDs)
	}
	return nil
}
