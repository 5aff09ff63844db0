// Package report holds the consumers at the end of a trace pipeline: a text
// printer, an out-of-order warning summary, a progress reporter and the
// inversion statistics aggregator.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/litmus-rt/unit-trace/trace"
)

// Sink consumes records at the end of a pipeline.
type Sink interface {
	Consume(r trace.Record) error
	// Finish is called once after the stream ended without error.
	Finish() error
}

// Drain pulls every record from s and hands it to each sink in order. It
// returns the first stream or sink error. Drain does not close s.
func Drain(s trace.Stream, sinks ...Sink) error {
	for {
		r, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		for _, sink := range sinks {
			if err := sink.Consume(r); err != nil {
				return fmt.Errorf("consuming record %d (%s): %w", r.SeqID(), r.TypeName(), err)
			}
		}
	}
	for _, sink := range sinks {
		if err := sink.Finish(); err != nil {
			return err
		}
	}
	return nil
}
