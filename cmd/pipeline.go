package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/litmus-rt/unit-trace/trace"
	"github.com/litmus-rt/unit-trace/trace/filter"
	"github.com/litmus-rt/unit-trace/trace/pedf"
	"github.com/litmus-rt/unit-trace/trace/report"
)

// Options selects the stages of one analysis run.
type Options struct {
	Buffer   int
	Parallel bool

	Skip     int
	Max      int
	Earliest uint64
	Latest   uint64
	Sanitize bool

	Progress       bool
	Print          bool
	PEDF           bool
	InversionStats int // K longest inversions to keep, < 0 disables
	StatsYAML      bool

	Checker pedf.Config
}

// buildPipeline opens paths and chains the stages selected by opts:
// merge, progress, skip/earliest, max/latest, sanitize, P-EDF check.
// Closing the returned stream closes every stage and file.
func buildPipeline(ctx context.Context, runID string, opts Options, paths []string) (trace.Stream, error) {
	m, err := trace.Merge(ctx, paths, trace.MergeConfig{Window: opts.Buffer, Parallel: opts.Parallel})
	if err != nil {
		return nil, err
	}
	var s trace.Stream = m

	if opts.Progress {
		s = report.NewProgress(s, logrus.WithField("run", runID))
	}
	if opts.Skip > 0 {
		s = filter.Skip(s, opts.Skip)
	}
	if opts.Earliest > 0 {
		s = filter.Earliest(s, opts.Earliest)
	}
	if opts.Max > 0 {
		s = filter.Max(s, opts.Max)
	}
	if opts.Latest > 0 {
		s = filter.Latest(s, opts.Latest)
	}
	if opts.Sanitize {
		s = filter.Sanitize(s, opts.Checker.FirstRealJob)
	}
	if opts.PEDF || opts.InversionStats >= 0 {
		s = pedf.NewChecker(s, opts.Checker)
	}
	return s, nil
}

// runAnalysis drains the pipeline into the selected sinks and writes the
// inversion summary, if requested, to out.
func runAnalysis(ctx context.Context, runID string, opts Options, paths []string, out io.Writer) error {
	s, err := buildPipeline(ctx, runID, opts, paths)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logrus.Warnf("Closing trace files: %v", err)
		}
	}()

	sinks := []report.Sink{&report.OutOfOrder{}}
	if opts.Print {
		sinks = append(sinks, report.NewPrinter(out))
	}
	var stats *report.InversionStats
	if opts.InversionStats >= 0 {
		stats = report.NewInversionStats(opts.InversionStats)
		sinks = append(sinks, stats)
	}

	if err := report.Drain(s, sinks...); err != nil {
		return err
	}

	if stats == nil {
		return nil
	}
	sum := stats.Summary()
	sum.RunID = runID
	if opts.StatsYAML {
		err = sum.WriteYAML(out)
	} else {
		err = sum.Print(out)
	}
	if err != nil {
		return fmt.Errorf("writing inversion summary: %w", err)
	}
	return nil
}
