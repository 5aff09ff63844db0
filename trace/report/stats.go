package report

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/litmus-rt/unit-trace/trace"
	"github.com/litmus-rt/unit-trace/trace/pedf"
)

// InversionStats aggregates inversion_end anomalies: count, min, max, sum and
// the K longest inversions. Inversions of zero length are ignored.
type InversionStats struct {
	k       int
	count   int
	min     uint64
	max     uint64
	sum     uint64
	longest []*pedf.Anomaly // ascending by duration, at most k entries
}

// NewInversionStats keeps the k longest inversions. k <= 0 keeps statistics only.
func NewInversionStats(k int) *InversionStats {
	if k < 0 {
		k = 0
	}
	return &InversionStats{k: k}
}

func (s *InversionStats) Consume(r trace.Record) error {
	a, ok := r.(*pedf.Anomaly)
	if !ok || a.Type != pedf.InversionEnd {
		return nil
	}
	d := a.Duration()
	if d == 0 {
		return nil
	}

	s.count++
	s.sum += d
	if d > s.max {
		s.max = d
	}
	if s.count == 1 || d < s.min {
		s.min = d
	}

	if s.k == 0 {
		return nil
	}
	if len(s.longest) == s.k {
		if d <= s.longest[0].Duration() {
			return nil
		}
		s.longest[0] = nil
		s.longest = s.longest[1:]
	}
	i := sort.Search(len(s.longest), func(i int) bool { return s.longest[i].Duration() > d })
	s.longest = append(s.longest, nil)
	copy(s.longest[i+1:], s.longest[i:])
	s.longest[i] = a
	return nil
}

func (s *InversionStats) Finish() error { return nil }

// InversionEntry describes one kept inversion.
type InversionEntry struct {
	StartID        uint64 `yaml:"start_id"`
	EndID          uint64 `yaml:"end_id"`
	StartTriggerID uint64 `yaml:"start_triggering_event_id"`
	EndTriggerID   uint64 `yaml:"end_triggering_event_id"`
	Time           uint64 `yaml:"time"`
	Duration       uint64 `yaml:"duration_ns"`
	PID            int16  `yaml:"pid"`
	Job            int32  `yaml:"job"`
	Deadline       uint64 `yaml:"deadline"`
}

// InversionSummary is a point-in-time view of the statistics. Durations are
// in trace time units (nanoseconds).
type InversionSummary struct {
	RunID   string           `yaml:"run_id,omitempty"`
	Count   int              `yaml:"num_inversions"`
	Min     uint64           `yaml:"min_ns"`
	Max     uint64           `yaml:"max_ns"`
	Sum     uint64           `yaml:"sum_ns"`
	Average float64          `yaml:"avg_ns"`
	Longest []InversionEntry `yaml:"longest"`
}

// Summary returns the current statistics. An empty input yields all zeros.
func (s *InversionStats) Summary() InversionSummary {
	sum := InversionSummary{
		Count:   s.count,
		Min:     s.min,
		Max:     s.max,
		Sum:     s.sum,
		Longest: make([]InversionEntry, 0, len(s.longest)),
	}
	if s.count > 0 {
		sum.Average = float64(s.sum) / float64(s.count)
	}
	for _, a := range s.longest {
		sum.Longest = append(sum.Longest, InversionEntry{
			StartID:        a.InversionStartID,
			EndID:          a.ID,
			StartTriggerID: a.InversionStartTriggeringEventID,
			EndTriggerID:   a.TriggeringEventID,
			Time:           a.Job.InversionEnd,
			Duration:       a.Duration(),
			PID:            a.Job.PID,
			Job:            a.Job.Number,
			Deadline:       a.Job.Deadline,
		})
	}
	return sum
}

// Print writes the summary as text, longest inversions last.
func (sum InversionSummary) Print(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	if sum.RunID != "" {
		printf("Run: %s\n", sum.RunID)
	}
	printf("Num inversions: %d\n", sum.Count)
	printf("Min inversion: %s\n", formatMillis(sum.Min))
	printf("Max inversion: %s\n", formatMillis(sum.Max))
	printf("Avg inversion: %f ms\n", sum.Average/1e6)
	for _, e := range sum.Longest {
		printf("\n")
		printf("Inversion record IDs: (%d, %d)\n", e.StartID, e.EndID)
		printf("Triggering Event IDs: (%d, %d)\n", e.StartTriggerID, e.EndTriggerID)
		printf("Time: %d\n", e.Time)
		printf("Duration: %s\n", formatMillis(e.Duration))
		printf("Job: %d.%d\n", e.PID, e.Job)
		printf("Deadline: %d\n", e.Deadline)
	}
	return err
}

// WriteYAML writes the summary as a YAML document.
func (sum InversionSummary) WriteYAML(w io.Writer) error {
	data, err := yaml.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshaling inversion summary: %w", err)
	}
	_, err = w.Write(data)
	return err
}
