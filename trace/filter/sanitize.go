package filter

import "github.com/litmus-rt/unit-trace/trace"

type jobKey struct {
	pid int16
	job int32
}

type sanitizer struct {
	base
	firstRealJob int32
	released     bool
	releases     map[jobKey]bool
	switchedTo   map[jobKey]bool
}

// Sanitize repairs known quirks of the kernel trace logger:
//   - events of jobs below firstRealJob are task setup and are dropped,
//     except action events once the first release has been seen;
//   - a repeated release of an already released job is dropped;
//   - the switch_away that ends a completed job is logged against the next
//     job number, so a switch_away for a job never switched to is relabeled
//     to the previous job.
func Sanitize(up trace.Stream, firstRealJob int32) trace.Stream {
	return &sanitizer{
		base:         base{up: up},
		firstRealJob: firstRealJob,
		releases:     make(map[jobKey]bool),
		switchedTo:   make(map[jobKey]bool),
	}
}

func (s *sanitizer) Next() (trace.Record, error) {
	for {
		r, err := s.up.Next()
		if err != nil {
			return nil, err
		}
		ev, ok := r.(*trace.Event)
		if !ok {
			return r, nil
		}

		if ev.Type == trace.EvRelease {
			s.released = true
		}
		if ev.Type == trace.EvAction && s.released {
			return ev, nil
		}
		if ev.Job < s.firstRealJob {
			continue
		}

		k := jobKey{ev.PID, ev.Job}
		switch ev.Type {
		case trace.EvRelease:
			if s.releases[k] {
				continue
			}
			s.releases[k] = true
		case trace.EvSwitchTo:
			s.switchedTo[k] = true
		case trace.EvSwitchAway:
			if !s.switchedTo[k] {
				fixed := *ev
				fixed.Job--
				return &fixed, nil
			}
		}
		return ev, nil
	}
}
