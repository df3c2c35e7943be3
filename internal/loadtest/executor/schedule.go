package executor

import (
	"math"
	"time"

	"github.com/wesleyorama2/surge/internal/loadtest"
)

// Schedule is the concurrency curve of a run: a starting VU count followed
// by stages, each moving the target to Stage.Target over Stage.Duration.
//
// Example stages:
//
//	stages:
//	  - duration: 30s
//	    target: 10     # ramp from vus to 10 over 30s
//	  - duration: 2m
//	    target: 10     # hold 10 VUs for 2 minutes
//	  - duration: 30s
//	    target: 0      # ramp down to 0
type Schedule struct {
	StartVUs int
	Stages   []loadtest.Stage
	Mode     loadtest.RampMode
}

// FromOptions builds the schedule declared by opts. Stages, when present,
// fully determine the curve and override a flat duration; otherwise the flat
// vus/duration pair becomes a single constant stage.
func FromOptions(opts loadtest.Options) Schedule {
	if len(opts.Stages) > 0 {
		return Schedule{
			StartVUs: opts.VUs,
			Stages:   append([]loadtest.Stage(nil), opts.Stages...),
			Mode:     opts.RampMode,
		}
	}
	return Schedule{
		StartVUs: opts.VUs,
		Stages:   []loadtest.Stage{{Target: opts.VUs, Duration: opts.Duration}},
		Mode:     opts.RampMode,
	}
}

// TargetAt returns the target concurrency at elapsed run time. Between two
// stage boundaries the value is interpolated linearly, or held at the
// earlier boundary value in step mode. A zero-duration stage is an instant
// jump. After the last stage the last target holds.
func (s Schedule) TargetAt(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	prev := float64(s.StartVUs)

	var stageStart time.Duration
	for _, st := range s.Stages {
		stageEnd := stageStart + st.Duration
		if elapsed < stageEnd {
			if s.Mode == loadtest.RampStep {
				return prev
			}
			progress := float64(elapsed-stageStart) / float64(st.Duration)
			return prev + (float64(st.Target)-prev)*progress
		}
		prev = float64(st.Target)
		stageStart = stageEnd
	}
	return prev
}

// VUsAt returns TargetAt rounded to the nearest whole VU, never negative.
func (s Schedule) VUsAt(elapsed time.Duration) int {
	v := int(math.Round(s.TargetAt(elapsed)))
	if v < 0 {
		return 0
	}
	return v
}

// StageAt returns the index of the stage active at elapsed, or len(Stages)
// once every stage has ended.
func (s Schedule) StageAt(elapsed time.Duration) int {
	var stageEnd time.Duration
	for i, st := range s.Stages {
		stageEnd += st.Duration
		if elapsed < stageEnd {
			return i
		}
	}
	return len(s.Stages)
}

// TotalDuration is the sum of all stage durations.
func (s Schedule) TotalDuration() time.Duration {
	var total time.Duration
	for _, st := range s.Stages {
		total += st.Duration
	}
	return total
}

// MaxVUs is the highest target the schedule ever reaches.
func (s Schedule) MaxVUs() int {
	m := s.StartVUs
	for _, st := range s.Stages {
		if st.Target > m {
			m = st.Target
		}
	}
	return m
}
