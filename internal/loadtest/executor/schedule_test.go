package executor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/wesleyorama2/surge/internal/loadtest"
)

func TestSchedule_TargetAt(t *testing.T) {
	s := Schedule{Stages: []loadtest.Stage{
		{Target: 10, Duration: 10 * time.Second},
		{Target: 10, Duration: 20 * time.Second},
		{Target: 0, Duration: 10 * time.Second},
	}}

	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{-time.Second, 0},
		{0, 0},
		{5 * time.Second, 5},
		{10 * time.Second, 10},
		{20 * time.Second, 10},
		{35 * time.Second, 5},
		{40 * time.Second, 0},
		{time.Hour, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, s.TargetAt(tt.elapsed), 1e-9, "elapsed %s", tt.elapsed)
	}
	assert.Equal(t, 40*time.Second, s.TotalDuration())
	assert.Equal(t, 10, s.MaxVUs())
}

func TestSchedule_StepMode(t *testing.T) {
	s := Schedule{StartVUs: 2, Mode: loadtest.RampStep, Stages: []loadtest.Stage{
		{Target: 10, Duration: 10 * time.Second},
		{Target: 4, Duration: 10 * time.Second},
	}}

	assert.Equal(t, 2.0, s.TargetAt(0))
	assert.Equal(t, 2.0, s.TargetAt(9*time.Second))
	assert.Equal(t, 10.0, s.TargetAt(10*time.Second))
	assert.Equal(t, 10.0, s.TargetAt(19*time.Second))
	assert.Equal(t, 4.0, s.TargetAt(20*time.Second))
}

func TestSchedule_ZeroDurationStageJumps(t *testing.T) {
	s := Schedule{StartVUs: 1, Stages: []loadtest.Stage{
		{Target: 5, Duration: 0},
		{Target: 5, Duration: 10 * time.Second},
		{Target: 20, Duration: 0},
	}}

	assert.Equal(t, 5.0, s.TargetAt(0))
	assert.Equal(t, 5.0, s.TargetAt(9*time.Second))
	assert.Equal(t, 20.0, s.TargetAt(10*time.Second))
}

func TestSchedule_VUsAtRounds(t *testing.T) {
	s := Schedule{Stages: []loadtest.Stage{{Target: 3, Duration: 3 * time.Second}}}
	assert.Equal(t, 0, s.VUsAt(400*time.Millisecond))
	assert.Equal(t, 1, s.VUsAt(600*time.Millisecond))
	assert.Equal(t, 3, s.VUsAt(time.Minute))
}

func TestSchedule_StageAt(t *testing.T) {
	s := Schedule{Stages: []loadtest.Stage{
		{Target: 1, Duration: time.Second},
		{Target: 2, Duration: time.Second},
	}}
	assert.Equal(t, 0, s.StageAt(0))
	assert.Equal(t, 1, s.StageAt(1500*time.Millisecond))
	assert.Equal(t, 2, s.StageAt(2*time.Second))
}

func TestFromOptions(t *testing.T) {
	flat := FromOptions(loadtest.Options{VUs: 800, Duration: 15 * time.Minute})
	assert.Equal(t, 800, flat.StartVUs)
	assert.Equal(t, []loadtest.Stage{{Target: 800, Duration: 15 * time.Minute}}, flat.Stages)
	assert.Equal(t, 800.0, flat.TargetAt(7*time.Minute))

	staged := FromOptions(loadtest.Options{
		Duration: time.Hour,
		Stages: []loadtest.Stage{
			{Target: 50, Duration: 25 * time.Second},
			{Target: 0, Duration: 5 * time.Second},
		},
	})
	assert.Equal(t, 0, staged.StartVUs)
	assert.Equal(t, 30*time.Second, staged.TotalDuration())
}

func stageGen(minDuration time.Duration) *rapid.Generator[loadtest.Stage] {
	return rapid.Custom(func(t *rapid.T) loadtest.Stage {
		return loadtest.Stage{
			Target:   rapid.IntRange(0, 200).Draw(t, "target"),
			Duration: time.Duration(rapid.Int64Range(int64(minDuration), int64(10*time.Second)).Draw(t, "duration")),
		}
	})
}

func TestSchedule_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := Schedule{
			StartVUs: rapid.IntRange(0, 100).Draw(t, "start"),
			Stages:   rapid.SliceOfN(stageGen(time.Millisecond), 1, 6).Draw(t, "stages"),
			Mode:     rapid.SampledFrom([]loadtest.RampMode{loadtest.RampLinear, loadtest.RampStep}).Draw(t, "mode"),
		}
		d := s.TotalDuration()
		last := float64(s.Stages[len(s.Stages)-1].Target)

		if got := s.TargetAt(0); got != float64(s.StartVUs) {
			t.Fatalf("TargetAt(0) = %v, want %d", got, s.StartVUs)
		}
		extra := time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(t, "extra"))
		if got := s.TargetAt(d + extra); got != last {
			t.Fatalf("TargetAt(D+%s) = %v, want %v", extra, got, last)
		}

		lo, hi := float64(s.StartVUs), float64(s.StartVUs)
		for _, st := range s.Stages {
			lo = math.Min(lo, float64(st.Target))
			hi = math.Max(hi, float64(st.Target))
		}
		at := time.Duration(rapid.Int64Range(0, int64(d)).Draw(t, "at"))
		if v := s.TargetAt(at); v < lo-1e-9 || v > hi+1e-9 {
			t.Fatalf("TargetAt(%s) = %v outside [%v, %v]", at, v, lo, hi)
		}
		if s.VUsAt(at) < 0 || s.VUsAt(at) > s.MaxVUs() {
			t.Fatalf("VUsAt(%s) = %d outside [0, %d]", at, s.VUsAt(at), s.MaxVUs())
		}
	})
}

func TestSchedule_LinearMidpoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v0 := rapid.IntRange(0, 500).Draw(t, "v0")
		st := stageGen(2*time.Millisecond).Draw(t, "stage")
		s := Schedule{StartVUs: v0, Stages: []loadtest.Stage{st}}

		want := float64(v0+st.Target) / 2
		got := s.VUsAt(st.Duration / 2)
		if math.Abs(float64(got)-want) > 0.5+1e-3 {
			t.Fatalf("VUsAt(mid) = %d, want %v within rounding", got, want)
		}
	})
}
