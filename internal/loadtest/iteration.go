package loadtest

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// IterationOutcome classifies how an iteration ended.
type IterationOutcome int

const (
	// IterationCompleted means the default function returned nil.
	IterationCompleted IterationOutcome = iota
	// IterationFailed means the iteration aborted, returned an error or
	// panicked.
	IterationFailed
	// IterationInterrupted means the iteration was cut short by a forced
	// stop. It is neither completed nor failed.
	IterationInterrupted
)

func (o IterationOutcome) String() string {
	switch o {
	case IterationCompleted:
		return "completed"
	case IterationFailed:
		return "failed"
	case IterationInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// IterationResult describes one finished iteration.
type IterationResult struct {
	Outcome  IterationOutcome
	Err      error
	Duration time.Duration
}

// RunIteration runs fn once with a clean group scope and records the
// iteration metrics:
//
//   - completed or failed: iterations_total +1 and an iteration_duration
//     sample; failed also adds iterations_failed +1
//   - interrupted: nothing here; the caller that interrupted the VU records
//     iterations_interrupted
//
// An AbortError, any other error or a panic all yield IterationFailed and
// never escape this function.
func (vu *VU) RunIteration(fn IterationFunc, data SetupData) IterationResult {
	vu.resetScope()
	vu.iteration.Add(1)
	vu.phase.Store(phaseExecuting)
	vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning))

	start := time.Now()
	err := vu.Call(func() error { return fn(vu.ctx, vu, data) })
	duration := time.Since(start)

	vu.resetScope()

	if !vu.phase.CompareAndSwap(phaseExecuting, phaseIdle) {
		return IterationResult{Outcome: IterationInterrupted, Err: ErrInterrupted, Duration: duration}
	}

	outcome := IterationCompleted
	if err != nil {
		outcome = IterationFailed
		if IsAbort(err) {
			vu.Logger().Debug("iteration aborted", zap.Error(err))
		} else {
			var pe *PanicError
			if errors.As(err, &pe) {
				vu.Logger().Warn("iteration panicked", zap.Error(err))
			} else {
				vu.Logger().Debug("iteration failed", zap.Error(err))
			}
		}
	}

	b := vu.rt.Metrics
	tags := vu.rt.Tags
	samples := []metrics.Sample{
		{Metric: b.IterationsTotal, Value: 1, Tags: tags},
		{Metric: b.IterationDuration, Value: http.Millis(duration), Tags: tags},
	}
	if outcome == IterationFailed {
		samples = append(samples, metrics.Sample{Metric: b.IterationsFailed, Value: 1, Tags: tags})
	}
	vu.rt.Registry.Push(samples...)

	return IterationResult{Outcome: outcome, Err: err, Duration: duration}
}

// recordInterrupted counts one abandoned iteration.
func (rt *Runtime) recordInterrupted() {
	rt.Registry.Push(metrics.Sample{Metric: rt.Metrics.IterationsInterrupted, Value: 1, Tags: rt.Tags})
}
