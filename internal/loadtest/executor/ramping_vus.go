package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/logging"
)

// RampingVUs scales the pool to follow a Schedule.
//
// The target is re-sampled on a fixed tick and after every iteration or VU
// exit, whichever comes first, so ramps track the schedule closely even
// with long ticks.
type RampingVUs struct {
	schedule Schedule
	log      *zap.Logger

	// TickInterval overrides DefaultTickInterval when > 0.
	TickInterval time.Duration

	mu        sync.RWMutex
	startTime time.Time
	pool      *loadtest.Pool

	running      atomic.Bool
	activeVUs    atomic.Int32
	targetVUs    atomic.Int32
	currentStage atomic.Int32
}

// NewRampingVUs creates an executor for schedule.
func NewRampingVUs(schedule Schedule, logger *zap.Logger) *RampingVUs {
	return &RampingVUs{
		schedule: schedule,
		log:      logging.OrNop(logger).Named("executor"),
	}
}

// Type returns the executor type.
func (e *RampingVUs) Type() Type {
	return TypeRampingVUs
}

// PoolOptions returns no options; every VU loops until stopped.
func (e *RampingVUs) PoolOptions() []loadtest.PoolOption {
	return nil
}

// Schedule returns the schedule being followed.
func (e *RampingVUs) Schedule() Schedule {
	return e.schedule
}

// Run follows the schedule for its total duration.
func (e *RampingVUs) Run(ctx context.Context, pool *loadtest.Pool) error {
	e.mu.Lock()
	e.startTime = time.Now()
	e.pool = pool
	e.mu.Unlock()
	e.running.Store(true)
	defer e.running.Store(false)

	total := e.schedule.TotalDuration()
	e.log.Info("ramping-vus started",
		zap.Int("startVUs", e.schedule.StartVUs),
		zap.Int("stages", len(e.schedule.Stages)),
		zap.Int("maxVUs", e.schedule.MaxVUs()),
		zap.Duration("duration", total))

	deadline := time.NewTimer(total)
	defer deadline.Stop()

	interval := e.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.adjust(pool)
	for {
		select {
		case <-ctx.Done():
			e.log.Info("ramping-vus stopped early", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-deadline.C:
			e.log.Info("ramping-vus schedule finished", zap.Duration("elapsed", e.elapsed()))
			return nil
		case <-ticker.C:
			e.adjust(pool)
		case <-pool.Completions():
			e.adjust(pool)
		}
	}
}

// adjust scales the pool to the current target.
func (e *RampingVUs) adjust(pool *loadtest.Pool) {
	elapsed := e.elapsed()
	target := e.schedule.VUsAt(elapsed)
	e.currentStage.Store(int32(e.schedule.StageAt(elapsed)))

	if prev := e.targetVUs.Swap(int32(target)); int(prev) != target {
		e.log.Debug("target changed",
			zap.Int("from", int(prev)),
			zap.Int("to", target),
			zap.Duration("elapsed", elapsed))
	}
	e.activeVUs.Store(int32(pool.Scale(target)))
}

func (e *RampingVUs) elapsed() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.startTime.IsZero() {
		return 0
	}
	return time.Since(e.startTime)
}

// Progress returns current progress (0.0 to 1.0).
func (e *RampingVUs) Progress() float64 {
	e.mu.RLock()
	started := !e.startTime.IsZero()
	e.mu.RUnlock()
	if !started {
		return 0
	}
	if !e.running.Load() {
		return 1
	}
	total := e.schedule.TotalDuration()
	if total == 0 {
		return 1
	}
	p := float64(e.elapsed()) / float64(total)
	if p > 1 {
		p = 1
	}
	return p
}

// Stats returns executor statistics.
func (e *RampingVUs) Stats() Stats {
	e.mu.RLock()
	start, pool := e.startTime, e.pool
	e.mu.RUnlock()

	return Stats{
		StartTime:     start,
		Elapsed:       e.elapsed(),
		TotalDuration: e.schedule.TotalDuration(),
		ActiveVUs:     int(e.activeVUs.Load()),
		TargetVUs:     int(e.targetVUs.Load()),
		Iterations:    iterationsRun(pool),
		CurrentStage:  int(e.currentStage.Load()),
		TotalStages:   len(e.schedule.Stages),
	}
}

var _ Executor = (*RampingVUs)(nil)
