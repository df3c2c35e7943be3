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

// SharedIterations runs a fixed total number of iterations spread over a
// fixed number of VUs. A VU takes the next iteration as soon as it is free,
// so fast VUs run more of them. The run ends when every iteration has been
// taken and finished, or at maxDuration.
type SharedIterations struct {
	vus         int
	iterations  int64
	maxDuration time.Duration
	log         *zap.Logger

	claimed atomic.Int64
	running atomic.Bool

	mu        sync.RWMutex
	startTime time.Time
	pool      *loadtest.Pool
}

// NewSharedIterations creates the executor. vus is capped at iterations.
func NewSharedIterations(vus int, iterations int64, maxDuration time.Duration, logger *zap.Logger) *SharedIterations {
	if vus <= 0 {
		vus = 1
	}
	if int64(vus) > iterations {
		vus = int(iterations)
	}
	if maxDuration <= 0 {
		maxDuration = loadtest.DefaultMaxDuration
	}
	return &SharedIterations{
		vus:         vus,
		iterations:  iterations,
		maxDuration: maxDuration,
		log:         logging.OrNop(logger).Named("executor"),
	}
}

// Type returns the executor type.
func (e *SharedIterations) Type() Type {
	return TypeSharedIterations
}

// PoolOptions installs the gate that hands out the shared iterations.
func (e *SharedIterations) PoolOptions() []loadtest.PoolOption {
	return []loadtest.PoolOption{loadtest.WithIterationGate(e.claim)}
}

func (e *SharedIterations) claim() bool {
	return e.claimed.Add(1) <= e.iterations
}

// Run starts the VUs and waits for them to use up the iterations.
func (e *SharedIterations) Run(ctx context.Context, pool *loadtest.Pool) error {
	e.mu.Lock()
	e.startTime = time.Now()
	e.pool = pool
	e.mu.Unlock()
	e.running.Store(true)
	defer e.running.Store(false)

	e.log.Info("shared-iterations started",
		zap.Int("vus", e.vus),
		zap.Int64("iterations", e.iterations),
		zap.Duration("maxDuration", e.maxDuration))

	runCtx, cancel := context.WithTimeout(ctx, e.maxDuration)
	defer cancel()

	pool.Scale(e.vus)
	if err := pool.Wait(runCtx); err != nil {
		if ctx.Err() != nil {
			e.log.Info("shared-iterations stopped early", zap.Error(ctx.Err()))
			return ctx.Err()
		}
		e.log.Warn("shared-iterations reached maxDuration",
			zap.Duration("maxDuration", e.maxDuration),
			zap.Int64("iterations", iterationsRun(pool)))
		return nil
	}
	e.log.Info("shared-iterations finished", zap.Int64("iterations", iterationsRun(pool)))
	return nil
}

// Progress returns the share of iterations finished.
func (e *SharedIterations) Progress() float64 {
	e.mu.RLock()
	pool := e.pool
	e.mu.RUnlock()
	if pool == nil {
		return 0
	}
	if !e.running.Load() {
		return 1
	}
	p := float64(iterationsRun(pool)) / float64(e.iterations)
	if p > 1 {
		p = 1
	}
	return p
}

// Stats returns executor statistics.
func (e *SharedIterations) Stats() Stats {
	e.mu.RLock()
	start, pool := e.startTime, e.pool
	e.mu.RUnlock()

	var elapsed time.Duration
	active := 0
	if !start.IsZero() {
		elapsed = time.Since(start)
	}
	if pool != nil {
		active = pool.Alive()
	}
	return Stats{
		StartTime:       start,
		Elapsed:         elapsed,
		TotalDuration:   e.maxDuration,
		ActiveVUs:       active,
		TargetVUs:       e.vus,
		Iterations:      iterationsRun(pool),
		TotalIterations: e.iterations,
	}
}

var _ Executor = (*SharedIterations)(nil)
