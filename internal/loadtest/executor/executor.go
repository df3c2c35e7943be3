// Package executor turns declared run options into VU counts over time and
// drives a loadtest.Pool accordingly.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/loadtest"
)

// Type identifies the type of executor.
type Type string

const (
	// TypeRampingVUs follows a stage schedule.
	TypeRampingVUs Type = "ramping-vus"

	// TypeSharedIterations shares a total iteration count across VUs.
	TypeSharedIterations Type = "shared-iterations"
)

// DefaultTickInterval is how often a ramping executor re-samples its
// schedule when no iteration completes in between.
const DefaultTickInterval = 100 * time.Millisecond

// Executor controls how many VUs a pool runs over time.
//
// Executors never run iterations themselves and never interrupt a VU;
// draining the pool after Run returns belongs to the engine.
type Executor interface {
	// Type returns the executor type.
	Type() Type

	// PoolOptions returns the options the pool must be created with.
	PoolOptions() []loadtest.PoolOption

	// Run scales the pool until the schedule ends or ctx is done. It
	// returns ctx.Err() when stopped early.
	Run(ctx context.Context, pool *loadtest.Pool) error

	// Progress returns current progress (0.0 to 1.0).
	Progress() float64

	// Stats returns a snapshot of executor statistics.
	Stats() Stats
}

// Stats contains real-time executor statistics.
type Stats struct {
	StartTime     time.Time     `json:"startTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	ActiveVUs int `json:"activeVUs"`
	TargetVUs int `json:"targetVUs"`

	Iterations      int64 `json:"iterations"`
	TotalIterations int64 `json:"totalIterations,omitempty"`

	CurrentStage int `json:"currentStage"`
	TotalStages  int `json:"totalStages"`
}

// New returns the executor matching opts: a fixed iteration count selects
// shared-iterations, anything else follows the stage schedule. opts must
// already have defaults applied.
func New(opts loadtest.Options, logger *zap.Logger) Executor {
	if TypeFor(opts) == TypeSharedIterations {
		return NewSharedIterations(opts.VUs, opts.Iterations, opts.MaxDuration, logger)
	}
	return NewRampingVUs(FromOptions(opts), logger)
}

// TypeFor returns the type of executor New selects for opts.
func TypeFor(opts loadtest.Options) Type {
	if opts.Iterations > 0 {
		return TypeSharedIterations
	}
	return TypeRampingVUs
}

func iterationsRun(pool *loadtest.Pool) int64 {
	if pool == nil {
		return 0
	}
	s := pool.Stats()
	return s.Completed + s.Failed
}
