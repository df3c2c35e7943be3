package loadtest

import (
	"context"
	"errors"
)

// SetupFunc runs once before any VU starts. Its result becomes the shared
// SetupData.
type SetupFunc func(ctx context.Context, vu *VU) (interface{}, error)

// IterationFunc is the body of one iteration.
type IterationFunc func(ctx context.Context, vu *VU, data SetupData) error

// TeardownFunc runs once after the schedule ends, with the same SetupData.
type TeardownFunc func(ctx context.Context, vu *VU, data SetupData) error

// Workload is everything the engine needs to run a test.
type Workload struct {
	Name     string
	Options  Options
	Setup    SetupFunc
	Default  IterationFunc
	Teardown TeardownFunc
}

// Validate checks that the workload can run.
func (w *Workload) Validate() error {
	if w.Default == nil {
		return errors.New("workload has no default function")
	}
	return w.Options.Validate()
}
