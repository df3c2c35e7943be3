package loadtest

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is ready but not currently running.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is actively running iterations.
	VUStateRunning
	// VUStateStopping indicates the VU has been asked to stop after its
	// current iteration.
	VUStateStopping
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// iteration phases, used to decide whether the VU or the drain records the
// outcome of an in-flight iteration.
const (
	phaseIdle int32 = iota
	phaseExecuting
	phaseAbandoned
)

// VU is one virtual user. All methods except RequestStop, Interrupt and the
// state getters must be called from the goroutine running the VU.
type VU struct {
	// ID is unique within a run; setup and teardown use ID 0.
	ID int

	rt *Runtime

	ctx    context.Context
	cancel context.CancelFunc

	state     atomic.Int32
	phase     atomic.Int32
	iteration atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}

	// group stack and the tag scope derived from it
	groups []string
	tags   metrics.TagSet
}

// NewVU creates a VU whose hard context derives from parent. Cancelling the
// VU (Interrupt) never affects parent.
func NewVU(parent context.Context, id int, rt *Runtime) *VU {
	ctx, cancel := context.WithCancel(parent)
	return &VU{
		ID:     id,
		rt:     rt,
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		tags:   rt.Tags,
	}
}

// NewPhaseVU returns the VU that runs the one-off setup or teardown phase.
// It has ID 0 and tags every sample with phase=<phase>.
func NewPhaseVU(parent context.Context, rt *Runtime, phase string) *VU {
	vu := NewVU(parent, 0, rt)
	vu.tags = rt.Tags.With("phase", phase)
	return vu
}

// Context returns the VU's hard context. It is cancelled only when the VU
// is forcibly interrupted.
func (vu *VU) Context() context.Context {
	return vu.ctx
}

// Runtime returns the shared run state.
func (vu *VU) Runtime() *Runtime {
	return vu.rt
}

// Logger returns a logger tagged with the VU id.
func (vu *VU) Logger() *zap.Logger {
	return vu.rt.Logger.With(zap.Int("vu", vu.ID))
}

// GetState returns the current VU state.
func (vu *VU) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of iterations started so far.
func (vu *VU) GetIteration() int64 {
	return vu.iteration.Load()
}

// Executing reports whether the VU is in the middle of an iteration.
func (vu *VU) Executing() bool {
	return vu.phase.Load() == phaseExecuting
}

// RequestStop asks the VU to exit after its current iteration. It is safe to
// call more than once and from any goroutine.
func (vu *VU) RequestStop() {
	vu.stopOnce.Do(func() {
		for {
			s := vu.state.Load()
			if VUState(s) == VUStateStopped {
				break
			}
			if vu.state.CompareAndSwap(s, int32(VUStateStopping)) {
				break
			}
		}
		close(vu.stopCh)
	})
}

// StopRequested reports whether RequestStop was called.
func (vu *VU) StopRequested() bool {
	select {
	case <-vu.stopCh:
		return true
	default:
		return false
	}
}

// Interrupt cancels the VU's context. The in-flight iteration, if any, is
// abandoned and reported as interrupted. It returns true if an iteration
// was in flight.
func (vu *VU) Interrupt() bool {
	abandoned := vu.phase.CompareAndSwap(phaseExecuting, phaseAbandoned)
	vu.cancel()
	return abandoned
}

// Done is closed once the VU loop has exited.
func (vu *VU) Done() <-chan struct{} {
	return vu.doneCh
}

// WaitForStop waits for the VU loop to exit. It returns false on timeout.
func (vu *VU) WaitForStop(timeout time.Duration) bool {
	select {
	case <-vu.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (vu *VU) markStopped() {
	vu.state.Store(int32(VUStateStopped))
	vu.cancel()
	close(vu.doneCh)
}

// Tags returns the current tag scope: run tags plus the group path.
func (vu *VU) Tags() metrics.TagSet {
	return vu.tags
}

// Sleep pauses the iteration. It returns early with the context error when
// ctx or the VU is cancelled.
func (vu *VU) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-vu.ctx.Done():
		return vu.ctx.Err()
	}
}

// Add records a sample of a custom metric in the current tag scope.
// Samples from an interrupted VU are dropped.
func (vu *VU) Add(m *metrics.Metric, value float64, tags ...metrics.TagSet) {
	if vu.ctx.Err() != nil {
		return
	}
	t := vu.tags
	for _, extra := range tags {
		t = t.Merge(extra)
	}
	vu.rt.Registry.Push(metrics.Sample{Metric: m, Value: value, Tags: t})
}

// Call runs fn, converting a panic into a *PanicError.
func (vu *VU) Call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			vu.Logger().Debug("recovered panic in workload code",
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}

// Fail is a shorthand for the package level Fail.
func (vu *VU) Fail(format string, args ...interface{}) error {
	return Fail(format, args...)
}

func (vu *VU) String() string {
	return fmt.Sprintf("VU(%d)", vu.ID)
}
