// Package engine runs a workload from setup to threshold evaluation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/executor"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
	"github.com/wesleyorama2/surge/internal/logging"
)

// Config holds the collaborators of an Engine. Every field is optional.
type Config struct {
	Logger *zap.Logger

	// Registry lets callers register custom metrics before thresholds are
	// bound. A fresh registry is used when nil.
	Registry *metrics.Registry

	Outputs []Output

	// TickInterval overrides the ramping executor's re-sampling interval.
	TickInterval time.Duration
}

// Engine runs one workload once.
//
// It coordinates:
//   - setup, exactly once, before any VU starts
//   - the executor driving the VU pool for the scheduled run time
//   - the bounded drain of in-flight iterations
//   - teardown, exactly once, with the same setup data
//   - threshold evaluation against the final metrics
//
// Example usage:
//
//	eng, _ := engine.New(workload, transport, engine.Config{Logger: log})
//	result, _ := eng.Run(ctx)
//	os.Exit(result.Status.ExitCode())
type Engine struct {
	workload   *loadtest.Workload
	opts       loadtest.Options
	cfg        Config
	log        *zap.Logger
	registry   *metrics.Registry
	rt         *loadtest.Runtime
	thresholds *metrics.ThresholdSet
	runID      uuid.UUID

	state   atomic.Int32
	stopped atomic.Bool

	mu     sync.RWMutex
	cancel context.CancelFunc
	exec   executor.Executor
	pool   *loadtest.Pool
	start  time.Time
}

// New validates the workload, applies option defaults and binds thresholds.
func New(w *loadtest.Workload, transport http.Transport, cfg Config) (*Engine, error) {
	if w == nil {
		return nil, errors.New("nil workload")
	}
	opts := w.Options
	opts.ApplyDefaults()
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload: %w", err)
	}

	thresholds, err := metrics.ParseThresholds(opts.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}

	reg := cfg.Registry
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	log := logging.OrNop(cfg.Logger)
	rt := loadtest.NewRuntime(reg, transport, opts, log)
	if err := thresholds.Bind(reg); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}

	runID := uuid.New()
	return &Engine{
		workload:   w,
		opts:       opts,
		cfg:        cfg,
		log:        log.Named("engine").With(zap.String("run_id", runID.String())),
		registry:   reg,
		rt:         rt,
		thresholds: thresholds,
		runID:      runID,
	}, nil
}

// RunID returns the unique id of this run.
func (e *Engine) RunID() string {
	return e.runID.String()
}

// Options returns the effective run options.
func (e *Engine) Options() loadtest.Options {
	return e.opts
}

// Registry returns the metric registry of the run.
func (e *Engine) Registry() *metrics.Registry {
	return e.registry
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	e.log.Info("run state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
}

// Stop ends the running phase early. In-flight iterations are drained and
// teardown and evaluation still run.
func (e *Engine) Stop() {
	e.stopped.Store(true)
	e.mu.RLock()
	cancel := e.cancel
	e.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Progress is a point-in-time view of a run for progress displays.
type Progress struct {
	State    State
	Elapsed  time.Duration
	Fraction float64
	Executor executor.Stats
	Running  int
}

// Progress returns the current progress of the run.
func (e *Engine) Progress() Progress {
	e.mu.RLock()
	exec, pool, start := e.exec, e.pool, e.start
	e.mu.RUnlock()

	p := Progress{State: e.State()}
	if !start.IsZero() {
		p.Elapsed = time.Since(start)
	}
	if exec != nil {
		p.Fraction = exec.Progress()
		p.Executor = exec.Stats()
	}
	if pool != nil {
		p.Running = pool.Alive()
	}
	return p
}

// Run executes the workload. It returns an error wrapping
// loadtest.ErrSetupFailed when setup fails; every other outcome, including
// failed thresholds and teardown errors, is reported through the Result.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateSettingUp)) {
		return nil, errors.New("engine has already run")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancel = cancel
	e.start = time.Now()
	e.mu.Unlock()
	if e.stopped.Load() {
		cancel()
	}

	res := &Result{
		RunID:     e.RunID(),
		Name:      e.workload.Name,
		StartTime: e.start,
	}

	if err := e.startOutputs(); err != nil {
		e.setState(StateDone)
		return nil, err
	}
	defer e.stopOutputs()

	e.registry.MarkStart()
	e.log.Info("run state changed", zap.Stringer("from", StateIdle), zap.Stringer("to", StateSettingUp))

	data, err := e.setup(runCtx)
	if err != nil {
		e.log.Error("setup failed, no VUs will start", zap.Error(err))
		res.SetupErr = err
		e.finish(res, false)
		return res, err
	}

	e.setState(StateRunning)
	exec := executor.New(e.opts, e.log)
	if r, ok := exec.(*executor.RampingVUs); ok && e.cfg.TickInterval > 0 {
		r.TickInterval = e.cfg.TickInterval
	}
	pool := loadtest.NewPool(e.rt, e.workload.Default, data, exec.PoolOptions()...)
	e.mu.Lock()
	e.exec, e.pool = exec, pool
	e.mu.Unlock()

	if err := exec.Run(runCtx, pool); err != nil {
		res.Aborted = true
		e.log.Warn("run stopped before the schedule ended", zap.Error(err))
	}
	res.Drain = pool.Drain(e.opts.GracefulStop)
	res.Iterations = pool.Stats()

	e.setState(StateTearingDown)
	if err := e.teardown(data); err != nil {
		e.log.Error("teardown failed", zap.Error(err))
		res.TeardownErr = err
	}

	e.finish(res, true)
	return res, nil
}

// finish evaluates thresholds (when the run body ran) and fills in the
// result.
func (e *Engine) finish(res *Result, evaluate bool) {
	e.registry.MarkEnd()

	passed := true
	if evaluate {
		e.setState(StateEvaluating)
		res.Thresholds = e.thresholds.Evaluate(e.registry)
		passed = metrics.AllPassed(res.Thresholds)
	}
	res.Passed = passed && res.SetupErr == nil
	res.Status = resolveStatus(res.SetupErr, res.TeardownErr, passed)
	res.Summaries = e.registry.Summaries()
	res.Checks = e.rt.Checks.Results()
	if res.SetupErr != nil {
		res.SetupError = res.SetupErr.Error()
	}
	if res.TeardownErr != nil {
		res.TeardownError = res.TeardownErr.Error()
	}
	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)

	e.log.Info("run finished",
		zap.Stringer("status", res.Status),
		zap.Bool("passed", res.Passed),
		zap.Int64("iterations", res.Iterations.Completed+res.Iterations.Failed),
		zap.Int64("interrupted", res.Iterations.Interrupted),
		zap.Duration("duration", res.Duration))
	e.setState(StateDone)
}

func (e *Engine) setup(ctx context.Context) (loadtest.SetupData, error) {
	if e.workload.Setup == nil {
		return loadtest.SetupData{}, nil
	}
	v, err := e.runPhase(ctx, "setup", e.opts.SetupTimeout, func(ctx context.Context, vu *loadtest.VU) (interface{}, error) {
		return e.workload.Setup(ctx, vu)
	})
	if err != nil {
		return loadtest.SetupData{}, fmt.Errorf("%w: %w", loadtest.ErrSetupFailed, err)
	}
	data, err := loadtest.NewSetupData(v)
	if err != nil {
		return loadtest.SetupData{}, fmt.Errorf("%w: %w", loadtest.ErrSetupFailed, err)
	}
	return data, nil
}

// teardown runs detached from the run context so that it still runs after
// an external stop.
func (e *Engine) teardown(data loadtest.SetupData) error {
	if e.workload.Teardown == nil {
		return nil
	}
	_, err := e.runPhase(context.Background(), "teardown", e.opts.TeardownTimeout, func(ctx context.Context, vu *loadtest.VU) (interface{}, error) {
		return nil, e.workload.Teardown(ctx, vu, data)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", loadtest.ErrTeardownFailed, err)
	}
	return nil
}

type phaseResult struct {
	value interface{}
	err   error
}

// runPhase runs fn once on a dedicated VU, bounded by timeout.
func (e *Engine) runPhase(ctx context.Context, phase string, timeout time.Duration,
	fn func(ctx context.Context, vu *loadtest.VU) (interface{}, error)) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vu := loadtest.NewPhaseVU(ctx, e.rt, phase)
	done := make(chan phaseResult, 1)
	go func() {
		var v interface{}
		err := vu.Call(func() error {
			var err error
			v, err = fn(ctx, vu)
			return err
		})
		done <- phaseResult{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s did not finish within %s: %w", phase, timeout, ctx.Err())
	}
}

func (e *Engine) startOutputs() error {
	info := RunInfo{
		RunID:     e.RunID(),
		Name:      e.workload.Name,
		StartTime: e.start,
		Options:   e.opts,
	}
	for i, o := range e.cfg.Outputs {
		if err := o.Start(info); err != nil {
			for _, started := range e.cfg.Outputs[:i] {
				_ = started.Stop()
			}
			return fmt.Errorf("starting output %s: %w", o.Description(), err)
		}
		e.log.Debug("output started", zap.String("output", o.Description()))
	}
	if len(e.cfg.Outputs) > 0 {
		outputs := e.cfg.Outputs
		e.registry.Subscribe(func(samples []metrics.Sample) {
			for _, o := range outputs {
				o.AddSamples(samples)
			}
		})
	}
	return nil
}

func (e *Engine) stopOutputs() {
	for _, o := range e.cfg.Outputs {
		if err := o.Stop(); err != nil {
			e.log.Error("stopping output", zap.String("output", o.Description()), zap.Error(err))
		}
	}
}
