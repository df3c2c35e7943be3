package loadtest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// Pool manages the lifecycle of the VUs of a run.
//
// It provides:
//   - scaling the running set to a target count
//   - graceful stop of excess VUs after their current iteration
//   - a bounded drain that interrupts VUs still busy at the deadline
//
// Executors drive a Pool; they never touch VUs directly.
type Pool struct {
	rt   *Runtime
	fn   IterationFunc
	data SetupData
	log  *zap.Logger

	// base is detached from the caller's context: VUs are only ever
	// cancelled individually, by Drain.
	base context.Context

	mu      sync.Mutex
	vus     []*VU // spawn order; includes VUs that are stopping
	nextID  atomic.Int64
	maxSeen int

	wg          sync.WaitGroup
	completions chan struct{}
	gate        func() bool

	completed   atomic.Int64
	failed      atomic.Int64
	interrupted atomic.Int64
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithIterationGate installs a function consulted before every iteration.
// When it returns false the VU exits instead of starting the iteration.
func WithIterationGate(gate func() bool) PoolOption {
	return func(p *Pool) {
		p.gate = gate
	}
}

// NewPool creates an empty pool running fn with data.
func NewPool(rt *Runtime, fn IterationFunc, data SetupData, opts ...PoolOption) *Pool {
	p := &Pool{
		rt:          rt,
		fn:          fn,
		data:        data,
		log:         rt.Logger.Named("pool"),
		base:        context.Background(),
		completions: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Scale starts or stops VUs so that Running equals target. New VUs get
// fresh ids; excess VUs are the most recently started ones and are only
// marked to stop, so an in-flight iteration is never cut short here.
// It returns the running count after the adjustment.
func (p *Pool) Scale(target int) int {
	if target < 0 {
		target = 0
	}

	p.mu.Lock()
	running := p.runningLocked()
	switch {
	case target > running:
		for i := running; i < target; i++ {
			p.spawnLocked()
		}
	case target < running:
		excess := running - target
		for i := len(p.vus) - 1; i >= 0 && excess > 0; i-- {
			vu := p.vus[i]
			if vu.StopRequested() {
				continue
			}
			vu.RequestStop()
			excess--
			p.log.Debug("vu marked to stop", zap.Int("vu", vu.ID), zap.Bool("executing", vu.Executing()))
		}
	}
	running = p.runningLocked()
	if running > p.maxSeen {
		p.maxSeen = running
	}
	maxSeen := p.maxSeen
	p.mu.Unlock()

	p.rt.Registry.Push(
		metrics.Sample{Metric: p.rt.Metrics.VUs, Value: float64(running), Tags: p.rt.Tags},
		metrics.Sample{Metric: p.rt.Metrics.VUsMax, Value: float64(maxSeen), Tags: p.rt.Tags},
	)
	return running
}

func (p *Pool) spawnLocked() {
	id := int(p.nextID.Add(1))
	vu := NewVU(p.base, id, p.rt)
	p.vus = append(p.vus, vu)
	p.wg.Add(1)
	p.log.Debug("vu started", zap.Int("vu", id))
	go p.runVU(vu)
}

// runVU runs iterations until the VU is asked to stop, interrupted, or the
// iteration gate closes.
func (p *Pool) runVU(vu *VU) {
	defer p.wg.Done()
	defer p.remove(vu)
	defer vu.markStopped()

	for {
		if vu.StopRequested() || vu.ctx.Err() != nil {
			return
		}
		if p.gate != nil && !p.gate() {
			return
		}

		res := vu.RunIteration(p.fn, p.data)
		switch res.Outcome {
		case IterationCompleted:
			p.completed.Add(1)
		case IterationFailed:
			p.failed.Add(1)
		case IterationInterrupted:
			return
		}
		p.notify()
	}
}

func (p *Pool) remove(vu *VU) {
	p.mu.Lock()
	for i, v := range p.vus {
		if v == vu {
			p.vus = append(p.vus[:i], p.vus[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	p.log.Debug("vu stopped", zap.Int("vu", vu.ID), zap.Int64("iterations", vu.GetIteration()))
	p.notify()
}

func (p *Pool) notify() {
	select {
	case p.completions <- struct{}{}:
	default:
	}
}

func (p *Pool) runningLocked() int {
	n := 0
	for _, vu := range p.vus {
		if !vu.StopRequested() {
			n++
		}
	}
	return n
}

// Completions is signalled after every finished iteration and every VU
// exit. Signals coalesce; the channel is never closed.
func (p *Pool) Completions() <-chan struct{} {
	return p.completions
}

// Running returns the number of VUs not marked to stop.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

// Alive returns the number of VU loops that have not exited yet, including
// those finishing a last iteration.
func (p *Pool) Alive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.vus)
}

// Executing returns the number of VUs currently inside an iteration.
func (p *Pool) Executing() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, vu := range p.vus {
		if vu.Executing() {
			n++
		}
	}
	return n
}

// MaxObserved returns the largest running count seen so far.
func (p *Pool) MaxObserved() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxSeen
}

// PoolStats summarises the iterations run by the pool.
type PoolStats struct {
	Completed   int64 `json:"completed"`
	Failed      int64 `json:"failed"`
	Interrupted int64 `json:"interrupted"`
	MaxVUs      int   `json:"maxVUs"`
}

// Stats returns the iteration counts so far.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Completed:   p.completed.Load(),
		Failed:      p.failed.Load(),
		Interrupted: p.interrupted.Load(),
		MaxVUs:      p.MaxObserved(),
	}
}

// Wait blocks until every VU loop has exited or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainResult reports how a drain ended.
type DrainResult struct {
	// Graceful is the number of VUs that finished within the timeout.
	Graceful int
	// Interrupted is the number of iterations abandoned at the deadline.
	Interrupted int
}

// Drain marks every VU to stop and waits up to timeout for them to finish
// their current iteration. VUs still busy at the deadline are interrupted:
// their context is cancelled and the in-flight iteration is recorded in
// iterations_interrupted. Drain does not wait for interrupted workload code
// to return.
func (p *Pool) Drain(timeout time.Duration) DrainResult {
	p.mu.Lock()
	vus := append([]*VU(nil), p.vus...)
	p.mu.Unlock()

	for _, vu := range vus {
		vu.RequestStop()
	}
	p.rt.Registry.Push(metrics.Sample{Metric: p.rt.Metrics.VUs, Value: 0, Tags: p.rt.Tags})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if p.Wait(ctx) == nil {
		return DrainResult{Graceful: len(vus)}
	}

	var res DrainResult
	for _, vu := range vus {
		select {
		case <-vu.Done():
			res.Graceful++
			continue
		default:
		}
		if vu.Interrupt() {
			res.Interrupted++
			p.interrupted.Add(1)
			p.rt.recordInterrupted()
		}
	}
	p.log.Warn("drain deadline reached, interrupted in-flight iterations",
		zap.Duration("timeout", timeout),
		zap.Int("interrupted", res.Interrupted))
	return res
}
