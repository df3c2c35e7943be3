package executor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/executor"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

func newPool(t *testing.T, opts loadtest.Options, exec executor.Executor, fn loadtest.IterationFunc) (*loadtest.Runtime, *loadtest.Pool) {
	t.Helper()
	opts.ApplyDefaults()
	rt := loadtest.NewRuntime(metrics.NewRegistry(), nil, opts, nil)
	return rt, loadtest.NewPool(rt, fn, loadtest.SetupData{}, exec.PoolOptions()...)
}

func sleeper(d time.Duration) loadtest.IterationFunc {
	return func(ctx context.Context, vu *loadtest.VU, _ loadtest.SetupData) error {
		return vu.Sleep(ctx, d)
	}
}

func TestNew(t *testing.T) {
	opts := loadtest.Options{}
	opts.ApplyDefaults()
	assert.Equal(t, executor.TypeSharedIterations, executor.New(opts, nil).Type())

	opts = loadtest.Options{VUs: 2, Duration: time.Second}
	opts.ApplyDefaults()
	assert.Equal(t, executor.TypeRampingVUs, executor.New(opts, nil).Type())

	opts = loadtest.Options{Stages: []loadtest.Stage{{Target: 1, Duration: time.Second}}}
	opts.ApplyDefaults()
	assert.Equal(t, executor.TypeRampingVUs, executor.New(opts, nil).Type())
}

func TestRampingVUs_FollowsSchedule(t *testing.T) {
	schedule := executor.Schedule{Stages: []loadtest.Stage{
		{Target: 4, Duration: 200 * time.Millisecond},
		{Target: 4, Duration: 200 * time.Millisecond},
		{Target: 0, Duration: 100 * time.Millisecond},
		{Target: 0, Duration: 100 * time.Millisecond},
	}}
	e := executor.NewRampingVUs(schedule, nil)
	e.TickInterval = 10 * time.Millisecond
	_, pool := newPool(t, loadtest.Options{Stages: schedule.Stages}, e, sleeper(10*time.Millisecond))

	assert.Equal(t, 0.0, e.Progress())

	start := time.Now()
	require.NoError(t, e.Run(context.Background(), pool))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 600*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 4, pool.MaxObserved())
	assert.Equal(t, 0, pool.Running())
	assert.Equal(t, 1.0, e.Progress())

	stats := e.Stats()
	assert.Equal(t, 4, stats.TotalStages)
	assert.Equal(t, 600*time.Millisecond, stats.TotalDuration)
	assert.Greater(t, stats.Iterations, int64(0))

	res := pool.Drain(time.Second)
	assert.Equal(t, 0, res.Interrupted)
}

func TestRampingVUs_StopsOnCancel(t *testing.T) {
	schedule := executor.Schedule{StartVUs: 2, Stages: []loadtest.Stage{{Target: 2, Duration: time.Hour}}}
	e := executor.NewRampingVUs(schedule, nil)
	_, pool := newPool(t, loadtest.Options{VUs: 2, Duration: time.Hour}, e, sleeper(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := e.Run(ctx, pool)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 2, pool.Running())
	pool.Drain(time.Second)
}

func TestSharedIterations_RunsExactCount(t *testing.T) {
	e := executor.NewSharedIterations(3, 10, time.Minute, nil)
	rt, pool := newPool(t, loadtest.Options{VUs: 3, Iterations: 10}, e, sleeper(time.Millisecond))

	require.NoError(t, e.Run(context.Background(), pool))

	stats := e.Stats()
	assert.Equal(t, int64(10), stats.Iterations)
	assert.Equal(t, int64(10), stats.TotalIterations)
	assert.Equal(t, 3, pool.MaxObserved())
	assert.Equal(t, 1.0, e.Progress())

	v, _ := rt.Registry.Get(metrics.IterationsTotal).Sink().Aggregate(metrics.Aggregation{Method: "count"}, time.Second)
	assert.Equal(t, 10.0, v)
}

func TestSharedIterations_VUsCappedAtIterations(t *testing.T) {
	e := executor.NewSharedIterations(5, 2, 0, nil)
	assert.Equal(t, 2, e.Stats().TargetVUs)
	assert.Equal(t, loadtest.DefaultMaxDuration, e.Stats().TotalDuration)
}

func TestSharedIterations_MaxDuration(t *testing.T) {
	e := executor.NewSharedIterations(2, 1000, 100*time.Millisecond, nil)
	_, pool := newPool(t, loadtest.Options{VUs: 2, Iterations: 1000}, e, sleeper(30*time.Millisecond))

	start := time.Now()
	require.NoError(t, e.Run(context.Background(), pool))
	assert.Less(t, time.Since(start), time.Second)
	assert.Less(t, e.Stats().Iterations, int64(1000))

	res := pool.Drain(time.Second)
	assert.Equal(t, 0, res.Interrupted)
}
