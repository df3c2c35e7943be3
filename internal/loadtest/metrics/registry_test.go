package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NewMetric(t *testing.T) {
	r := NewRegistry()

	m1, err := r.NewMetric("my_counter", Counter)
	require.NoError(t, err)
	m2, err := r.NewMetric("my_counter", Counter)
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	_, err = r.NewMetric("my_counter", Trend)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKindMismatch))

	_, err = r.NewMetric("bad name", Counter)
	assert.Error(t, err)
	_, err = r.NewMetric("", Counter)
	assert.Error(t, err)
}

func TestRegistry_ConcurrentPushLosesNothing(t *testing.T) {
	r := NewRegistry()
	c := r.MustNewMetric("hits", Counter)
	tr := r.MustNewMetric("latency", Trend, Time)

	const workers, perWorker = 32, 500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				r.Push(
					Sample{Metric: c, Value: 1},
					Sample{Metric: tr, Value: float64(i)},
				)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, float64(workers*perWorker), c.Sink().(*CounterSink).Value())
	assert.Equal(t, workers*perWorker, tr.Sink().(*TrendSink).Count())
}

func TestRegistry_Submetric(t *testing.T) {
	r := NewRegistry()
	b := RegisterBuiltins(r)

	sub, err := r.AddSubmetric(`http_req_duration{name:PublicCrocs}`)
	require.NoError(t, err)
	assert.Equal(t, "http_req_duration{name:PublicCrocs}", sub.Selector())

	again, err := r.AddSubmetric(`http_req_duration{ name: "PublicCrocs" }`)
	require.NoError(t, err)
	assert.Same(t, sub, again)

	r.Push(
		Sample{Metric: b.HTTPReqDuration, Value: 100, Tags: TagSet{"name": "PublicCrocs", "method": "GET"}},
		Sample{Metric: b.HTTPReqDuration, Value: 300, Tags: TagSet{"name": "Login"}},
	)

	assert.Equal(t, 2, b.HTTPReqDuration.Sink().(*TrendSink).Count())
	assert.Equal(t, 1, sub.Sink().(*TrendSink).Count())
	assert.Same(t, sub, r.Lookup("http_req_duration{name:PublicCrocs}"))

	_, err = r.AddSubmetric("nope{a:b}")
	assert.Error(t, err)
}

func TestRegistry_Listeners(t *testing.T) {
	r := NewRegistry()
	m := r.MustNewMetric("x", Gauge)

	var got []Sample
	r.Subscribe(func(samples []Sample) { got = append(got, samples...) })
	r.Push(Sample{Metric: m, Value: 3})

	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Value)
	assert.False(t, got[0].Time.IsZero())
}

func TestRegistry_ElapsedFrozenAfterMarkEnd(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }
	r.MarkStart()
	now = now.Add(10 * time.Second)
	r.MarkEnd()
	now = now.Add(time.Hour)

	assert.Equal(t, 10*time.Second, r.Elapsed())
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		filter  TagSet
		wantErr bool
	}{
		{"http_reqs", "http_reqs", nil, false},
		{"http_req_duration{name:PublicCrocs}", "http_req_duration", TagSet{"name": "PublicCrocs"}, false},
		{"checks{group:::Create, check:ok}", "checks", TagSet{"group": "::Create", "check": "ok"}, false},
		{"x{}", "x", nil, false},
		{"x{a}", "", nil, true},
		{"x{a:b", "", nil, true},
		{"1abc", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, filter, err := ParseSelector(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.filter, filter)
		})
	}
}

func TestSummaries(t *testing.T) {
	r := NewRegistry()
	b := RegisterBuiltins(r)
	r.Push(Sample{Metric: b.HTTPReqs, Value: 1}, Sample{Metric: b.Checks, Value: 1})

	sums := r.Summaries()
	names := make([]string, 0, len(sums))
	for _, s := range sums {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"checks", "http_reqs"}, names)
	assert.Equal(t, 1.0, sums[0].Values["rate"])
}
