package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Sink aggregates the samples of one metric (or submetric).
//
// Implementations are safe for concurrent use.
type Sink interface {
	// Add folds one sample into the aggregate.
	Add(s Sample)

	// Aggregate returns the value of agg. The boolean is false when the
	// aggregation is not offered by this kind of sink.
	Aggregate(agg Aggregation, elapsed time.Duration) (float64, bool)

	// Format returns every standard aggregation of the sink.
	Format(elapsed time.Duration) map[string]float64

	// IsEmpty reports whether no sample has been added.
	IsEmpty() bool
}

// NewSink returns the sink for kind.
func NewSink(kind Kind) Sink {
	switch kind {
	case Gauge:
		return &GaugeSink{}
	case Rate:
		return &RateSink{}
	case Trend:
		return NewTrendSink()
	default:
		return &CounterSink{}
	}
}

// CounterSink sums sample values.
type CounterSink struct {
	mu    sync.Mutex
	value float64
	first time.Time
	n     int64
}

// Add implements Sink. Negative values are ignored so the total never
// decreases.
func (c *CounterSink) Add(s Sample) {
	if s.Value < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += s.Value
	c.n++
	if c.first.IsZero() {
		c.first = s.Time
	}
}

// Value returns the running total.
func (c *CounterSink) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Aggregate implements Sink.
func (c *CounterSink) Aggregate(agg Aggregation, elapsed time.Duration) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch agg.Method {
	case "count":
		return c.value, true
	case "rate":
		if elapsed <= 0 {
			return 0, true
		}
		return c.value / elapsed.Seconds(), true
	}
	return 0, false
}

// Format implements Sink.
func (c *CounterSink) Format(elapsed time.Duration) map[string]float64 {
	count, _ := c.Aggregate(Aggregation{Method: "count"}, elapsed)
	rate, _ := c.Aggregate(Aggregation{Method: "rate"}, elapsed)
	return map[string]float64{"count": count, "rate": rate}
}

// IsEmpty implements Sink.
func (c *CounterSink) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n == 0
}

// GaugeSink keeps the last value along with the extremes.
type GaugeSink struct {
	mu       sync.Mutex
	value    float64
	min, max float64
	n        int64
}

// Add implements Sink.
func (g *GaugeSink) Add(s Sample) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = s.Value
	if g.n == 0 || s.Value < g.min {
		g.min = s.Value
	}
	if g.n == 0 || s.Value > g.max {
		g.max = s.Value
	}
	g.n++
}

// Aggregate implements Sink.
func (g *GaugeSink) Aggregate(agg Aggregation, _ time.Duration) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch agg.Method {
	case "value":
		return g.value, true
	case "min":
		return g.min, true
	case "max":
		return g.max, true
	}
	return 0, false
}

// Format implements Sink.
func (g *GaugeSink) Format(_ time.Duration) map[string]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return map[string]float64{"value": g.value, "min": g.min, "max": g.max}
}

// IsEmpty implements Sink.
func (g *GaugeSink) IsEmpty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n == 0
}

// RateSink counts non-zero samples against the total.
type RateSink struct {
	mu    sync.Mutex
	trues int64
	total int64
}

// Add implements Sink.
func (r *RateSink) Add(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if s.Value != 0 {
		r.trues++
	}
}

// Aggregate implements Sink.
func (r *RateSink) Aggregate(agg Aggregation, _ time.Duration) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch agg.Method {
	case "rate":
		if r.total == 0 {
			return 0, true
		}
		return float64(r.trues) / float64(r.total), true
	case "passes":
		return float64(r.trues), true
	case "fails":
		return float64(r.total - r.trues), true
	case "count":
		return float64(r.total), true
	}
	return 0, false
}

// Format implements Sink.
func (r *RateSink) Format(elapsed time.Duration) map[string]float64 {
	rate, _ := r.Aggregate(Aggregation{Method: "rate"}, elapsed)
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]float64{
		"rate":   rate,
		"passes": float64(r.trues),
		"fails":  float64(r.total - r.trues),
	}
}

// IsEmpty implements Sink.
func (r *RateSink) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total == 0
}

// Histogram bounds for the live view, in thousandths of a unit
// (microseconds for time metrics): 1 to one hour, 3 significant figures.
const (
	histMin     int64 = 1
	histMax     int64 = 3_600_000_000
	histSigFigs       = 3
)

// TrendSink retains every value so percentiles are exact and independent of
// insertion order. Values are mirrored into an HDR histogram so the console
// can read approximate percentiles mid-run without sorting.
type TrendSink struct {
	mu       sync.Mutex
	values   []float64
	sorted   bool
	sum      float64
	min, max float64

	hist *hdrhistogram.Histogram
}

// NewTrendSink returns an empty trend sink.
func NewTrendSink() *TrendSink {
	return &TrendSink{
		sorted: true,
		hist:   hdrhistogram.New(histMin, histMax, histSigFigs),
	}
}

// Add implements Sink.
func (t *TrendSink) Add(s Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.values) == 0 || s.Value < t.min {
		t.min = s.Value
	}
	if len(t.values) == 0 || s.Value > t.max {
		t.max = s.Value
	}
	t.values = append(t.values, s.Value)
	t.sum += s.Value
	t.sorted = false

	v := int64(math.Round(s.Value * 1000))
	if v < histMin {
		v = histMin
	} else if v > histMax {
		v = histMax
	}
	_ = t.hist.RecordValue(v)
}

// Count returns the number of recorded values.
func (t *TrendSink) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}

// P returns the pct-th percentile (pct in [0,1]) using linear
// interpolation between the closest ranks.
func (t *TrendSink) P(pct float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentile(pct)
}

func (t *TrendSink) percentile(pct float64) float64 {
	switch len(t.values) {
	case 0:
		return 0
	case 1:
		return t.values[0]
	}
	if pct <= 0 {
		return t.min
	}
	if pct >= 1 {
		return t.max
	}
	if !t.sorted {
		sort.Float64s(t.values)
		t.sorted = true
	}
	i := pct * float64(len(t.values)-1)
	lo := t.values[int(math.Floor(i))]
	hi := t.values[int(math.Ceil(i))]
	return lo + (hi-lo)*(i-math.Floor(i))
}

// LiveP returns an approximate percentile from the histogram mirror.
// It never sorts and is meant for progress output only.
func (t *TrendSink) LiveP(pct float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hist.TotalCount() == 0 {
		return 0
	}
	return float64(t.hist.ValueAtQuantile(pct*100)) / 1000
}

// Aggregate implements Sink.
func (t *TrendSink) Aggregate(agg Aggregation, _ time.Duration) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.values)
	switch agg.Method {
	case "count":
		return float64(n), true
	case "min":
		return t.min, true
	case "max":
		return t.max, true
	case "avg":
		if n == 0 {
			return 0, true
		}
		return t.sum / float64(n), true
	case "med":
		return t.percentile(0.5), true
	case "p":
		return t.percentile(agg.Percentile / 100), true
	}
	return 0, false
}

// Format implements Sink.
func (t *TrendSink) Format(elapsed time.Duration) map[string]float64 {
	out := make(map[string]float64, len(DefaultTrendStats))
	for _, stat := range DefaultTrendStats {
		agg, err := ParseAggregation(stat)
		if err != nil {
			continue
		}
		v, _ := t.Aggregate(agg, elapsed)
		out[stat] = v
	}
	return out
}

// IsEmpty implements Sink.
func (t *TrendSink) IsEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values) == 0
}
