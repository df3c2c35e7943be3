package metrics

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrKindMismatch is returned when a metric name is registered again with a
// different kind.
var ErrKindMismatch = errors.New("metric already registered with a different kind")

var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,127}$`)

// Metric is a named measurement stream with a fixed kind.
type Metric struct {
	Name     string
	Kind     Kind
	Contains ValueType

	// Filter is set on submetrics only. Parent names the metric they view.
	Filter TagSet
	Parent *Metric

	sink       Sink
	submetrics []*Metric
}

// Sink returns the aggregate of the metric.
func (m *Metric) Sink() Sink {
	return m.sink
}

// Selector returns "name" or, for a submetric, "name{k:v,...}".
func (m *Metric) Selector() string {
	if m.Parent == nil {
		return m.Name
	}
	return m.Parent.Name + m.Filter.String()
}

// Sample is one measurement of a metric.
type Sample struct {
	Metric *Metric
	Value  float64
	Tags   TagSet
	Time   time.Time
}

// SampleListener receives every batch of samples pushed into a registry.
// Listeners are called synchronously and must not block.
type SampleListener func(samples []Sample)

// Registry stores the metrics of one run.
//
// Registry is safe for concurrent use. Push may be called from any number
// of goroutines; each sample is applied to its metric exactly once.
type Registry struct {
	mu         sync.RWMutex
	metrics    map[string]*Metric
	submetrics map[string]*Metric
	listeners  []SampleListener

	start time.Time
	end   time.Time
	now   func() time.Time
}

// NewRegistry returns an empty registry. The observation window starts at
// creation and can be restarted with MarkStart.
func NewRegistry() *Registry {
	r := &Registry{
		metrics:    make(map[string]*Metric),
		submetrics: make(map[string]*Metric),
		now:        time.Now,
	}
	r.start = r.now()
	return r
}

// NewMetric registers name with kind, or returns the existing metric when it
// already has the same kind.
func (r *Registry) NewMetric(name string, kind Kind, contains ...ValueType) (*Metric, error) {
	if !nameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid metric name %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.metrics[name]; ok {
		if m.Kind != kind {
			return nil, fmt.Errorf("%s: %w (have %s, want %s)", name, ErrKindMismatch, m.Kind, kind)
		}
		return m, nil
	}

	vt := Default
	if len(contains) > 0 {
		vt = contains[0]
	}
	m := &Metric{Name: name, Kind: kind, Contains: vt, sink: NewSink(kind)}
	r.metrics[name] = m
	return m, nil
}

// MustNewMetric is like NewMetric but panics on error.
func (r *Registry) MustNewMetric(name string, kind Kind, contains ...ValueType) *Metric {
	m, err := r.NewMetric(name, kind, contains...)
	if err != nil {
		panic(err)
	}
	return m
}

// Get returns the metric called name, or nil.
func (r *Registry) Get(name string) *Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// All returns every top-level metric sorted by name.
func (r *Registry) All() []*Metric {
	r.mu.RLock()
	out := make([]*Metric, 0, len(r.metrics))
	for _, m := range r.metrics {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Submetrics returns every registered submetric sorted by selector.
func (r *Registry) Submetrics() []*Metric {
	r.mu.RLock()
	out := make([]*Metric, 0, len(r.submetrics))
	for _, m := range r.submetrics {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Selector() < out[j].Selector() })
	return out
}

// Lookup resolves a selector to a metric, or nil.
func (r *Registry) Lookup(selector string) *Metric {
	name, filter, err := ParseSelector(selector)
	if err != nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(filter) == 0 {
		return r.metrics[name]
	}
	return r.submetrics[name+filter.String()]
}

// AddSubmetric registers a tag-filtered view of an existing metric. The
// selector has the form name{key:value,...}. Samples pushed before the
// submetric existed are not replayed.
func (r *Registry) AddSubmetric(selector string) (*Metric, error) {
	name, filter, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("no metric named %q", name)
	}
	if len(filter) == 0 {
		return parent, nil
	}

	key := name + filter.String()
	if sub, ok := r.submetrics[key]; ok {
		return sub, nil
	}
	sub := &Metric{
		Name:     parent.Name,
		Kind:     parent.Kind,
		Contains: parent.Contains,
		Filter:   filter,
		Parent:   parent,
		sink:     NewSink(parent.Kind),
	}
	parent.submetrics = append(parent.submetrics, sub)
	r.submetrics[key] = sub
	return sub, nil
}

// Subscribe registers a listener for every subsequent Push.
func (r *Registry) Subscribe(l SampleListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Push records samples. A zero Time is filled with the current time.
func (r *Registry) Push(samples ...Sample) {
	if len(samples) == 0 {
		return
	}

	r.mu.RLock()
	now := r.now()
	for i := range samples {
		s := &samples[i]
		if s.Metric == nil {
			continue
		}
		if s.Time.IsZero() {
			s.Time = now
		}
		s.Metric.sink.Add(*s)
		for _, sub := range s.Metric.submetrics {
			if s.Tags.Contains(sub.Filter) {
				sub.sink.Add(*s)
			}
		}
	}
	listeners := r.listeners
	r.mu.RUnlock()

	for _, l := range listeners {
		l(samples)
	}
}

// MarkStart resets the observation window start to now.
func (r *Registry) MarkStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = r.now()
	r.end = time.Time{}
}

// MarkEnd freezes the observation window. Rates computed afterwards use
// the frozen window.
func (r *Registry) MarkEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.end = r.now()
}

// Elapsed returns the length of the observation window.
func (r *Registry) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.end.IsZero() {
		return r.now().Sub(r.start)
	}
	return r.end.Sub(r.start)
}

// ParseSelector splits "name{k:v,...}" into the name and the tag filter.
// Values may be quoted.
func ParseSelector(selector string) (string, TagSet, error) {
	selector = strings.TrimSpace(selector)
	open := strings.IndexByte(selector, '{')
	if open < 0 {
		if !nameRe.MatchString(selector) {
			return "", nil, fmt.Errorf("invalid metric selector %q", selector)
		}
		return selector, nil, nil
	}
	if !strings.HasSuffix(selector, "}") {
		return "", nil, fmt.Errorf("invalid metric selector %q: missing closing brace", selector)
	}

	name := strings.TrimSpace(selector[:open])
	if !nameRe.MatchString(name) {
		return "", nil, fmt.Errorf("invalid metric selector %q", selector)
	}

	body := strings.TrimSpace(selector[open+1 : len(selector)-1])
	if body == "" {
		return name, nil, nil
	}

	filter := TagSet{}
	for _, part := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(part, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return "", nil, fmt.Errorf("invalid tag filter %q in selector %q", part, selector)
		}
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		filter[k] = v
	}
	return name, filter, nil
}
