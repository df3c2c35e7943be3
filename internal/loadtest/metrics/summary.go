package metrics

// Summary is the end-of-run view of one metric or submetric.
type Summary struct {
	Name     string             `json:"name"`
	Selector string             `json:"selector"`
	Kind     Kind               `json:"type"`
	Contains ValueType          `json:"contains"`
	Values   map[string]float64 `json:"values"`
}

// Summaries returns a summary for every non-empty metric, followed by its
// submetrics, in name order.
func (r *Registry) Summaries() []Summary {
	elapsed := r.Elapsed()
	var out []Summary
	for _, m := range r.All() {
		if m.sink.IsEmpty() {
			continue
		}
		out = append(out, summarize(m, m.sink.Format(elapsed)))
		r.mu.RLock()
		subs := append([]*Metric(nil), m.submetrics...)
		r.mu.RUnlock()
		for _, sub := range subs {
			out = append(out, summarize(sub, sub.sink.Format(elapsed)))
		}
	}
	return out
}

func summarize(m *Metric, values map[string]float64) Summary {
	return Summary{
		Name:     m.Name,
		Selector: m.Selector(),
		Kind:     m.Kind,
		Contains: m.Contains,
		Values:   values,
	}
}
