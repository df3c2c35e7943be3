package metrics

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Aggregation names one statistic of a sink, e.g. "avg" or "p(95)".
type Aggregation struct {
	Method     string
	Percentile float64
}

func (a Aggregation) String() string {
	if a.Method == "p" {
		return "p(" + strconv.FormatFloat(a.Percentile, 'f', -1, 64) + ")"
	}
	return a.Method
}

var percentileRe = regexp.MustCompile(`^p\(\s*(\d+(?:\.\d+)?)\s*\)$`)

// ParseAggregation parses names such as "count", "rate", "med" or "p(99.9)".
func ParseAggregation(s string) (Aggregation, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "count", "rate", "value", "avg", "min", "max", "med", "passes", "fails":
		return Aggregation{Method: s}, nil
	}
	if m := percentileRe.FindStringSubmatch(s); m != nil {
		p, err := strconv.ParseFloat(m[1], 64)
		if err != nil || p < 0 || p > 100 {
			return Aggregation{}, fmt.Errorf("invalid percentile %q", s)
		}
		return Aggregation{Method: "p", Percentile: p}, nil
	}
	return Aggregation{}, fmt.Errorf("unknown aggregation %q", s)
}

// DefaultTrendStats are the trend statistics shown in summaries.
var DefaultTrendStats = []string{"avg", "min", "med", "max", "p(90)", "p(95)", "p(99)", "count"}

// supported lists the aggregations each kind offers to thresholds.
var supported = map[Kind]map[string]bool{
	Counter: {"count": true, "rate": true},
	Gauge:   {"value": true, "min": true, "max": true},
	Rate:    {"rate": true, "passes": true, "fails": true, "count": true},
	Trend:   {"count": true, "avg": true, "min": true, "max": true, "med": true, "p": true},
}

// ThresholdParseError reports a malformed threshold expression.
type ThresholdParseError struct {
	Selector   string
	Expression string
	Reason     string
}

func (e *ThresholdParseError) Error() string {
	return fmt.Sprintf("invalid threshold %q on %s: %s", e.Expression, e.Selector, e.Reason)
}

// Threshold is one parsed "aggregation operator number" expression.
type Threshold struct {
	Source      string
	Aggregation Aggregation
	Operator    string
	Value       float64
}

var thresholdRe = regexp.MustCompile(`^\s*([a-z]+(?:\(\s*[0-9.]+\s*\))?)\s*(<=|>=|===|==|!=|<|>)\s*(-?[0-9]+(?:\.[0-9]+)?(?:[eE][-+]?[0-9]+)?)\s*$`)

// ParseThreshold parses an expression such as "p(95)<500" or "rate > 0.9".
func ParseThreshold(expr string) (Threshold, error) {
	m := thresholdRe.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("expected <aggregation> <operator> <number>")
	}
	agg, err := ParseAggregation(m[1])
	if err != nil {
		return Threshold{}, err
	}
	v, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid number %q", m[3])
	}
	op := m[2]
	if op == "===" {
		op = "=="
	}
	return Threshold{Source: strings.TrimSpace(expr), Aggregation: agg, Operator: op, Value: v}, nil
}

// Check reports whether observed satisfies the threshold.
func (t Threshold) Check(observed float64) bool {
	switch t.Operator {
	case "<":
		return observed < t.Value
	case "<=":
		return observed <= t.Value
	case ">":
		return observed > t.Value
	case ">=":
		return observed >= t.Value
	case "==":
		return observed == t.Value
	case "!=":
		return observed != t.Value
	}
	return false
}

// ThresholdResult is the outcome of one threshold expression.
type ThresholdResult struct {
	Metric     string  `json:"metric"`
	Expression string  `json:"expression"`
	Observed   float64 `json:"observed"`
	Passed     bool    `json:"passed"`
	Message    string  `json:"message,omitempty"`
}

// ThresholdSet is every threshold of a run keyed by metric selector.
type ThresholdSet struct {
	selectors []string
	exprs     map[string][]Threshold
}

// ParseThresholds parses a selector → expressions map. All expressions are
// validated; the first error is returned.
func ParseThresholds(in map[string][]string) (*ThresholdSet, error) {
	ts := &ThresholdSet{exprs: make(map[string][]Threshold, len(in))}
	for selector, exprs := range in {
		if _, _, err := ParseSelector(selector); err != nil {
			return nil, err
		}
		for _, expr := range exprs {
			th, err := ParseThreshold(expr)
			if err != nil {
				return nil, &ThresholdParseError{Selector: selector, Expression: expr, Reason: err.Error()}
			}
			ts.exprs[selector] = append(ts.exprs[selector], th)
		}
		ts.selectors = append(ts.selectors, selector)
	}
	sort.Strings(ts.selectors)
	return ts, nil
}

// Len returns the number of expressions in the set.
func (ts *ThresholdSet) Len() int {
	if ts == nil {
		return 0
	}
	n := 0
	for _, e := range ts.exprs {
		n += len(e)
	}
	return n
}

// Selectors returns the metric selectors in evaluation order.
func (ts *ThresholdSet) Selectors() []string {
	if ts == nil {
		return nil
	}
	return append([]string(nil), ts.selectors...)
}

// Bind resolves every selector against r, creating submetrics for tag
// filters, and checks each aggregation is offered by the metric's kind. It
// must run before samples are pushed so submetrics see the whole stream.
func (ts *ThresholdSet) Bind(r *Registry) error {
	if ts == nil {
		return nil
	}
	for _, selector := range ts.selectors {
		m, err := r.AddSubmetric(selector)
		if err != nil {
			return fmt.Errorf("threshold on %s: %w", selector, err)
		}
		for _, th := range ts.exprs[selector] {
			if !supported[m.Kind][th.Aggregation.Method] {
				return &ThresholdParseError{
					Selector:   selector,
					Expression: th.Source,
					Reason:     fmt.Sprintf("%s metrics have no %q aggregation", m.Kind, th.Aggregation),
				}
			}
		}
	}
	return nil
}

// Evaluate computes every threshold against the current registry contents.
// Results are ordered by selector, then by declaration order.
func (ts *ThresholdSet) Evaluate(r *Registry) []ThresholdResult {
	if ts == nil {
		return nil
	}
	elapsed := r.Elapsed()
	var results []ThresholdResult
	for _, selector := range ts.selectors {
		m := r.Lookup(selector)
		for _, th := range ts.exprs[selector] {
			res := ThresholdResult{Metric: selector, Expression: th.Source}
			if m == nil {
				res.Message = "metric not registered"
				results = append(results, res)
				continue
			}
			v, ok := m.sink.Aggregate(th.Aggregation, elapsed)
			if !ok {
				res.Message = fmt.Sprintf("aggregation %s not available", th.Aggregation)
				results = append(results, res)
				continue
			}
			res.Observed = v
			res.Passed = th.Check(v)
			if !res.Passed {
				res.Message = fmt.Sprintf("%s=%s, want %s %s",
					th.Aggregation, strconv.FormatFloat(v, 'f', -1, 64),
					th.Operator, strconv.FormatFloat(th.Value, 'f', -1, 64))
			}
			results = append(results, res)
		}
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
