package engine

import (
	"time"

	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// Result is everything a run produced.
type Result struct {
	RunID   string `json:"runId"`
	Name    string `json:"name,omitempty"`
	Status  Status `json:"status"`
	Passed  bool   `json:"passed"`
	Aborted bool   `json:"aborted,omitempty"`

	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Iterations loadtest.PoolStats   `json:"iterations"`
	Drain      loadtest.DrainResult `json:"drain"`

	Thresholds []metrics.ThresholdResult `json:"thresholds,omitempty"`
	Summaries  []metrics.Summary         `json:"metrics"`
	Checks     []loadtest.CheckResult    `json:"checks,omitempty"`

	SetupErr    error `json:"-"`
	TeardownErr error `json:"-"`

	SetupError    string `json:"setupError,omitempty"`
	TeardownError string `json:"teardownError,omitempty"`
}

// CheckPassRate returns the share of passing checks. ok is false when no
// check ran.
func (r *Result) CheckPassRate() (rate float64, ok bool) {
	var passes, total int64
	for _, c := range r.Checks {
		passes += c.Passes
		total += c.Passes + c.Fails
	}
	if total == 0 {
		return 0, false
	}
	return float64(passes) / float64(total), true
}

// Metric returns the summary for selector, if it has samples.
func (r *Result) Metric(selector string) (metrics.Summary, bool) {
	for _, s := range r.Summaries {
		if s.Selector == selector {
			return s, true
		}
	}
	return metrics.Summary{}, false
}
