package loadtest

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// Predicate evaluates a check against a subject, typically a response.
type Predicate func(subject interface{}) (bool, error)

// Check is one named predicate.
type Check struct {
	Name string
	Fn   Predicate
}

// Checks is an ordered list of checks.
type Checks []Check

// CheckMap turns a name → boolean predicate map into Checks ordered by
// name.
func CheckMap(m map[string]func(subject interface{}) bool) Checks {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Checks, 0, len(names))
	for _, name := range names {
		fn := m[name]
		out = append(out, Check{Name: name, Fn: func(s interface{}) (bool, error) { return fn(s), nil }})
	}
	return out
}

// Check evaluates every check against subject and returns their logical
// AND. Each check is evaluated independently: a predicate that returns an
// error or panics counts as failed and never stops evaluation.
//
// Every check records one checks_total increment and one checks rate
// sample, both tagged with the current scope, check=<name> and tags.
// Once the VU is interrupted nothing is evaluated or recorded and Check
// returns false: the abandoned iteration counts as interrupted only.
func (vu *VU) Check(subject interface{}, checks Checks, tags ...metrics.TagSet) bool {
	if vu.ctx.Err() != nil {
		return false
	}
	scope := vu.tags
	for _, extra := range tags {
		scope = scope.Merge(extra)
	}
	group := vu.GroupPath()

	all := true
	samples := make([]metrics.Sample, 0, 2*len(checks))
	for _, c := range checks {
		ok := vu.evalCheck(c, subject)
		if !ok {
			all = false
		}

		value := 0.0
		if ok {
			value = 1
		}
		checkTags := scope.With("check", c.Name)
		samples = append(samples,
			metrics.Sample{Metric: vu.rt.Metrics.ChecksTotal, Value: 1, Tags: checkTags},
			metrics.Sample{Metric: vu.rt.Metrics.Checks, Value: value, Tags: checkTags},
		)
		vu.rt.Checks.record(group, c.Name, ok)
	}
	vu.rt.Registry.Push(samples...)
	return all
}

func (vu *VU) evalCheck(c Check, subject interface{}) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			vu.Logger().Debug("check panicked", zap.String("check", c.Name), zap.Any("panic", r))
			ok = false
		}
	}()
	if c.Fn == nil {
		return false
	}
	pass, err := c.Fn(subject)
	if err != nil {
		vu.Logger().Debug("check errored", zap.String("check", c.Name), zap.Error(err))
		return false
	}
	return pass
}

// CheckResult is the pass/fail tally of one check.
type CheckResult struct {
	Group  string `json:"group"`
	Name   string `json:"name"`
	Passes int64  `json:"passes"`
	Fails  int64  `json:"fails"`
}

// CheckTally accumulates check outcomes per group path and name, in the
// order checks are first seen.
type CheckTally struct {
	mu    sync.Mutex
	index map[string]int
	rows  []CheckResult
}

// NewCheckTally returns an empty tally.
func NewCheckTally() *CheckTally {
	return &CheckTally{index: make(map[string]int)}
}

func (t *CheckTally) record(group, name string, ok bool) {
	key := fmt.Sprintf("%s\x00%s", group, name)
	t.mu.Lock()
	defer t.mu.Unlock()
	i, found := t.index[key]
	if !found {
		i = len(t.rows)
		t.index[key] = i
		t.rows = append(t.rows, CheckResult{Group: group, Name: name})
	}
	if ok {
		t.rows[i].Passes++
	} else {
		t.rows[i].Fails++
	}
}

// Results returns a copy of the tally.
func (t *CheckTally) Results() []CheckResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]CheckResult(nil), t.rows...)
}
