package loadtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// GroupSeparator joins nested group names into a path.
const GroupSeparator = "::"

// Group runs fn inside a named group. While fn runs, every sample is tagged
// with group=<path>, where path joins the names of all enclosing groups
// ("Create and modify crocs::Create crocs"). The group is left on every
// exit path, including aborts and panics, and fn's error is returned
// unchanged so that an abort unwinds all enclosing groups.
func (vu *VU) Group(name string, fn func() error) error {
	if name == "" {
		return fmt.Errorf("group name must not be empty")
	}
	if strings.Contains(name, GroupSeparator) {
		return fmt.Errorf("group name %q must not contain %q", name, GroupSeparator)
	}

	outer := vu.tags
	vu.groups = append(vu.groups, name)
	vu.tags = outer.With("group", vu.GroupPath())
	groupTags := vu.tags
	start := time.Now()

	defer func() {
		vu.groups = vu.groups[:len(vu.groups)-1]
		vu.tags = outer
		if vu.ctx.Err() == nil {
			vu.rt.Registry.Push(metrics.Sample{
				Metric: vu.rt.Metrics.GroupDuration,
				Value:  http.Millis(time.Since(start)),
				Tags:   groupTags,
			})
		}
	}()

	return fn()
}

// GroupPath returns the path of the current group ("" at the top level).
func (vu *VU) GroupPath() string {
	return strings.Join(vu.groups, GroupSeparator)
}

// resetScope drops any group state left from a previous iteration.
func (vu *VU) resetScope() {
	vu.groups = vu.groups[:0]
	vu.tags = vu.rt.Tags
}
