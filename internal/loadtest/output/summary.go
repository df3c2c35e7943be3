package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/engine"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// PrintSummary prints the end-of-run report: checks by group, metric
// summaries, thresholds and the run status.
func (c *Console) PrintSummary(res *engine.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	if c.quiet {
		if res.Passed {
			c.writeln(c.colors.ok.Sprint("PASSED"))
		} else {
			c.writeln(c.colors.fail.Sprintf("FAILED (%s)", res.Status))
		}
		return
	}

	line := strings.Repeat(boxHorizontal, 56)
	status := c.colors.ok.Sprint("Completed ✓")
	if !res.Passed {
		status = c.colors.fail.Sprintf("Failed ✗ (%s)", res.Status)
	}
	name := res.Name
	if name == "" {
		name = "surge"
	}

	c.writeln("")
	c.writeln(c.colors.info.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", c.colors.bold.Sprint(name), status))
	c.writeln(c.colors.info.Sprint(line))
	c.writeln("")
	c.writeln(fmt.Sprintf("Run ID:        %s", c.colors.dim.Sprint(res.RunID)))
	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.info.Sprint(formatDuration(res.Duration))))
	c.writeln(fmt.Sprintf("Iterations:    %s completed, %s failed, %s interrupted",
		c.colors.info.Sprint(formatNumber(res.Iterations.Completed)),
		c.colors.info.Sprint(formatNumber(res.Iterations.Failed)),
		c.colors.info.Sprint(formatNumber(res.Iterations.Interrupted))))
	if res.SetupError != "" {
		c.writeln(c.colors.fail.Sprintf("Setup error:   %s", res.SetupError))
	}
	if res.TeardownError != "" {
		c.writeln(c.colors.fail.Sprintf("Teardown error: %s", res.TeardownError))
	}
	c.writeln("")

	if len(res.Checks) > 0 {
		c.writeln(c.colors.bold.Sprint("Checks:"))
		c.renderChecks(buildCheckTree(res.Checks), 1)
		c.writeln("")
	}

	if len(res.Summaries) > 0 {
		c.writeln(c.colors.bold.Sprint("Metrics:"))
		c.renderMetrics(res.Summaries)
		c.writeln("")
	}

	if len(res.Thresholds) > 0 {
		c.writeln(c.colors.bold.Sprint("Thresholds:"))
		for _, t := range res.Thresholds {
			mark := c.colors.ok.Sprint("✓")
			if !t.Passed {
				mark = c.colors.fail.Sprint("✗")
			}
			detail := t.Message
			if detail == "" {
				detail = fmt.Sprintf("observed %g", t.Observed)
			}
			c.writeln(fmt.Sprintf("  %s %s %s %s", mark, t.Metric, t.Expression, c.colors.dim.Sprintf("(%s)", detail)))
		}
		c.writeln("")
	}

	c.writeln(fmt.Sprintf("Status:        %s (exit code %d)", res.Status, res.Status.ExitCode()))
}

// checkNode is one group of the check tree. Items keep the order in which
// checks and subgroups were first seen.
type checkNode struct {
	name   string
	items  []checkItem
	groups map[string]*checkNode
}

type checkItem struct {
	check *loadtest.CheckResult
	group *checkNode
}

func buildCheckTree(results []loadtest.CheckResult) *checkNode {
	root := &checkNode{groups: map[string]*checkNode{}}
	for i := range results {
		node := root
		if results[i].Group != "" {
			for _, part := range strings.Split(results[i].Group, loadtest.GroupSeparator) {
				child, ok := node.groups[part]
				if !ok {
					child = &checkNode{name: part, groups: map[string]*checkNode{}}
					node.groups[part] = child
					node.items = append(node.items, checkItem{group: child})
				}
				node = child
			}
		}
		node.items = append(node.items, checkItem{check: &results[i]})
	}
	return root
}

func (c *Console) renderChecks(node *checkNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, item := range node.items {
		if item.group != nil {
			c.writeln(fmt.Sprintf("%s█ %s", indent, item.group.name))
			c.renderChecks(item.group, depth+1)
			continue
		}
		chk := item.check
		if chk.Fails == 0 {
			c.writeln(fmt.Sprintf("%s%s %s", indent, c.colors.ok.Sprint("✓"), chk.Name))
			continue
		}
		total := chk.Passes + chk.Fails
		c.writeln(fmt.Sprintf("%s%s %s", indent, c.colors.fail.Sprint("✗"), chk.Name))
		c.writeln(fmt.Sprintf("%s  ↳ %s %s %s", indent,
			c.colors.dim.Sprintf("%d%%", chk.Passes*100/total),
			c.colors.ok.Sprintf("✓ %d", chk.Passes),
			c.colors.fail.Sprintf("✗ %d", chk.Fails)))
	}
}

func (c *Console) renderMetrics(summaries []metrics.Summary) {
	labels := make([]string, len(summaries))
	width := 0
	for i, s := range summaries {
		label := s.Name
		if s.Selector != s.Name {
			label = "  " + strings.TrimPrefix(s.Selector, s.Name)
		}
		labels[i] = label
		if n := utf8.RuneCountInString(label); n > width {
			width = n
		}
	}
	width += 3

	for i, s := range summaries {
		dots := strings.Repeat(".", width-utf8.RuneCountInString(labels[i]))
		c.writeln(fmt.Sprintf("  %s%s: %s", labels[i], c.colors.dim.Sprint(dots), c.formatValues(s)))
	}
}

func (c *Console) formatValues(s metrics.Summary) string {
	v := s.Values
	switch s.Kind {
	case metrics.Counter:
		return fmt.Sprintf("%s %s",
			c.colors.info.Sprint(formatValue(v["count"], s.Contains)),
			c.colors.dim.Sprintf("%s/s", formatValue(v["rate"], s.Contains)))
	case metrics.Gauge:
		return fmt.Sprintf("%s min=%s max=%s",
			c.colors.info.Sprint(formatValue(v["value"], s.Contains)),
			formatValue(v["min"], s.Contains),
			formatValue(v["max"], s.Contains))
	case metrics.Rate:
		return fmt.Sprintf("%s %s %s",
			c.colors.info.Sprintf("%.2f%%", v["rate"]*100),
			c.colors.ok.Sprintf("✓ %s", formatNumber(int64(v["passes"]))),
			c.colors.fail.Sprintf("✗ %s", formatNumber(int64(v["fails"]))))
	default:
		parts := make([]string, 0, len(metrics.DefaultTrendStats))
		for _, stat := range metrics.DefaultTrendStats {
			if stat == "count" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", stat, c.colors.info.Sprint(formatValue(v[stat], s.Contains))))
		}
		return strings.Join(parts, " ")
	}
}

// WriteSummaryFile writes res as indented JSON to path.
func WriteSummaryFile(path string, res *engine.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Helper functions

func formatValue(v float64, contains metrics.ValueType) string {
	switch contains {
	case metrics.Time:
		return formatMillis(v)
	case metrics.Data:
		return formatBytes(v)
	default:
		return fmt.Sprintf("%.6g", v)
	}
}

// formatMillis formats a value in milliseconds.
func formatMillis(ms float64) string {
	switch {
	case ms == 0:
		return "0s"
	case ms < 1:
		return fmt.Sprintf("%.2fµs", ms*1000)
	case ms < 1000:
		return fmt.Sprintf("%.2fms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.2fs", ms/1000)
	default:
		return millis(ms).Round(time.Second).String()
	}
}

func formatBytes(b float64) string {
	switch {
	case b < 1000:
		return fmt.Sprintf("%.0f B", b)
	case b < 1e6:
		return fmt.Sprintf("%.1f kB", b/1e3)
	case b < 1e9:
		return fmt.Sprintf("%.1f MB", b/1e6)
	default:
		return fmt.Sprintf("%.1f GB", b/1e9)
	}
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// visibleLen is the printed width of s, ignoring ANSI escape sequences.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		n++
	}
	return n
}
