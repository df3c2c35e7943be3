package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/engine"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// Cursor control for the live display.
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"
)

// Box drawing and progress bar characters.
const (
	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"
)

// LiveStats is one refresh of the live display.
type LiveStats struct {
	State     engine.State
	Progress  float64
	Elapsed   time.Duration
	Remaining time.Duration

	ActiveVUs int
	TargetVUs int

	Iterations    int64
	TotalRequests int64
	RPS           float64
	ErrorRate     float64

	LatencyP95 time.Duration
	LatencyAvg time.Duration

	CurrentStage int
	TotalStages  int
}

// ProgressSource is what the console polls while a run is in progress.
// *engine.Engine implements it.
type ProgressSource interface {
	Progress() engine.Progress
	Registry() *metrics.Registry
}

// palette holds the colors of the console.
type palette struct {
	ok, fail, warn, info, bold, dim, accent *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		ok:     color.New(color.FgGreen),
		fail:   color.New(color.FgRed),
		warn:   color.New(color.FgYellow),
		info:   color.New(color.FgCyan),
		bold:   color.New(color.Bold),
		dim:    color.New(color.Faint),
		accent: color.New(color.FgMagenta),
	}
	for _, c := range []*color.Color{p.ok, p.fail, p.warn, p.info, p.bold, p.dim, p.accent} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer         io.Writer
	UpdateInterval time.Duration
	Quiet          bool
	NoColor        bool
	ForceColors    bool
	ForceTTY       bool
}

// Console renders run progress and the final summary.
type Console struct {
	w        io.Writer
	interval time.Duration
	isTTY    bool
	quiet    bool
	colors   palette

	mu          sync.Mutex
	linesOutput int
}

// NewConsole creates a console writing to cfg.Writer (stdout by default).
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = time.Second
	}
	isTTY := cfg.ForceTTY || isTerminal(cfg.Writer)
	useColors := cfg.ForceColors || (isTTY && !cfg.NoColor && supportsColors())
	return &Console{
		w:        cfg.Writer,
		interval: cfg.UpdateInterval,
		isTTY:    isTTY,
		quiet:    cfg.Quiet,
		colors:   newPalette(useColors),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func supportsColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run banner.
func (c *Console) PrintHeader(name, executorType string, opts loadtest.Options) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" {
		name = "surge"
	}
	line := strings.Repeat(boxHorizontal, 56)
	c.writeln(c.colors.info.Sprint(line))
	c.writeln(fmt.Sprintf("%s - Running %s", c.colors.bold.Sprint(name), c.colors.dim.Sprintf("[%s]", executorType)))
	c.writeln(c.colors.info.Sprint(line))
	c.writeln(describeOptions(opts))
	c.writeln("")
}

func describeOptions(opts loadtest.Options) string {
	var parts []string
	switch {
	case opts.Iterations > 0:
		parts = append(parts, fmt.Sprintf("%d iterations shared by %d VUs", opts.Iterations, opts.VUs))
		parts = append(parts, fmt.Sprintf("max duration %s", formatDuration(opts.MaxDuration)))
	case len(opts.Stages) > 0:
		var total time.Duration
		peak := opts.VUs
		for _, s := range opts.Stages {
			total += s.Duration
			if s.Target > peak {
				peak = s.Target
			}
		}
		parts = append(parts, fmt.Sprintf("%d stages over %s", len(opts.Stages), formatDuration(total)))
		parts = append(parts, fmt.Sprintf("up to %d VUs", peak))
	default:
		parts = append(parts, fmt.Sprintf("%d VUs for %s", opts.VUs, formatDuration(opts.Duration)))
	}
	parts = append(parts, fmt.Sprintf("graceful stop %s", formatDuration(opts.GracefulStop)))
	if opts.RPS > 0 {
		parts = append(parts, fmt.Sprintf("rps cap %g", opts.RPS))
	}
	return "  " + strings.Join(parts, ", ")
}

// Watch refreshes the progress display every interval until ctx is done.
func (c *Console) Watch(ctx context.Context, src ProgressSource) {
	if c.quiet {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := StatsFromProgress(src.Progress(), src.Registry())
			if c.isTTY {
				c.Update(stats)
			} else {
				c.PrintNonInteractiveUpdate(stats)
			}
		}
	}
}

// Update redraws the live display.
func (c *Console) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()
	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

// PrintNonInteractiveUpdate prints a one-line status, used when the output
// is not a terminal (CI logs, pipes).
func (c *Console) PrintNonInteractiveUpdate(stats *LiveStats) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] %s %.0f%% | VUs: %d/%d | Iterations: %d | Reqs: %d | RPS: %.1f | Failed: %.1f%% | P95: %s",
		formatDuration(stats.Elapsed),
		stats.State,
		stats.Progress*100,
		stats.ActiveVUs,
		stats.TargetVUs,
		stats.Iterations,
		stats.TotalRequests,
		stats.RPS,
		stats.ErrorRate*100,
		formatDurationShort(stats.LatencyP95)))
}

func (c *Console) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

func (c *Console) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	timeInfo := formatDuration(stats.Elapsed)
	if stats.Remaining > 0 {
		timeInfo += " / " + formatDuration(stats.Elapsed+stats.Remaining)
	}
	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		c.colors.ok.Sprint(renderProgressBar(stats.Progress, 40)),
		c.colors.bold.Sprintf("%.0f%%", stats.Progress*100),
		c.colors.dim.Sprint(timeInfo)))

	phase := stats.State.String()
	if stats.TotalStages > 0 && stats.State == engine.StateRunning {
		phase = fmt.Sprintf("stage %d/%d", stats.CurrentStage, stats.TotalStages)
	}
	lines = append(lines, fmt.Sprintf("Phase:    %s", c.colors.accent.Sprint(phase)))
	lines = append(lines, "")

	const boxWidth = 55
	lines = append(lines, c.colors.dim.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight))

	vus := fmt.Sprintf("VUs:     %s / %d", c.colors.info.Sprint(stats.ActiveVUs), stats.TargetVUs)
	reqs := fmt.Sprintf("Requests:    %s", c.colors.info.Sprint(formatNumber(stats.TotalRequests)))
	lines = append(lines, c.formatBoxRow(vus, reqs, boxWidth))

	errColor := c.colors.ok
	if stats.ErrorRate > 0.01 {
		errColor = c.colors.warn
	}
	if stats.ErrorRate > 0.05 {
		errColor = c.colors.fail
	}
	rps := fmt.Sprintf("RPS:     %s", c.colors.ok.Sprintf("%.1f", stats.RPS))
	errs := fmt.Sprintf("Failed:      %s", errColor.Sprintf("%.1f%%", stats.ErrorRate*100))
	lines = append(lines, c.formatBoxRow(rps, errs, boxWidth))

	p95 := fmt.Sprintf("P95:     %s", c.colors.info.Sprint(formatDurationShort(stats.LatencyP95)))
	avg := fmt.Sprintf("Avg:         %s", c.colors.info.Sprint(formatDurationShort(stats.LatencyAvg)))
	lines = append(lines, c.formatBoxRow(p95, avg, boxWidth))

	lines = append(lines, c.colors.dim.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight))
	return lines
}

// formatBoxRow formats a row inside the stats box with two columns.
func (c *Console) formatBoxRow(left, right string, boxWidth int) string {
	colWidth := (boxWidth - 4) / 2

	leftPadding := colWidth - visibleLen(left)
	if leftPadding < 0 {
		leftPadding = 0
	}
	rightPadding := colWidth - visibleLen(right)
	if rightPadding < 0 {
		rightPadding = 0
	}

	border := c.colors.dim.Sprint(boxVertical)
	return fmt.Sprintf("%s %s%s%s %s%s %s",
		border, left, strings.Repeat(" ", leftPadding),
		border, right, strings.Repeat(" ", rightPadding),
		border)
}

func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// StatsFromProgress reads the live figures of a run.
func StatsFromProgress(p engine.Progress, reg *metrics.Registry) *LiveStats {
	stats := &LiveStats{
		State:        p.State,
		Progress:     p.Fraction,
		Elapsed:      p.Elapsed,
		ActiveVUs:    p.Running,
		TargetVUs:    p.Executor.TargetVUs,
		Iterations:   p.Executor.Iterations,
		CurrentStage: p.Executor.CurrentStage,
		TotalStages:  p.Executor.TotalStages,
	}
	if p.Executor.TotalDuration > p.Executor.Elapsed {
		stats.Remaining = p.Executor.TotalDuration - p.Executor.Elapsed
	}
	if reg == nil {
		return stats
	}

	if m := reg.Get(metrics.HTTPReqs); m != nil {
		if v, ok := m.Sink().Aggregate(metrics.Aggregation{Method: "count"}, p.Elapsed); ok {
			stats.TotalRequests = int64(v)
		}
	}
	if stats.TotalRequests > 0 && p.Elapsed > 0 {
		stats.RPS = float64(stats.TotalRequests) / p.Elapsed.Seconds()
	}
	if m := reg.Get(metrics.HTTPReqFailed); m != nil {
		stats.ErrorRate, _ = m.Sink().Aggregate(metrics.Aggregation{Method: "rate"}, p.Elapsed)
	}
	if m := reg.Get(metrics.HTTPReqDuration); m != nil {
		if trend, ok := m.Sink().(*metrics.TrendSink); ok {
			stats.LatencyP95 = millis(trend.LiveP(0.95))
		}
		if avg, ok := m.Sink().Aggregate(metrics.Aggregation{Method: "avg"}, p.Elapsed); ok {
			stats.LatencyAvg = millis(avg)
		}
	}
	return stats
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func (c *Console) write(s string) {
	fmt.Fprint(c.w, s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.w, s)
}
