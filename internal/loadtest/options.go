package loadtest

import (
	"fmt"
	"time"

	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// RampMode selects how the target VU count moves between stage boundaries.
type RampMode string

const (
	// RampLinear interpolates between consecutive stage targets.
	RampLinear RampMode = "linear"
	// RampStep holds the previous target until the stage ends.
	RampStep RampMode = "step"
)

// Stage is one segment of the concurrency schedule.
type Stage struct {
	Target   int           `json:"target" yaml:"target"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Options are the run options declared by a workload. Durations are already
// resolved; string parsing happens in the config package.
type Options struct {
	// VUs is the initial (or constant) number of virtual users.
	VUs int `json:"vus,omitempty"`

	// Duration is the flat run length. Ignored when Stages is set.
	Duration time.Duration `json:"duration,omitempty"`

	// Stages fully determine the concurrency curve when present.
	Stages   []Stage  `json:"stages,omitempty"`
	RampMode RampMode `json:"rampMode,omitempty"`

	// Iterations, when > 0, runs a fixed number of iterations shared by VUs
	// instead of a time-based schedule.
	Iterations  int64         `json:"iterations,omitempty"`
	MaxDuration time.Duration `json:"maxDuration,omitempty"`

	// Thresholds maps a metric selector to its expressions.
	Thresholds map[string][]string `json:"thresholds,omitempty"`

	// GracefulStop bounds how long in-flight iterations may run after the
	// schedule ends before they are interrupted.
	GracefulStop time.Duration `json:"gracefulStop,omitempty"`

	SetupTimeout    time.Duration `json:"setupTimeout,omitempty"`
	TeardownTimeout time.Duration `json:"teardownTimeout,omitempty"`

	// RPS caps the request rate across all VUs (0 = unlimited).
	RPS float64 `json:"rps,omitempty"`

	// Batch caps the concurrency of a single Batch call.
	Batch int `json:"batch,omitempty"`

	// Tags are attached to every sample of the run.
	Tags metrics.TagSet `json:"tags,omitempty"`
}

// Defaults applied by ApplyDefaults.
const (
	DefaultGracefulStop    = 30 * time.Second
	DefaultSetupTimeout    = 60 * time.Second
	DefaultTeardownTimeout = 60 * time.Second
	DefaultMaxDuration     = 10 * time.Minute
	DefaultBatch           = 20
)

// ApplyDefaults fills unset options. Without stages, duration or
// iterations a single iteration is run by one VU.
func (o *Options) ApplyDefaults() {
	if len(o.Stages) == 0 {
		if o.Duration == 0 && o.Iterations == 0 {
			o.Iterations = 1
		}
		if o.VUs == 0 {
			o.VUs = 1
		}
	}
	if o.RampMode == "" {
		o.RampMode = RampLinear
	}
	if o.GracefulStop <= 0 {
		o.GracefulStop = DefaultGracefulStop
	}
	if o.SetupTimeout <= 0 {
		o.SetupTimeout = DefaultSetupTimeout
	}
	if o.TeardownTimeout <= 0 {
		o.TeardownTimeout = DefaultTeardownTimeout
	}
	if o.Iterations > 0 && o.MaxDuration <= 0 {
		o.MaxDuration = DefaultMaxDuration
	}
	if o.Batch <= 0 {
		o.Batch = DefaultBatch
	}
}

// Validate checks the options for internal consistency.
func (o *Options) Validate() error {
	if o.VUs < 0 {
		return fmt.Errorf("vus must be >= 0, got %d", o.VUs)
	}
	if o.Duration < 0 {
		return fmt.Errorf("duration must be >= 0, got %s", o.Duration)
	}
	for i, s := range o.Stages {
		if s.Target < 0 {
			return fmt.Errorf("stages[%d].target must be >= 0, got %d", i, s.Target)
		}
		if s.Duration < 0 {
			return fmt.Errorf("stages[%d].duration must be >= 0, got %s", i, s.Duration)
		}
	}
	switch o.RampMode {
	case "", RampLinear, RampStep:
	default:
		return fmt.Errorf("unknown ramp mode %q", o.RampMode)
	}
	if o.Iterations < 0 {
		return fmt.Errorf("iterations must be >= 0, got %d", o.Iterations)
	}
	if o.Iterations > 0 && len(o.Stages) > 0 {
		return fmt.Errorf("iterations cannot be combined with stages")
	}
	if o.RPS < 0 {
		return fmt.Errorf("rps must be >= 0, got %g", o.RPS)
	}
	return nil
}
