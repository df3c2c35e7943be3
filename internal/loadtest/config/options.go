package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// ApplyDefaults applies default values to a TestConfig.
func ApplyDefaults(config *TestConfig) {
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = Duration(http.DefaultConfig().Timeout)
	}
	if config.Settings.UserAgent == "" {
		config.Settings.UserAgent = http.DefaultConfig().UserAgent
	}
	if config.Settings.Transport == "" {
		config.Settings.Transport = http.KindNetHTTP
	}
	if config.Settings.MaxIdleConnsPerHost == 0 {
		config.Settings.MaxIdleConnsPerHost = 100
	}

	applyStepDefaults(config.Default)
	if config.Setup != nil {
		applyStepDefaults(config.Setup.Steps)
	}
	if config.Teardown != nil {
		applyStepDefaults(config.Teardown.Steps)
	}
}

func applyStepDefaults(steps []StepConfig) {
	for i := range steps {
		st := &steps[i]
		switch {
		case st.Request != nil:
			applyRequestDefaults(st.Request)
		case st.Batch != nil:
			for j := range st.Batch.Requests {
				applyRequestDefaults(&st.Batch.Requests[j])
			}
		case st.Group != nil:
			applyStepDefaults(st.Group.Steps)
		}
	}
}

func applyRequestDefaults(req *RequestConfig) {
	if req.Method == "" {
		req.Method = "GET"
	}
	req.Method = strings.ToUpper(req.Method)
}

// ToOptions resolves the run options declared in the file.
func (c *TestConfig) ToOptions() (loadtest.Options, error) {
	o := c.Options
	opts := loadtest.Options{
		VUs:        o.VUs,
		RampMode:   loadtest.RampMode(o.RampMode),
		Iterations: o.Iterations,
		Thresholds: o.Thresholds,
		RPS:        o.RPS,
		Batch:      o.Batch,
	}
	if len(o.Tags) > 0 {
		opts.Tags = metrics.TagSet(o.Tags).Clone()
	}

	durations := []struct {
		field string
		in    string
		out   *time.Duration
	}{
		{"options.duration", o.Duration, &opts.Duration},
		{"options.maxDuration", o.MaxDuration, &opts.MaxDuration},
		{"options.gracefulStop", o.GracefulStop, &opts.GracefulStop},
		{"options.setupTimeout", o.SetupTimeout, &opts.SetupTimeout},
		{"options.teardownTimeout", o.TeardownTimeout, &opts.TeardownTimeout},
	}
	for _, d := range durations {
		v, err := ParseDurationString(d.in)
		if err != nil {
			return loadtest.Options{}, fmt.Errorf("%s: %w", d.field, err)
		}
		*d.out = v
	}

	for i, st := range o.Stages {
		d, err := ParseDurationString(st.Duration)
		if err != nil {
			return loadtest.Options{}, fmt.Errorf("options.stages[%d].duration: %w", i, err)
		}
		opts.Stages = append(opts.Stages, loadtest.Stage{Target: st.Target, Duration: d})
	}
	return opts, nil
}

// TransportConfig returns the HTTP transport configuration.
func (c *TestConfig) TransportConfig() http.Config {
	cfg := http.DefaultConfig()
	cfg.BaseURL = c.Settings.BaseURL
	cfg.Timeout = c.Settings.Timeout.GetDuration(cfg.Timeout)
	if c.Settings.UserAgent != "" {
		cfg.UserAgent = c.Settings.UserAgent
	}
	if len(c.Settings.Headers) > 0 {
		cfg.Headers = MergeVariables(c.Settings.Headers)
	}
	cfg.InsecureSkipVerify = c.Settings.InsecureSkipVerify
	if c.Settings.MaxConnsPerHost > 0 {
		cfg.MaxConnsPerHost = c.Settings.MaxConnsPerHost
	}
	if c.Settings.MaxIdleConnsPerHost > 0 {
		cfg.MaxIdleConnsPerHost = c.Settings.MaxIdleConnsPerHost
	}
	return cfg
}

// Overrides are run options given on the command line. Zero values leave
// the file's options alone.
type Overrides struct {
	VUs        int
	Duration   time.Duration
	Stages     []loadtest.Stage
	Iterations int64
	RPS        float64
}

// Apply overlays o on opts. A duration or iteration count replaces the
// file's stages; stages replace the file's duration and iterations.
func (o Overrides) Apply(opts *loadtest.Options) {
	if o.VUs > 0 {
		opts.VUs = o.VUs
	}
	if o.Duration > 0 || o.Iterations > 0 {
		opts.Stages = nil
		opts.Duration = o.Duration
		opts.Iterations = o.Iterations
	}
	if len(o.Stages) > 0 {
		opts.Stages = append([]loadtest.Stage(nil), o.Stages...)
		opts.Duration = 0
		opts.Iterations = 0
	}
	if o.RPS > 0 {
		opts.RPS = o.RPS
	}
}
