// Package config provides parsing and validation of workload files.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// TestConfig is the root of a workload file.
//
// Example YAML:
//
//	name: "Crocodile API"
//	settings:
//	  baseUrl: "https://test-api.k6.io"
//	options:
//	  stages:
//	    - { target: 50, duration: 25s }
//	    - { target: 50, duration: 5s }
//	  thresholds:
//	    http_req_duration: ["p(95)<500"]
//	default:
//	  - request:
//	      name: PublicCrocs
//	      url: "{{baseUrl}}/public/crocodiles/1/"
//	      checks:
//	        - { type: status, value: "200" }
type TestConfig struct {
	// Name of the test (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the test (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Settings configure the HTTP transport
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Options are the run options (vus, duration, stages, thresholds...)
	Options OptionsConfig `json:"options,omitempty" yaml:"options,omitempty"`

	// Variables are available to every step as {{name}}
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Setup runs once before any VU starts
	Setup *PhaseConfig `json:"setup,omitempty" yaml:"setup,omitempty"`

	// Default is the body of every iteration
	Default []StepConfig `json:"default" yaml:"default"`

	// Teardown runs once after the run
	Teardown *PhaseConfig `json:"teardown,omitempty" yaml:"teardown,omitempty"`
}

// Settings contains the HTTP transport settings.
type Settings struct {
	// BaseURL is prefixed to relative request URLs and available as {{baseUrl}}
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// Timeout is the default request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Headers are sent with every request
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// UserAgent is the default User-Agent header
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// Transport selects the HTTP implementation: "nethttp" or "fasthttp"
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// MaxConnsPerHost limits connections per host (0 = unlimited)
	MaxConnsPerHost int `json:"maxConnsPerHost,omitempty" yaml:"maxConnsPerHost,omitempty"`

	// MaxIdleConnsPerHost limits idle connections per host
	MaxIdleConnsPerHost int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`
}

// OptionsConfig mirrors loadtest.Options with unparsed durations.
type OptionsConfig struct {
	VUs         int           `json:"vus,omitempty" yaml:"vus,omitempty"`
	Duration    string        `json:"duration,omitempty" yaml:"duration,omitempty"`
	Stages      []StageConfig `json:"stages,omitempty" yaml:"stages,omitempty"`
	RampMode    string        `json:"rampMode,omitempty" yaml:"rampMode,omitempty"`
	Iterations  int64         `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	MaxDuration string        `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`

	// Thresholds maps a metric selector such as
	// "http_req_duration{name:PublicCrocs}" to its expressions.
	Thresholds map[string][]string `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	GracefulStop    string `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`
	SetupTimeout    string `json:"setupTimeout,omitempty" yaml:"setupTimeout,omitempty"`
	TeardownTimeout string `json:"teardownTimeout,omitempty" yaml:"teardownTimeout,omitempty"`

	// RPS caps the global request rate (0 = unlimited)
	RPS float64 `json:"rps,omitempty" yaml:"rps,omitempty"`

	// Batch caps the concurrency of a batch step
	Batch int `json:"batch,omitempty" yaml:"batch,omitempty"`

	// Tags are attached to every sample
	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// StageConfig defines a single stage.
type StageConfig struct {
	// Duration of this stage (e.g., "30s", "2m")
	Duration string `json:"duration" yaml:"duration"`

	// Target VU count at the end of the stage
	Target int `json:"target" yaml:"target"`
}

// PhaseConfig is the setup or teardown phase.
type PhaseConfig struct {
	Steps []StepConfig `json:"steps" yaml:"steps"`

	// Returns lists the variables, extracted by the steps, that become the
	// setup data. Ignored for teardown.
	Returns []string `json:"returns,omitempty" yaml:"returns,omitempty"`
}

// StepConfig is one statement of a phase. Exactly one field is set.
type StepConfig struct {
	Request *RequestConfig   `json:"request,omitempty" yaml:"request,omitempty"`
	Batch   *BatchConfig     `json:"batch,omitempty" yaml:"batch,omitempty"`
	Group   *GroupConfig     `json:"group,omitempty" yaml:"group,omitempty"`
	Sleep   string           `json:"sleep,omitempty" yaml:"sleep,omitempty"`
	Fail    string           `json:"fail,omitempty" yaml:"fail,omitempty"`
	Check   *CheckStepConfig `json:"check,omitempty" yaml:"check,omitempty"`
}

// GroupConfig is a named, nestable block of steps.
type GroupConfig struct {
	Name  string       `json:"name" yaml:"name"`
	Steps []StepConfig `json:"steps" yaml:"steps"`
}

// BatchConfig sends its requests in parallel.
type BatchConfig struct {
	Requests []RequestConfig `json:"requests" yaml:"requests"`

	// Checks run against every response of the batch; a check passes only
	// if it passes for all of them.
	Checks      []CheckConfig `json:"checks,omitempty" yaml:"checks,omitempty"`
	AbortOnFail bool          `json:"abortOnFail,omitempty" yaml:"abortOnFail,omitempty"`
}

// CheckStepConfig checks a variable rather than a response.
type CheckStepConfig struct {
	// Var is the variable to check
	Var         string        `json:"var" yaml:"var"`
	Checks      []CheckConfig `json:"checks" yaml:"checks"`
	AbortOnFail bool          `json:"abortOnFail,omitempty" yaml:"abortOnFail,omitempty"`
}

// RequestConfig defines a single HTTP request.
type RequestConfig struct {
	// Name becomes the request's name tag (defaults to the URL)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Method is the HTTP method (GET, POST, PUT, DELETE, etc.)
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// URL is the request URL (supports variable substitution)
	URL string `json:"url" yaml:"url"`

	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty" yaml:"query,omitempty"`

	// Body is sent as is when it is a string and as JSON otherwise.
	Body interface{} `json:"body,omitempty" yaml:"body,omitempty"`

	// Form is sent as application/x-www-form-urlencoded.
	Form map[string]string `json:"form,omitempty" yaml:"form,omitempty"`

	// Tags are merged over the group scope
	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Timeout is request-specific timeout (overrides settings)
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// ExpectedStatuses decide http_req_failed (default: 1xx-3xx)
	ExpectedStatuses []int `json:"expectedStatuses,omitempty" yaml:"expectedStatuses,omitempty"`

	// Extract defines variable extraction from the response
	Extract []ExtractConfig `json:"extract,omitempty" yaml:"extract,omitempty"`

	// Checks validate the response
	Checks []CheckConfig `json:"checks,omitempty" yaml:"checks,omitempty"`

	// AbortOnFail ends the iteration when any check fails
	AbortOnFail bool `json:"abortOnFail,omitempty" yaml:"abortOnFail,omitempty"`
}

// ExtractConfig defines how to extract a variable from a response.
type ExtractConfig struct {
	// Name of the variable to store
	Name string `json:"name" yaml:"name"`

	// Source is where to extract from: "body", "json", "header", "status"
	Source string `json:"source" yaml:"source"`

	// Path is the header name, or a gjson/JSONPath expression for json
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Regex is an optional pattern; the first group (or whole match) is kept
	Regex string `json:"regex,omitempty" yaml:"regex,omitempty"`
}

// CheckConfig defines one named check.
type CheckConfig struct {
	// Name of the check (generated from type and value when empty)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Type is what is checked: "status", "body", "header", "duration",
	// "json", "schema" or "value" (for check steps)
	Type string `json:"type" yaml:"type"`

	// Condition is the comparison: "eq", "ne", "gt", "lt", "gte", "lte",
	// "contains", "matches", "exists" (default "eq", or "contains" for body)
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Value is the expected value
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Path selects a header name or a JSON path
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Schema is a JSON schema document for "schema" checks
	Schema interface{} `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler. Numbers are seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(val * float64(time.Second)))
	case string:
		dur, err := ParseDurationString(val)
		if err != nil {
			return err
		}
		*d = Duration(dur)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
