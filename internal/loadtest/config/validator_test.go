package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *TestConfig {
	return &TestConfig{
		Name:     "valid",
		Settings: Settings{BaseURL: "http://localhost:8080"},
		Options:  OptionsConfig{VUs: 2, Duration: "10s"},
		Default: []StepConfig{
			{Request: &RequestConfig{
				Method: "GET",
				URL:    "{{baseUrl}}/crocs/{{id}}",
				Checks: []CheckConfig{{Type: "status", Value: "200"}},
			}},
		},
	}
}

func validationMessages(t *testing.T, err error) []string {
	t.Helper()
	var verrs *ValidationErrors
	require.True(t, errors.As(err, &verrs), "want *ValidationErrors, got %T", err)
	var out []string
	for _, e := range verrs.Errors {
		out = append(out, e.Error())
	}
	return out
}

func TestValidate_MinimalValid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_NoDefault(t *testing.T) {
	cfg := validConfig()
	cfg.Default = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one step")
}

func TestValidate_Steps(t *testing.T) {
	tests := []struct {
		name   string
		step   StepConfig
		errMsg string
	}{
		{"empty step", StepConfig{}, "exactly one of"},
		{"two fields", StepConfig{Sleep: "1s", Fail: "boom"}, "exactly one of"},
		{"bad sleep", StepConfig{Sleep: "a while"}, "invalid duration"},
		{"group without name", StepConfig{Group: &GroupConfig{Steps: []StepConfig{{Sleep: "1s"}}}}, "name is required"},
		{"group name with separator", StepConfig{Group: &GroupConfig{Name: "a::b"}}, "must not contain"},
		{"nested bad step", StepConfig{Group: &GroupConfig{Name: "g", Steps: []StepConfig{{}}}}, "default[1].group.steps[0]"},
		{"empty batch", StepConfig{Batch: &BatchConfig{}}, "at least one request"},
		{"check without var", StepConfig{Check: &CheckStepConfig{Checks: []CheckConfig{{Type: "value"}}}}, "var is required"},
		{"bad method", StepConfig{Request: &RequestConfig{Method: "FETCH", URL: "/"}}, "invalid HTTP method"},
		{"missing url", StepConfig{Request: &RequestConfig{Method: "GET"}}, "url is required"},
		{"bad timeout", StepConfig{Request: &RequestConfig{URL: "/", Timeout: "x"}}, "invalid timeout"},
		{"body and form", StepConfig{Request: &RequestConfig{URL: "/", Body: "x", Form: map[string]string{"a": "b"}}}, "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Default = append(cfg.Default, tt.step)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_Checks(t *testing.T) {
	tests := []struct {
		name   string
		check  CheckConfig
		errMsg string
	}{
		{"missing type", CheckConfig{Value: "200"}, "type is required"},
		{"unknown type", CheckConfig{Type: "latency"}, "invalid check type"},
		{"unknown condition", CheckConfig{Type: "status", Condition: "approx"}, "invalid condition"},
		{"bad regex", CheckConfig{Type: "body", Condition: "matches", Value: "("}, "invalid regex"},
		{"header without path", CheckConfig{Type: "header", Value: "x"}, "path is required"},
		{"json without path", CheckConfig{Type: "json", Value: "x"}, "path is required"},
		{"schema without schema", CheckConfig{Type: "schema"}, "schema is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Default[0].Request.Checks = []CheckConfig{tt.check}
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_Extract(t *testing.T) {
	tests := []struct {
		name   string
		ex     ExtractConfig
		errMsg string
	}{
		{"missing name", ExtractConfig{Source: "status"}, "name is required"},
		{"missing source", ExtractConfig{Name: "x"}, "source is required"},
		{"bad source", ExtractConfig{Name: "x", Source: "cookie"}, "invalid source"},
		{"json without path", ExtractConfig{Name: "x", Source: "json"}, "path is required"},
		{"bad regex", ExtractConfig{Name: "x", Source: "body", Regex: "[a"}, "invalid regex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Default[0].Request.Extract = []ExtractConfig{tt.ex}
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_Options(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TestConfig)
		errMsg string
	}{
		{"bad duration", func(c *TestConfig) { c.Options.Duration = "forever" }, "options.duration"},
		{"negative vus", func(c *TestConfig) { c.Options.VUs = -1 }, "vus must be >= 0"},
		{"stage without duration", func(c *TestConfig) {
			c.Options.Stages = []StageConfig{{Target: 3}}
		}, "duration is required"},
		{"ramp mode", func(c *TestConfig) { c.Options.RampMode = "exponential" }, "unknown ramp mode"},
		{"iterations with stages", func(c *TestConfig) {
			c.Options.Iterations = 3
			c.Options.Stages = []StageConfig{{Target: 1, Duration: "1s"}}
		}, "cannot be combined"},
		{"bad threshold", func(c *TestConfig) {
			c.Options.Thresholds = map[string][]string{"http_req_duration": {"p95 < 200"}}
		}, "options.thresholds.http_req_duration[0]"},
		{"bad selector", func(c *TestConfig) {
			c.Options.Thresholds = map[string][]string{"http_req_duration{name": {"avg<1"}}
		}, "options.thresholds"},
		{"transport", func(c *TestConfig) { c.Settings.Transport = "curl" }, "unknown transport"},
		{"base url", func(c *TestConfig) { c.Settings.BaseURL = "localhost" }, "settings.baseUrl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_SetupReturns(t *testing.T) {
	cfg := validConfig()
	cfg.Setup = &PhaseConfig{
		Steps: []StepConfig{{Request: &RequestConfig{
			Method:  "POST",
			URL:     "/login",
			Extract: []ExtractConfig{{Name: "token", Source: "json", Path: "access"}},
		}}},
		Returns: []string{"token"},
	}
	require.NoError(t, cfg.Validate())

	cfg.Setup.Returns = append(cfg.Setup.Returns, "session")
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"session" is never extracted`)
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Settings.Transport = "curl"
	cfg.Default = append(cfg.Default, StepConfig{}, StepConfig{Sleep: "x"})

	msgs := validationMessages(t, cfg.Validate())
	assert.Len(t, msgs, 3)
	assert.Contains(t, cfg.Validate().Error(), "3 validation errors")
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "validation error on field 'a': b", (&ValidationError{Field: "a", Message: "b"}).Error())
	assert.Equal(t, "validation error: b", (&ValidationError{Message: "b"}).Error())
	assert.Equal(t, "no validation errors", (&ValidationErrors{}).Error())
}
