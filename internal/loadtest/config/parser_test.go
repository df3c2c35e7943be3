package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest"
)

const crocodilesYAML = `
name: Crocodiles
settings:
  baseUrl: https://test-api.k6.io
  timeout: 10s
  headers:
    Accept: application/json
options:
  stages:
    - { target: 50, duration: 25s }
    - { target: 50, duration: 5s }
    - { target: 0, duration: 10s }
  thresholds:
    http_req_duration: ["p(95)<500"]
    "http_req_duration{name:PublicCrocs}": ["avg<400"]
setup:
  steps:
    - request:
        method: post
        url: "{{baseUrl}}/auth/token/login/"
        body: { username: "{{user}}", password: secret }
        extract:
          - { name: token, source: json, path: access }
  returns: [token]
default:
  - group:
      name: Public crocodiles
      steps:
        - request:
            name: PublicCrocs
            url: "{{baseUrl}}/public/crocodiles/1/"
            checks:
              - { type: status, value: "200" }
  - sleep: 1s
`

func TestParseConfig_YAML(t *testing.T) {
	cfg, err := ParseConfig([]byte(crocodilesYAML), "crocs.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Crocodiles", cfg.Name)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Settings.Timeout))
	assert.Equal(t, "application/json", cfg.Settings.Headers["Accept"])
	require.Len(t, cfg.Options.Stages, 3)
	assert.Equal(t, StageConfig{Duration: "25s", Target: 50}, cfg.Options.Stages[0])
	assert.Equal(t, []string{"avg<400"}, cfg.Options.Thresholds["http_req_duration{name:PublicCrocs}"])

	require.NotNil(t, cfg.Setup)
	assert.Equal(t, []string{"token"}, cfg.Setup.Returns)
	require.Len(t, cfg.Default, 2)
	require.NotNil(t, cfg.Default[0].Group)
	assert.Equal(t, "PublicCrocs", cfg.Default[0].Group.Steps[0].Request.Name)
	assert.Equal(t, "1s", cfg.Default[1].Sleep)
}

func TestParseConfig_JSON(t *testing.T) {
	data := `{
		"name": "json",
		"settings": {"timeout": 2.5},
		"options": {"vus": 3, "duration": "1m"},
		"default": [{"request": {"url": "http://localhost/"}}]
	}`
	cfg, err := ParseConfig([]byte(data), "test.json")
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, time.Duration(cfg.Settings.Timeout))
	assert.Equal(t, 3, cfg.Options.VUs)
	assert.Equal(t, "1m", cfg.Options.Duration)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig([]byte("{not json"), "bad.json")
	assert.Error(t, err)

	_, err = ParseConfig([]byte("name: [unterminated"), "bad.yaml")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crocs.yml")
	require.NoError(t, os.WriteFile(path, []byte(crocodilesYAML), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Crocodiles", cfg.Name)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"30s", 30 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{"500ms", 500 * time.Millisecond, false},
		{"45", 45 * time.Second, false},
		{" 2m ", 2 * time.Minute, false},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDurationString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStages(t *testing.T) {
	stages, err := ParseStages("30s:10, 1m:10,30s:0")
	require.NoError(t, err)
	assert.Equal(t, []loadtest.Stage{
		{Target: 10, Duration: 30 * time.Second},
		{Target: 10, Duration: time.Minute},
		{Target: 0, Duration: 30 * time.Second},
	}, stages)

	stages, err = ParseStages("")
	require.NoError(t, err)
	assert.Nil(t, stages)

	for _, bad := range []string{"30s", "30s:x", "x:10", "30s:-1"} {
		_, err := ParseStages(bad)
		assert.Error(t, err, bad)
	}
}

func TestResolveVariables(t *testing.T) {
	vars := map[string]string{"baseUrl": "http://api", "id": "7", "user.name": "bert"}

	assert.Equal(t, "http://api/crocs/7", ResolveVariables("{{baseUrl}}/crocs/{{ id }}", vars))
	assert.Equal(t, "hi bert", ResolveVariables("hi {{user.name}}", vars))
	assert.Equal(t, "{{missing}}/7", ResolveVariables("{{missing}}/{{id}}", vars))
	assert.Equal(t, "plain", ResolveVariables("plain", vars))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"baseUrl", "id"}, Placeholders("{{baseUrl}}/x/{{ id }}"))
	assert.Empty(t, Placeholders("none"))
}

func TestMergeVariables(t *testing.T) {
	got := MergeVariables(map[string]string{"a": "1", "b": "1"}, nil, map[string]string{"b": "2"})
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}

func TestBaseVariables(t *testing.T) {
	cfg := &TestConfig{
		Settings:  Settings{BaseURL: "http://api"},
		Variables: map[string]string{"user": "bert"},
	}
	vars := cfg.BaseVariables()
	assert.Equal(t, "http://api", vars["baseUrl"])
	assert.Equal(t, "http://api", vars["baseURL"])
	assert.Equal(t, "bert", vars["user"])

	vars["user"] = "ernie"
	assert.Equal(t, "bert", cfg.Variables["user"])
}

func TestApplyDefaults(t *testing.T) {
	cfg := &TestConfig{
		Default: []StepConfig{
			{Request: &RequestConfig{URL: "/a"}},
			{Group: &GroupConfig{Name: "g", Steps: []StepConfig{
				{Batch: &BatchConfig{Requests: []RequestConfig{{Method: "post", URL: "/b"}}}},
			}}},
		},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, http.KindNetHTTP, cfg.Settings.Transport)
	assert.Equal(t, http.DefaultConfig().Timeout, time.Duration(cfg.Settings.Timeout))
	assert.Equal(t, http.DefaultConfig().UserAgent, cfg.Settings.UserAgent)
	assert.Equal(t, "GET", cfg.Default[0].Request.Method)
	assert.Equal(t, "POST", cfg.Default[1].Group.Steps[0].Batch.Requests[0].Method)
}

func TestToOptions(t *testing.T) {
	cfg, err := ParseConfig([]byte(crocodilesYAML), "")
	require.NoError(t, err)
	cfg.Options.GracefulStop = "5s"
	cfg.Options.Tags = map[string]string{"env": "staging"}

	opts, err := cfg.ToOptions()
	require.NoError(t, err)
	assert.Equal(t, []loadtest.Stage{
		{Target: 50, Duration: 25 * time.Second},
		{Target: 50, Duration: 5 * time.Second},
		{Target: 0, Duration: 10 * time.Second},
	}, opts.Stages)
	assert.Equal(t, 5*time.Second, opts.GracefulStop)
	assert.Equal(t, "staging", opts.Tags["env"])
	assert.Len(t, opts.Thresholds, 2)

	cfg.Options.SetupTimeout = "later"
	_, err = cfg.ToOptions()
	assert.ErrorContains(t, err, "options.setupTimeout")
}

func TestTransportConfig(t *testing.T) {
	cfg := &TestConfig{Settings: Settings{
		BaseURL:             "http://api",
		Headers:             map[string]string{"X-Env": "test"},
		InsecureSkipVerify:  true,
		MaxIdleConnsPerHost: 7,
	}}
	tc := cfg.TransportConfig()
	assert.Equal(t, "http://api", tc.BaseURL)
	assert.Equal(t, http.DefaultConfig().Timeout, tc.Timeout)
	assert.Equal(t, "test", tc.Headers["X-Env"])
	assert.True(t, tc.InsecureSkipVerify)
	assert.Equal(t, 7, tc.MaxIdleConnsPerHost)
}

func TestOverrides(t *testing.T) {
	base := func() loadtest.Options {
		return loadtest.Options{
			VUs:        2,
			Stages:     []loadtest.Stage{{Target: 5, Duration: time.Second}},
			Iterations: 0,
		}
	}

	t.Run("duration replaces stages", func(t *testing.T) {
		opts := base()
		Overrides{VUs: 10, Duration: time.Minute}.Apply(&opts)
		assert.Equal(t, 10, opts.VUs)
		assert.Equal(t, time.Minute, opts.Duration)
		assert.Nil(t, opts.Stages)
	})

	t.Run("stages replace duration and iterations", func(t *testing.T) {
		opts := loadtest.Options{Duration: time.Minute, Iterations: 4}
		Overrides{Stages: []loadtest.Stage{{Target: 1, Duration: time.Second}}}.Apply(&opts)
		assert.Zero(t, opts.Duration)
		assert.Zero(t, opts.Iterations)
		assert.Len(t, opts.Stages, 1)
	})

	t.Run("zero values keep the file", func(t *testing.T) {
		opts := base()
		Overrides{}.Apply(&opts)
		assert.Equal(t, base(), opts)
	})

	t.Run("rps", func(t *testing.T) {
		opts := base()
		Overrides{RPS: 50}.Apply(&opts)
		assert.Equal(t, 50.0, opts.RPS)
	})
}
