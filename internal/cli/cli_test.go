package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const healthWorkload = `
name: health
settings:
  baseUrl: %s
options:
  vus: 1
  iterations: 3
  thresholds:
    checks: ["rate==1"]
    http_reqs: ["%s"]
default:
  - request:
      name: Health
      url: /health
      checks:
        - { name: status is 200, type: status, value: "200" }
        - { name: body ok, type: body, value: "ok" }
`

const setupFailWorkload = `
name: broken setup
settings:
  baseUrl: %s
options:
  vus: 1
  iterations: 1
setup:
  steps:
    - request:
        url: /missing
        checks:
          - { name: found, type: status, value: "200" }
        abortOnFail: true
default:
  - request:
      url: /health
`

type healthServer struct {
	hits atomic.Int64
	srv  *httptest.Server
}

func newHealthServer(t *testing.T) *healthServer {
	t.Helper()
	h := &healthServer{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		h.hits.Add(1)
		fmt.Fprint(w, "ok")
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func writeWorkload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = Execute(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := execute("version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "surge "+version+"\n", out)
}

func TestValidate(t *testing.T) {
	path := writeWorkload(t, fmt.Sprintf(healthWorkload, "http://localhost", "count>0"))
	code, out, _ := execute("validate", path)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "✓ health is valid")
	assert.Contains(t, out, "executor:   shared-iterations")
	assert.Contains(t, out, "thresholds: 2 metric(s)")
}

func TestValidate_Invalid(t *testing.T) {
	path := writeWorkload(t, `
options:
  vus: 1
  duration: 1s
default:
  - request:
      method: FETCH
`)
	code, _, errOut := execute("validate", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "validation error")
}

func TestValidate_MissingArg(t *testing.T) {
	code, _, errOut := execute("validate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "accepts 1 arg")
}

func TestRun_Passes(t *testing.T) {
	h := newHealthServer(t)
	path := writeWorkload(t, fmt.Sprintf(healthWorkload, h.srv.URL, "count==3"))
	dir := t.TempDir()
	summary := filepath.Join(dir, "summary.json")
	samples := filepath.Join(dir, "samples.json")

	code, out, errOut := execute("run", "--no-color", "--summary-export", summary, "--out", "json="+samples, path)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, int64(3), h.hits.Load())
	assert.Contains(t, out, "health - Running [shared-iterations]")
	assert.Contains(t, out, "health - Completed ✓")
	assert.Contains(t, out, "✓ status is 200")
	assert.Contains(t, out, "exit code 0")

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, true, res["passed"])
	assert.Equal(t, "success", res["status"])

	lines, err := os.ReadFile(samples)
	require.NoError(t, err)
	assert.Contains(t, string(lines), `"metric":"http_reqs"`)
}

func TestRun_Quiet(t *testing.T) {
	h := newHealthServer(t)
	path := writeWorkload(t, fmt.Sprintf(healthWorkload, h.srv.URL, "count==3"))
	code, out, _ := execute("run", "-q", path)
	assert.Equal(t, 0, code)
	assert.Equal(t, "PASSED\n", out)
}

func TestRun_ThresholdsFail(t *testing.T) {
	h := newHealthServer(t)
	path := writeWorkload(t, fmt.Sprintf(healthWorkload, h.srv.URL, "count<1"))
	code, out, _ := execute("run", "-q", path)
	assert.Equal(t, 99, code)
	assert.True(t, strings.HasPrefix(out, "FAILED"), out)
}

func TestRun_SetupFails(t *testing.T) {
	h := newHealthServer(t)
	path := writeWorkload(t, fmt.Sprintf(setupFailWorkload, h.srv.URL))
	code, _, _ := execute("run", "-q", path)
	assert.Equal(t, 107, code)
	assert.Zero(t, h.hits.Load(), "no iteration may run after setup failed")
}

func TestRun_Overrides(t *testing.T) {
	h := newHealthServer(t)
	path := writeWorkload(t, fmt.Sprintf(healthWorkload, h.srv.URL, "count==5"))
	code, _, errOut := execute("run", "-q", "--vus", "2", "--iterations", "5", "--transport", "fasthttp", path)
	assert.Equal(t, 0, code, errOut)
	assert.Equal(t, int64(5), h.hits.Load())
}

func TestRun_BadFlags(t *testing.T) {
	h := newHealthServer(t)
	path := writeWorkload(t, fmt.Sprintf(healthWorkload, h.srv.URL, "count>0"))

	code, _, errOut := execute("run", "--stages", "30s", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid --stages")

	code, _, errOut = execute("run", "--out", "statsd", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown output")

	code, _, errOut = execute("run", "--log-level", "loud", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown log level")

	assert.Zero(t, h.hits.Load())
}

func TestRun_MissingFile(t *testing.T) {
	code, _, errOut := execute("run", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, errOut)
}

func TestRunFlags_Overrides(t *testing.T) {
	f := &runFlags{vus: 3, duration: "90", stages: "", rps: 10}
	o, err := f.overrides()
	require.NoError(t, err)
	assert.Equal(t, 3, o.VUs)
	assert.Equal(t, 90*time.Second, o.Duration)
	assert.Equal(t, 10.0, o.RPS)

	f = &runFlags{stages: "10s:5,20s:0"}
	o, err = f.overrides()
	require.NoError(t, err)
	require.Len(t, o.Stages, 2)
	assert.Equal(t, 5, o.Stages[0].Target)
}
