package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	surgehttp "github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest/config"
	"github.com/wesleyorama2/surge/internal/loadtest/engine"
	"github.com/wesleyorama2/surge/internal/loadtest/workload"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newCrocodileAPI(zap.NewNop()).routes())
	t.Cleanup(srv.Close)
	return srv
}

// runExample runs an example workload against srv with a small, fixed
// number of iterations.
func runExample(t *testing.T, srv *httptest.Server, file string) *engine.Result {
	t.Helper()
	cfg, err := config.LoadConfig("../../examples/" + file)
	require.NoError(t, err)
	cfg.Settings.BaseURL = srv.URL

	w, err := workload.Compile(cfg)
	require.NoError(t, err)
	config.Overrides{VUs: 2, Iterations: 4}.Apply(&w.Options)

	transport, err := surgehttp.New(cfg.Settings.Transport, cfg.TransportConfig())
	require.NoError(t, err)
	t.Cleanup(transport.Close)

	eng, err := engine.New(w, transport, engine.Config{})
	require.NoError(t, err)
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestCrocodilesExample(t *testing.T) {
	res := runExample(t, newTestServer(t), "crocodiles.yaml")

	assert.Equal(t, engine.StatusSuccess, res.Status, "%+v", res.Thresholds)
	assert.Equal(t, int64(4), res.Iterations.Completed)

	rate, ok := res.CheckPassRate()
	require.True(t, ok)
	assert.Equal(t, 1.0, rate)

	public, ok := res.Metric("http_req_duration{name:PublicCrocs}")
	require.True(t, ok)
	assert.Equal(t, 16.0, public.Values["count"])
}

func TestHealthcheckExample(t *testing.T) {
	res := runExample(t, newTestServer(t), "healthcheck.yaml")

	assert.Equal(t, engine.StatusSuccess, res.Status)
	reqs, ok := res.Metric("http_reqs")
	require.True(t, ok)
	assert.Equal(t, 4.0, reqs.Values["count"])
}

func TestCrocodileAPI_RequiresToken(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/my/crocodiles/", "application/x-www-form-urlencoded", strings.NewReader("name=x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.PostForm(srv.URL+"/user/register/", url.Values{"username": {"a"}, "password": {"b"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.PostForm(srv.URL+"/user/register/", url.Values{"username": {"a"}, "password": {"b"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "duplicate user")

	resp, err = http.PostForm(srv.URL+"/auth/token/login/", url.Values{"username": {"a"}, "password": {"wrong"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
