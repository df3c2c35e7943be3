package loadtest

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	surgehttp "github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// stubTransport answers every request with the response built by fn.
type stubTransport struct {
	fn    func(req *surgehttp.Request) *surgehttp.Response
	calls atomic.Int64
}

func (s *stubTransport) Do(ctx context.Context, req *surgehttp.Request) *surgehttp.Response {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return &surgehttp.Response{Method: req.Method, URL: req.URL, Error: err, ErrorCode: surgehttp.ClassifyError(err)}
	}
	resp := s.fn(req)
	if resp.Method == "" {
		resp.Method = req.Method
	}
	if resp.URL == "" {
		resp.URL = req.URL
	}
	return resp
}

func (s *stubTransport) Close() {}

func okTransport() *stubTransport {
	return &stubTransport{fn: func(*surgehttp.Request) *surgehttp.Response {
		return &surgehttp.Response{
			StatusCode: http.StatusOK,
			Body:       []byte("OK"),
			Timing:     surgehttp.TimingInfo{TotalTime: 5 * time.Millisecond},
		}
	}}
}

func newTestRuntime(t *testing.T, tr surgehttp.Transport, opts Options) *Runtime {
	t.Helper()
	opts.ApplyDefaults()
	return NewRuntime(metrics.NewRegistry(), tr, opts, nil)
}

func counterValue(rt *Runtime, name string) float64 {
	m := rt.Registry.Get(name)
	if m == nil {
		return 0
	}
	v, _ := m.Sink().Aggregate(metrics.Aggregation{Method: "count"}, time.Second)
	return v
}

// recorder captures every sample pushed to a registry.
type recorder struct {
	samples []metrics.Sample
}

func (r *recorder) listen(reg *metrics.Registry) {
	reg.Subscribe(func(s []metrics.Sample) { r.samples = append(r.samples, s...) })
}

func (r *recorder) named(name string) []metrics.Sample {
	var out []metrics.Sample
	for _, s := range r.samples {
		if s.Metric.Name == name {
			out = append(out, s)
		}
	}
	return out
}
