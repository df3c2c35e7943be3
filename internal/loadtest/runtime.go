package loadtest

import (
	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
	"github.com/wesleyorama2/surge/internal/logging"
)

// Runtime is the state shared by every VU of a run.
type Runtime struct {
	Registry  *metrics.Registry
	Metrics   *metrics.BuiltinMetrics
	Transport http.Transport
	Checks    *CheckTally
	Logger    *zap.Logger

	// Tags are the run-level tags, the outermost tag scope.
	Tags metrics.TagSet

	batchSize int
	limiter   *RateLimiter
}

// NewRuntime wires the shared state for a run. opts must already have
// defaults applied.
func NewRuntime(reg *metrics.Registry, transport http.Transport, opts Options, logger *zap.Logger) *Runtime {
	rt := &Runtime{
		Registry:  reg,
		Metrics:   metrics.RegisterBuiltins(reg),
		Transport: transport,
		Checks:    NewCheckTally(),
		Logger:    logging.OrNop(logger),
		Tags:      opts.Tags.Clone(),
		batchSize: opts.Batch,
	}
	if rt.batchSize <= 0 {
		rt.batchSize = DefaultBatch
	}
	if opts.RPS > 0 {
		rt.limiter = NewRateLimiter(opts.RPS)
	}
	return rt
}

// Limiter returns the request rate limiter, or nil when requests are not
// rate limited.
func (rt *Runtime) Limiter() *RateLimiter {
	return rt.limiter
}
