package engine

import (
	"time"

	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// RunInfo describes a run to its outputs.
type RunInfo struct {
	RunID     string
	Name      string
	StartTime time.Time
	Options   loadtest.Options
}

// Output receives the sample stream of a run.
//
// AddSamples is called from VU goroutines and must not block for long;
// implementations buffer and flush on their own goroutine.
type Output interface {
	Description() string
	Start(info RunInfo) error
	AddSamples(samples []metrics.Sample)
	Stop() error
}
