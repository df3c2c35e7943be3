// Package output renders a run: sample-stream outputs selected with --out,
// the live console progress and the end-of-run summary.
package output

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/loadtest/engine"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
	"github.com/wesleyorama2/surge/internal/logging"
)

// DefaultFlushInterval is how often buffered samples are written.
const DefaultFlushInterval = time.Second

// JSONOutput writes every sample as one JSON object per line.
//
// The first sample of each metric is preceded by a "Metric" line
// describing it:
//
//	{"type":"Metric","metric":"http_reqs","data":{"type":"counter","contains":"default"}}
//	{"type":"Point","metric":"http_reqs","data":{"time":"...","value":1,"tags":{"run_id":"...","status":"200"}}}
//
// A path ending in .gz is gzip compressed; "-" writes to stdout.
type JSONOutput struct {
	path          string
	flushInterval time.Duration
	log           *zap.Logger

	mu      sync.Mutex
	buffer  []metrics.Sample
	seen    map[string]bool
	runID   string
	closer  io.Closer
	gz      *gzip.Writer
	w       *bufio.Writer
	stopCh  chan struct{}
	doneCh  chan struct{}
	written int64
}

// NewJSONOutput returns an output writing to path.
func NewJSONOutput(path string, logger *zap.Logger) *JSONOutput {
	return &JSONOutput{
		path:          path,
		flushInterval: DefaultFlushInterval,
		log:           logging.OrNop(logger).Named("output").With(zap.String("output", "json")),
		seen:          make(map[string]bool),
	}
}

// Description implements engine.Output.
func (o *JSONOutput) Description() string {
	return "json (" + o.path + ")"
}

// Start opens the file and starts the flush loop.
func (o *JSONOutput) Start(info engine.RunInfo) error {
	var dst io.Writer
	if o.path == "-" {
		dst = os.Stdout
	} else {
		f, err := os.Create(o.path)
		if err != nil {
			return fmt.Errorf("failed to create json output: %w", err)
		}
		o.closer = f
		dst = f
	}
	if strings.HasSuffix(o.path, ".gz") {
		o.gz = gzip.NewWriter(dst)
		dst = o.gz
	}

	o.mu.Lock()
	o.w = bufio.NewWriter(dst)
	o.runID = info.RunID
	o.mu.Unlock()

	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	go o.loop()
	o.log.Debug("json output started", zap.String("path", o.path))
	return nil
}

// AddSamples buffers samples until the next flush.
func (o *JSONOutput) AddSamples(samples []metrics.Sample) {
	o.mu.Lock()
	o.buffer = append(o.buffer, samples...)
	o.mu.Unlock()
}

// Stop flushes the remaining samples and closes the file.
func (o *JSONOutput) Stop() error {
	if o.stopCh == nil {
		return nil
	}
	close(o.stopCh)
	<-o.doneCh

	err := o.flush()
	o.mu.Lock()
	defer o.mu.Unlock()
	if ferr := o.w.Flush(); err == nil {
		err = ferr
	}
	if o.gz != nil {
		if gerr := o.gz.Close(); err == nil {
			err = gerr
		}
	}
	if o.closer != nil {
		if cerr := o.closer.Close(); err == nil {
			err = cerr
		}
	}
	o.log.Debug("json output stopped", zap.Int64("samples", o.written))
	return err
}

func (o *JSONOutput) loop() {
	defer close(o.doneCh)
	ticker := time.NewTicker(o.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := o.flush(); err != nil {
				o.log.Warn("failed to write samples", zap.Error(err))
			}
		case <-o.stopCh:
			return
		}
	}
}

type jsonEnvelope struct {
	Type   string      `json:"type"`
	Metric string      `json:"metric"`
	Data   interface{} `json:"data"`
}

type jsonMetric struct {
	Type     metrics.Kind      `json:"type"`
	Contains metrics.ValueType `json:"contains"`
}

type jsonPoint struct {
	Time  time.Time         `json:"time"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags"`
}

func (o *JSONOutput) flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.buffer) == 0 {
		return nil
	}
	samples := o.buffer
	o.buffer = nil

	enc := json.NewEncoder(o.w)
	for _, s := range samples {
		if s.Metric == nil {
			continue
		}
		if !o.seen[s.Metric.Name] {
			o.seen[s.Metric.Name] = true
			if err := enc.Encode(jsonEnvelope{
				Type:   "Metric",
				Metric: s.Metric.Name,
				Data:   jsonMetric{Type: s.Metric.Kind, Contains: s.Metric.Contains},
			}); err != nil {
				return err
			}
		}

		tags := make(map[string]string, len(s.Tags)+1)
		for k, v := range s.Tags {
			tags[k] = v
		}
		if o.runID != "" {
			tags["run_id"] = o.runID
		}
		ts := s.Time
		if ts.IsZero() {
			ts = time.Now()
		}
		if err := enc.Encode(jsonEnvelope{
			Type:   "Point",
			Metric: s.Metric.Name,
			Data:   jsonPoint{Time: ts, Value: s.Value, Tags: tags},
		}); err != nil {
			return err
		}
		o.written++
	}
	return nil
}

var _ engine.Output = (*JSONOutput)(nil)
