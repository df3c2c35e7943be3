package loadtest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/loadtest/metrics"
)

// Request sends req and records its metrics. It never returns nil and never
// fails: transport errors are reported on the response so checks can
// inspect them.
func (vu *VU) Request(ctx context.Context, req *http.Request) *http.Response {
	return vu.send(ctx, req, vu.tags)
}

// Get is shorthand for a GET request with optional tags.
func (vu *VU) Get(ctx context.Context, url string, tags ...metrics.TagSet) *http.Response {
	req := http.NewRequest("GET", url)
	for _, t := range tags {
		for k, v := range t {
			req.WithTag(k, v)
		}
	}
	return vu.Request(ctx, req)
}

// Batch sends every request concurrently and waits for all of them. The
// responses are in the order of reqs. A failing request does not cancel
// the others. At most the configured batch size run at once.
func (vu *VU) Batch(ctx context.Context, reqs []*http.Request) []*http.Response {
	responses := make([]*http.Response, len(reqs))
	if len(reqs) == 0 {
		return responses
	}

	// Snapshot the scope: the VU goroutine is blocked here, but the tag
	// set must not be read concurrently with a later mutation.
	scope := vu.tags
	sem := make(chan struct{}, vu.rt.batchSize)
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, req *http.Request) {
			defer wg.Done()
			defer func() { <-sem }()
			responses[i] = vu.send(ctx, req, scope)
		}(i, req)
	}
	wg.Wait()
	return responses
}

func (vu *VU) send(ctx context.Context, req *http.Request, scope metrics.TagSet) *http.Response {
	if limiter := vu.rt.limiter; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return &http.Response{
				Method:    req.Method,
				URL:       req.URL,
				Error:     err,
				ErrorCode: http.ClassifyError(err),
			}
		}
	}

	resp := vu.rt.Transport.Do(ctx, req)

	// A response cut short by a forced interrupt belongs to an iteration
	// that is discarded, so it is not measured.
	if vu.ctx.Err() != nil {
		return resp
	}

	tags := scope.Merge(metrics.TagSet{
		"method": resp.Method,
		"url":    req.URL,
		"name":   req.Name(),
		"status": strconv.Itoa(resp.StatusCode),
	}).Merge(req.Tags)
	if resp.ErrorCode != 0 {
		tags["error_code"] = strconv.Itoa(resp.ErrorCode)
	}
	if resp.Method == "" {
		tags["method"] = req.Method
	}

	failed := 0.0
	if resp.Error != nil || !req.IsExpected(resp.StatusCode) {
		failed = 1
	}

	b := vu.rt.Metrics
	now := time.Now()
	timing := resp.Timing
	vu.rt.Registry.Push(
		metrics.Sample{Metric: b.HTTPReqs, Value: 1, Tags: tags, Time: now},
		metrics.Sample{Metric: b.HTTPReqDuration, Value: http.Millis(timing.TotalTime), Tags: tags, Time: now},
		metrics.Sample{Metric: b.HTTPReqWaiting, Value: http.Millis(timing.TimeToFirstByte), Tags: tags, Time: now},
		metrics.Sample{Metric: b.HTTPReqConnecting, Value: http.Millis(timing.TCPConnectTime), Tags: tags, Time: now},
		metrics.Sample{Metric: b.HTTPReqTLSHandshaking, Value: http.Millis(timing.TLSHandshakeTime), Tags: tags, Time: now},
		metrics.Sample{Metric: b.HTTPReqReceiving, Value: http.Millis(timing.ContentTransferTime), Tags: tags, Time: now},
		metrics.Sample{Metric: b.HTTPReqFailed, Value: failed, Tags: tags, Time: now},
		metrics.Sample{Metric: b.DataSent, Value: float64(resp.BytesSent), Tags: tags, Time: now},
		metrics.Sample{Metric: b.DataReceived, Value: float64(resp.BytesReceived), Tags: tags, Time: now},
	)
	return resp
}
