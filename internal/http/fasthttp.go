package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// FastClient is the fasthttp transport. It trades the per-phase timing
// breakdown for lower allocation overhead at high request rates; only the
// total time and the time to the end of the response are recorded.
type FastClient struct {
	client *fasthttp.Client
	config Config
}

// NewFastClient creates a fasthttp transport from cfg.
func NewFastClient(cfg Config, options ...ClientOption) *FastClient {
	for _, option := range options {
		option(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	client := &fasthttp.Client{
		MaxIdleConnDuration:      cfg.IdleConnTimeout,
		TLSConfig:                &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // opt-in
		DisablePathNormalizing:   true,
		NoDefaultUserAgentHeader: cfg.UserAgent != "",
	}
	if cfg.MaxConnsPerHost > 0 {
		client.MaxConnsPerHost = cfg.MaxConnsPerHost
	}
	return &FastClient{client: client, config: cfg}
}

// Do implements Transport. The request runs on its own goroutine so that a
// cancelled context returns immediately; the pooled request and response
// objects are released once fasthttp is done with them.
func (c *FastClient) Do(ctx context.Context, req *Request) *Response {
	timing := TimingInfo{StartTime: time.Now()}

	target, err := req.ResolveURL(c.config.BaseURL)
	if err != nil {
		resp := errorResponse(req, req.URL, timing, err)
		resp.ErrorCode = ErrCodeInvalidRequest
		return resp
	}
	body, contentType, err := req.Payload()
	if err != nil {
		resp := errorResponse(req, target, timing, err)
		resp.ErrorCode = ErrCodeInvalidRequest
		return resp
	}

	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()

	method := req.Method
	if method == "" {
		method = fasthttp.MethodGet
	}
	freq.SetRequestURI(target)
	freq.Header.SetMethod(method)
	if c.config.UserAgent != "" {
		freq.Header.SetUserAgent(c.config.UserAgent)
	}
	for key, value := range c.config.Headers {
		freq.Header.Set(key, value)
	}
	if contentType != "" {
		freq.Header.SetContentType(contentType)
	}
	for key, value := range req.Headers {
		freq.Header.Set(key, value)
	}
	if body != nil {
		freq.SetBody(body)
	}

	deadline := time.Now().Add(c.config.timeoutFor(req))
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer fasthttp.ReleaseRequest(freq)
		defer fasthttp.ReleaseResponse(fresp)

		if err := c.client.DoDeadline(freq, fresp, deadline); err != nil {
			done <- result{err: err}
			return
		}

		// fresp buffers are reused after release.
		respBody := append([]byte(nil), fresp.Body()...)
		headers := make(http.Header)
		fresp.Header.VisitAll(func(key, value []byte) {
			headers.Add(string(key), string(value))
		})
		status := fresp.StatusCode()
		done <- result{resp: &Response{
			StatusCode:    status,
			Status:        fmt.Sprintf("%d %s", status, fasthttp.StatusMessage(status)),
			Proto:         "HTTP/1.1",
			Headers:       headers,
			Body:          respBody,
			BytesSent:     int64(len(freq.Header.Header()) + len(freq.Body())),
			BytesReceived: int64(len(fresp.Header.Header()) + len(respBody)),
		}}
	}()

	select {
	case <-ctx.Done():
		timing.TotalTime = time.Since(timing.StartTime)
		return errorResponse(req, target, timing, ctx.Err())
	case r := <-done:
		timing.TotalTime = time.Since(timing.StartTime)
		if r.err != nil {
			return errorResponse(req, target, timing, r.err)
		}
		timing.TimeToFirstByte = timing.TotalTime
		resp := r.resp
		resp.Method = method
		resp.URL = target
		resp.Timing = timing
		return resp
	}
}

// Close implements Transport.
func (c *FastClient) Close() {
	c.client.CloseIdleConnections()
}

var _ Transport = (*FastClient)(nil)
