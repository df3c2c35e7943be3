package http

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// Client is the net/http transport. It records per-phase timings with
// httptrace.
type Client struct {
	httpClient *http.Client
	config     Config
}

// ClientOption is a function that configures a Config
type ClientOption func(*Config)

// WithBaseURL sets the base URL for the client
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

// WithTimeout sets the timeout for the client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithHeader adds a header to every request
func WithHeader(key, value string) ClientOption {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[key] = value
	}
}

// WithInsecureSkipVerify disables TLS certificate verification
func WithInsecureSkipVerify(skip bool) ClientOption {
	return func(c *Config) {
		c.InsecureSkipVerify = skip
	}
}

// NewClient creates a net/http transport from cfg with options applied.
func NewClient(cfg Config, options ...ClientOption) *Client {
	for _, option := range options {
		option(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // opt-in
	}

	return &Client{
		// The per-request context carries the timeout so that requests
		// can override it.
		httpClient: &http.Client{Transport: transport},
		config:     cfg,
	}
}

// Do implements Transport.
func (c *Client) Do(ctx context.Context, req *Request) *Response {
	timing := TimingInfo{StartTime: time.Now()}

	ctx, cancel := context.WithTimeout(ctx, c.config.timeoutFor(req))
	defer cancel()

	httpReq, body, err := req.Build(ctx, c.config.BaseURL)
	if err != nil {
		resp := errorResponse(req, req.URL, timing, err)
		resp.ErrorCode = ErrCodeInvalidRequest
		return resp
	}
	for key, value := range c.config.Headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}
	if c.config.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	trace := newPhaseTrace(timing.StartTime)
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), trace.clientTrace()))

	sent := int64(len(httpReq.Method)+len(httpReq.URL.RequestURI())+11) + headerSize(httpReq.Header) + int64(len(body))

	httpResp, err := c.httpClient.Do(httpReq)
	timing = trace.finish()
	if err != nil {
		timing.TotalTime = time.Since(timing.StartTime)
		resp := errorResponse(req, httpReq.URL.String(), timing, err)
		resp.BytesSent = sent
		return resp
	}
	defer httpResp.Body.Close()

	transferStart := time.Now()
	respBody, readErr := io.ReadAll(httpResp.Body)
	timing.ContentTransferTime = time.Since(transferStart)
	timing.TotalTime = time.Since(timing.StartTime)

	resp := &Response{
		Method:        httpReq.Method,
		URL:           httpReq.URL.String(),
		StatusCode:    httpResp.StatusCode,
		Status:        httpResp.Status,
		Proto:         httpResp.Proto,
		Headers:       httpResp.Header,
		Body:          respBody,
		Timing:        timing,
		BytesSent:     sent,
		BytesReceived: int64(len(httpResp.Proto)+len(httpResp.Status)+3) + headerSize(httpResp.Header) + int64(len(respBody)),
	}
	if readErr != nil {
		resp.Error = readErr
		resp.ErrorCode = ClassifyError(readErr)
	}
	return resp
}

// Close implements Transport.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

var _ Transport = (*Client)(nil)
