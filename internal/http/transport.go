// Package http issues the requests made by virtual users and measures them.
package http

import (
	"context"
	"fmt"
	"time"
)

// Transport sends requests. Implementations are safe for concurrent use by
// every virtual user of a run.
type Transport interface {
	// Do sends req and always returns a non-nil response. Failures are
	// reported on the response, never as a panic or a nil result.
	Do(ctx context.Context, req *Request) *Response

	// Close releases idle connections.
	Close()
}

// Transport kinds accepted by New.
const (
	KindNetHTTP  = "nethttp"
	KindFastHTTP = "fasthttp"
)

// Config contains transport configuration shared by all implementations.
type Config struct {
	// BaseURL is prepended to relative request URLs
	BaseURL string

	// Timeout for a whole request, including reading the body
	Timeout time.Duration

	// Headers sent with every request unless the request overrides them
	Headers map[string]string

	// UserAgent header value
	UserAgent string

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host (0 = unlimited)
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool
}

// DefaultConfig returns sensible defaults for load testing.
func DefaultConfig() Config {
	return Config{
		Timeout:             60 * time.Second,
		Headers:             make(map[string]string),
		UserAgent:           "surge/1.0",
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
}

// New returns the transport named by kind ("" selects net/http).
func New(kind string, cfg Config) (Transport, error) {
	switch kind {
	case "", KindNetHTTP:
		return NewClient(cfg), nil
	case KindFastHTTP:
		return NewFastClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s or %s)", kind, KindNetHTTP, KindFastHTTP)
	}
}

func (c Config) timeoutFor(req *Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return c.Timeout
}

// headerSize approximates the wire size of a header block.
func headerSize(h map[string][]string) int64 {
	var n int64
	for k, vs := range h {
		for _, v := range vs {
			n += int64(len(k) + len(v) + 4)
		}
	}
	return n + 2
}
