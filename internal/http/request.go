package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes one HTTP call issued by a virtual user.
type Request struct {
	Method      string
	URL         string
	QueryParams url.Values
	Headers     map[string]string
	Body        interface{}

	// Tags are attached to every metric sample produced by the request.
	// The "name" tag groups requests with dynamic URLs under one label.
	Tags map[string]string

	// Timeout overrides the transport timeout when > 0.
	Timeout time.Duration

	// ExpectedStatuses lists the statuses that count as success. When empty,
	// any status below 400 is a success.
	ExpectedStatuses []int
}

// NewRequest creates a new HTTP request
func NewRequest(method, rawURL string) *Request {
	return &Request{
		Method:      strings.ToUpper(method),
		URL:         rawURL,
		QueryParams: make(url.Values),
		Headers:     make(map[string]string),
		Tags:        make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

// WithQueryParam adds a query parameter to the request
func (r *Request) WithQueryParam(key, value string) *Request {
	if r.QueryParams == nil {
		r.QueryParams = make(url.Values)
	}
	r.QueryParams.Add(key, value)
	return r
}

// WithBody sets the body of the request
func (r *Request) WithBody(body interface{}) *Request {
	r.Body = body
	return r
}

// WithTag sets a metric tag on the request
func (r *Request) WithTag(key, value string) *Request {
	if r.Tags == nil {
		r.Tags = make(map[string]string)
	}
	r.Tags[key] = value
	return r
}

// Name returns the "name" tag, falling back to the request URL.
func (r *Request) Name() string {
	if n := r.Tags["name"]; n != "" {
		return n
	}
	return r.URL
}

// IsExpected reports whether status counts as a successful outcome.
func (r *Request) IsExpected(status int) bool {
	if len(r.ExpectedStatuses) == 0 {
		return status > 0 && status < 400
	}
	for _, s := range r.ExpectedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ResolveURL joins the request URL with baseURL when the request URL is
// relative, and appends query parameters.
func (r *Request) ResolveURL(baseURL string) (string, error) {
	target, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", r.URL, err)
	}

	if !target.IsAbs() {
		if baseURL == "" {
			return "", fmt.Errorf("relative url %q without a base url", r.URL)
		}
		base, err := url.Parse(baseURL)
		if err != nil {
			return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
		}
		joined := *base
		if base.Path == "" {
			joined.Path = "/" + strings.TrimLeft(target.Path, "/")
		} else {
			joined.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(target.Path, "/")
		}
		joined.RawQuery = target.RawQuery
		target = &joined
	}

	if len(r.QueryParams) > 0 {
		query := target.Query()
		for key, values := range r.QueryParams {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		target.RawQuery = query.Encode()
	}
	return target.String(), nil
}

// Payload encodes the body. Strings and byte slices are sent as-is; any
// other value is JSON encoded and contentType is set accordingly.
func (r *Request) Payload() (body []byte, contentType string, err error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(b), "", nil
	case []byte:
		return b, "", nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", err
		}
		return data, "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return data, "application/json", nil
	}
}

// Build constructs a net/http request.
func (r *Request) Build(ctx context.Context, baseURL string) (*http.Request, []byte, error) {
	target, err := r.ResolveURL(baseURL)
	if err != nil {
		return nil, nil, err
	}
	body, contentType, err := r.Payload()
	if err != nil {
		return nil, nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	return req, body, nil
}
