package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Response is the outcome of a request. Transport failures do not produce a
// Go error; they are reported through Error and ErrorCode with StatusCode 0.
type Response struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Proto      string
	Headers    http.Header
	Body       []byte
	Timing     TimingInfo

	BytesSent     int64
	BytesReceived int64

	Error     error
	ErrorCode int
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// JSON looks up a value in a JSON body. Both gjson paths ("data.0.id") and
// simple JSONPath expressions ("$.data[0].id") are accepted.
func (r *Response) JSON(path string) gjson.Result {
	return gjson.GetBytes(r.Body, ToGJSONPath(path))
}

// Header returns the first value of the named header.
func (r *Response) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// Failed reports whether the request never produced a response.
func (r *Response) Failed() bool {
	return r.Error != nil
}

// IsSuccess returns true if the response status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRedirect returns true if the response status code is in the 3xx range
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// IsClientError returns true if the response status code is in the 4xx range
func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// IsServerError returns true if the response status code is in the 5xx range
func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// errorResponse builds the response returned for a failed request.
func errorResponse(req *Request, url string, timing TimingInfo, err error) *Response {
	return &Response{
		Method:    req.Method,
		URL:       url,
		Timing:    timing,
		Error:     err,
		ErrorCode: ClassifyError(err),
	}
}
