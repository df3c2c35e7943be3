package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponse_JSON(t *testing.T) {
	resp := &Response{Body: []byte(`{"access":"tok","data":[{"id":7,"age":3}]}`)}

	assert.Equal(t, "tok", resp.JSON("access").String())
	assert.Equal(t, int64(7), resp.JSON("$.data[0].id").Int())
	assert.Equal(t, int64(3), resp.JSON("data.0.age").Int())
	assert.False(t, resp.JSON("missing").Exists())

	var v struct{ Access string }
	assert.NoError(t, resp.DecodeJSON(&v))
	assert.Equal(t, "tok", v.Access)

	assert.Error(t, (&Response{}).DecodeJSON(&v))
}

func TestResponse_StatusMethods(t *testing.T) {
	tests := []struct {
		code                                    int
		success, redirect, clientErr, serverErr bool
	}{
		{200, true, false, false, false},
		{301, false, true, false, false},
		{404, false, false, true, false},
		{503, false, false, false, true},
		{0, false, false, false, false},
	}
	for _, tt := range tests {
		r := &Response{StatusCode: tt.code}
		assert.Equal(t, tt.success, r.IsSuccess(), tt.code)
		assert.Equal(t, tt.redirect, r.IsRedirect(), tt.code)
		assert.Equal(t, tt.clientErr, r.IsClientError(), tt.code)
		assert.Equal(t, tt.serverErr, r.IsServerError(), tt.code)
	}
}

func TestResponse_Header(t *testing.T) {
	r := &Response{Headers: http.Header{"Content-Type": {"application/json"}}}
	assert.Equal(t, "application/json", r.Header("content-type"))
	assert.Equal(t, "", (&Response{}).Header("X"))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"canceled", context.Canceled, ErrCodeCanceled},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "x"}, ErrCodeDNS},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrCodeConnectionRefused},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, ErrCodeConnectionReset},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("boom")}, ErrCodeDial},
		{"other", errors.New("boom"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestToGJSONPath(t *testing.T) {
	tests := map[string]string{
		"$":                "@this",
		"$.users[0].name":  "users.0.name",
		"$['name']":        "name",
		`$["a"]["b"]`:      "a.b",
		"$[1].id":          "1.id",
		"data.items.#.id":  "data.items.#.id",
		"$.store.book[10]": "store.book.10",
	}
	for in, want := range tests {
		assert.Equal(t, want, ToGJSONPath(in), in)
	}
}
