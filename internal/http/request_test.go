package http

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_ResolveURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		url     string
		query   map[string]string
		want    string
		wantErr bool
	}{
		{"absolute ignores base", "http://base", "https://test-api.k6.io/public/crocodiles/1/", nil, "https://test-api.k6.io/public/crocodiles/1/", false},
		{"relative joins base", "https://test-api.k6.io", "/public/crocodiles/", nil, "https://test-api.k6.io/public/crocodiles/", false},
		{"base with path", "http://api.example.com/v1/", "users", nil, "http://api.example.com/v1/users", false},
		{"query appended", "http://api.example.com", "/search?q=a", map[string]string{"page": "2"}, "http://api.example.com/search?page=2&q=a", false},
		{"relative without base", "", "/x", nil, "", true},
		{"bad url", "", "http://[::1", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("GET", tt.url)
			for k, v := range tt.query {
				req.WithQueryParam(k, v)
			}
			got, err := req.ResolveURL(tt.base)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequest_Build(t *testing.T) {
	req := NewRequest("put", "/items/1").
		WithHeader("Authorization", "Bearer abc").
		WithBody(map[string]int{"age": 3})

	httpReq, body, err := req.Build(context.Background(), "http://localhost:8080")
	require.NoError(t, err)

	assert.Equal(t, "PUT", httpReq.Method)
	assert.Equal(t, "http://localhost:8080/items/1", httpReq.URL.String())
	assert.Equal(t, "Bearer abc", httpReq.Header.Get("Authorization"))
	assert.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"age":3}`, string(body))

	sent, err := io.ReadAll(httpReq.Body)
	require.NoError(t, err)
	assert.Equal(t, body, sent)
}

func TestRequest_StringBodyKeepsContentType(t *testing.T) {
	req := NewRequest("POST", "http://x/").
		WithHeader("Content-Type", "text/plain").
		WithBody("hello")

	httpReq, body, err := req.Build(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", httpReq.Header.Get("Content-Type"))
	assert.Equal(t, "hello", string(body))
}

func TestRequest_NameAndExpected(t *testing.T) {
	req := NewRequest("GET", "https://test-api.k6.io/public/crocodiles/2/")
	assert.Equal(t, "https://test-api.k6.io/public/crocodiles/2/", req.Name())

	req.WithTag("name", "PublicCrocs")
	assert.Equal(t, "PublicCrocs", req.Name())

	assert.True(t, req.IsExpected(200))
	assert.True(t, req.IsExpected(302))
	assert.False(t, req.IsExpected(404))
	assert.False(t, req.IsExpected(0))

	req.ExpectedStatuses = []int{404}
	assert.True(t, req.IsExpected(404))
	assert.False(t, req.IsExpected(200))
}
