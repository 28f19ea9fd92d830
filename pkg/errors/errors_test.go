package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{429, ErrorTypeRateLimit},
		{403, ErrorTypeRateLimit},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{404, ErrorTypeFatal},
		{400, ErrorTypeFatal},
		{401, ErrorTypeAuth},
	}

	for _, tt := range tests {
		err := FromStatusCode(tt.code, "status")
		assert.Equal(t, tt.want, err.Type, "status %d", tt.code)
		assert.Equal(t, tt.code, err.Code)
	}
}

func TestClassification(t *testing.T) {
	wrapped := fmt.Errorf("searching pexels: %w", FromStatusCode(429, "throttled"))

	assert.True(t, IsRateLimit(wrapped))
	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsFatal(wrapped))

	loop := New(ErrorTypeRedirectLoop, "too many redirects")
	assert.True(t, IsFatal(loop))
	assert.False(t, IsTransient(loop))

	auth := FromStatusCode(401, "bad key")
	assert.True(t, IsFatal(auth))
	assert.False(t, IsRetryable(auth.Type))

	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
	assert.False(t, IsTransient(nil))
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrorTypeNetwork, "GET https://example.org", cause)

	assert.Equal(t, "network error: GET https://example.org: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	coded := FromStatusCode(503, "upstream")
	assert.Equal(t, "server_error error (code 503): upstream", coded.Error())
}

func TestIsRetryableStatusCode(t *testing.T) {
	for _, code := range []int{0, 403, 429, 500, 502, 599} {
		assert.True(t, IsRetryableStatusCode(code), "%d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 404} {
		assert.False(t, IsRetryableStatusCode(code), "%d", code)
	}
}
