package util

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithSecurityHeaders(t *testing.T) {
	h := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	plain := httptest.NewRecorder()
	h.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/api/orders/abc", nil))
	assert.Equal(t, "no-store", plain.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", plain.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", plain.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", plain.Header().Get("Referrer-Policy"))
	assert.Contains(t, plain.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, plain.Header().Get("Strict-Transport-Security"))

	forwarded := httptest.NewRequest(http.MethodGet, "/api/orders/abc", nil)
	forwarded.Header.Set("X-Forwarded-Proto", "HTTPS")
	secure := httptest.NewRecorder()
	h.ServeHTTP(secure, forwarded)
	assert.NotEmpty(t, secure.Header().Get("Strict-Transport-Security"))
}
