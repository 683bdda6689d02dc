package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialLimiterIsPerEndpoint(t *testing.T) {
	r := chi.NewRouter()
	r.Use(CredentialLimiter(2))
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	r.Post("/login", ok)
	r.Post("/register", ok)

	hit := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "198.51.100.7:1234"
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, hit("/login"))
	require.Equal(t, http.StatusOK, hit("/login"))
	assert.Equal(t, http.StatusTooManyRequests, hit("/login"))
	assert.Equal(t, http.StatusOK, hit("/register"))
}

func TestStackSetsSecurityHeaders(t *testing.T) {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	stack := MiddlewareStack(MiddlewareConfig{Config: &Config{AppEnv: "test"}})
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
}
