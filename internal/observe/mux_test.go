package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimMethod(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected string
	}{
		{"GET with path", "GET /api/v1/admin/cache/stats", "/api/v1/admin/cache/stats"},
		{"POST with wildcard", "POST /api/v1/admin/cache/refresh", "/api/v1/admin/cache/refresh"},
		{"DELETE with segment", "DELETE /api/v1/admin/cache/{cacheType}", "/api/v1/admin/cache/{cacheType}"},
		{"path without method", "/api/v1/miniprogram/home/data", "/api/v1/miniprogram/home/data"},
		{"invalid method prefix", "FETCH /path", "FETCH /path"},
		{"lowercase method not stripped", "get /path", "get /path"},
		{"empty pattern", "", ""},
		{"method only", "GET", "GET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrimMethod(tt.pattern))
		})
	}
}

func TestMux_RoutesToWrappedHandler(t *testing.T) {
	inner := http.NewServeMux()
	mux := NewMux(inner)

	mux.Handle("GET /api/v1/miniprogram/home/data", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/miniprogram/home/data", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTeapot, w.Code)
}
