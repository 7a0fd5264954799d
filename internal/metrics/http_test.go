package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "static path", input: "/api/v1/bookings", expected: "/api/v1/bookings"},
		{name: "single param", input: "/api/v1/bookings/{id}", expected: "/api/v1/bookings/{param}"},
		{name: "param in the middle", input: "/api/v1/bookings/{id}/status", expected: "/api/v1/bookings/{param}/status"},
		{name: "empty path", input: "", expected: ""},
		{name: "non-path input", input: "api/v1/bookings/{id}", expected: "api/v1/bookings/{id}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizePath(tt.input); got != tt.expected {
				t.Fatalf("normalizePath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v1/bookings/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := HTTPMiddleware(mux)

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodPut, "/api/v1/bookings/{param}/status", "204")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/bookings/01ABC/status", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("expected counter to increase by 1, got %v -> %v", before, got)
	}
}

func TestHTTPMiddleware_Unmatched(t *testing.T) {
	handler := HTTPMiddleware(http.NewServeMux())

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("expected unmatched counter to increase, got %v -> %v", before, got)
	}
}
