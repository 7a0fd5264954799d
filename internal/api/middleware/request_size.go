package middleware

import (
	"errors"
	"net/http"

	"github.com/coachbook/server/internal/api/problem"
)

// DefaultMaxBodySize bounds JSON request bodies.
const DefaultMaxBodySize int64 = 64 << 10

var errRequestTooLarge = errors.New("request body too large")

// RequestSize wraps the body with http.MaxBytesReader and rejects requests
// that declare a larger Content-Length up front with 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request body too large", errRequestTooLarge, "")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
