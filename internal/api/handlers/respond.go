package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/coachbook/server/internal/api/problem"
	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/domain/bookings"
	"github.com/coachbook/server/internal/domain/users"
	"github.com/coachbook/server/internal/validation"
)

const maxJSONBody = 64 << 10

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return r.PathValue(key)
}

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		if errors.Is(err, io.EOF) {
			return validation.Error{Message: "request body is required"}
		}
		return validation.Error{Message: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if dec.More() {
		return validation.Error{Message: "request body must contain a single JSON object"}
	}
	return nil
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var (
		validationErr validation.Error
		formatErr     bookings.FormatError
	)
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthenticated, "Authentication required", err, env,
			problem.WithLanding(auth.PathLogin))
	case errors.As(err, &validationErr):
		opts := []problem.Option{}
		if validationErr.Field != "" {
			opts = append(opts, problem.WithFieldError(validationErr.Field, validationErr.Message))
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env, opts...)
	case errors.As(err, &formatErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithFieldError(formatErr.Field, "invalid format"))
	case errors.Is(err, errBodyTooLarge):
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request body too large", err, env)
	case errors.Is(err, bookings.ErrNotFoundOrForbidden):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env,
			problem.WithDetail(bookings.ErrNotFoundOrForbidden.Error()))
	case errors.Is(err, bookings.ErrInvalidTransition):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Invalid status transition", err, env)
	case errors.Is(err, users.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", err, env)
	case errors.Is(err, users.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Server error", err, env)
	}
}
