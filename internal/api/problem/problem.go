package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

const typeBase = "https://coachbook.dev/problems/"

// Problem type URIs.
const (
	TypeValidation      = typeBase + "validation-error"
	TypeUnauthenticated = typeBase + "unauthenticated"
	TypeForbidden       = typeBase + "forbidden"
	TypeNotFound        = typeBase + "not-found"
	TypeConflict        = typeBase + "conflict"
	TypeCSRF            = typeBase + "csrf-failure"
	TypeRateLimited     = typeBase + "rate-limited"
	TypeTooLarge        = typeBase + "payload-too-large"
	TypeServer          = typeBase + "server-error"
	TypeUnavailable     = typeBase + "unavailable"
)

type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
	// Landing tells an unauthenticated client where to sign in.
	Landing string `json:"landing,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

func WithInstance(instance string) Option {
	return func(p *ProblemDetails) {
		p.Instance = instance
	}
}

func WithErrors(errs map[string]string) Option {
	return func(p *ProblemDetails) {
		p.Errors = errs
	}
}

// WithFieldError reports a single invalid field.
func WithFieldError(field, message string) Option {
	return func(p *ProblemDetails) {
		if p.Errors == nil {
			p.Errors = make(map[string]string, 1)
		}
		p.Errors[field] = message
	}
}

func WithLanding(path string) Option {
	return func(p *ProblemDetails) {
		p.Landing = path
	}
}

// Write renders a problem response. Error text is exposed only in development
// and test environments; 4xx are logged at warn and 5xx at error level.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	problem := ProblemDetails{
		Type:   typ,
		Title:  title,
		Status: status,
	}

	for _, opt := range opts {
		opt(&problem)
	}

	if problem.Detail == "" && err != nil {
		if env == "development" || env == "test" || (status < http.StatusInternalServerError && isClientSafe(err)) {
			problem.Detail = err.Error()
		} else {
			problem.Detail = http.StatusText(status)
		}
	}

	if problem.Instance == "" && r != nil {
		problem.Instance = r.URL.Path
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		event := logger.Warn()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Err(err).
			Int("status", status).
			Str("type", typ).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	}

	WriteProblem(w, problem)
}

func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	payload, err := json.Marshal(problem)
	if err != nil {
		fallback := fmt.Sprintf("{\"type\":%q,\"title\":\"%s\",\"status\":500}", TypeServer, http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(problem.Status)
	_, _ = w.Write(payload)
}

// ClientSafe marks an error whose message may be shown to clients in any
// environment, such as a validation failure.
type ClientSafe interface {
	ClientSafe() bool
}

func isClientSafe(err error) bool {
	var safe ClientSafe
	return errors.As(err, &safe) && safe.ClientSafe()
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limit exceeded")
)
