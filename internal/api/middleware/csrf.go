package middleware

import (
	"net/http"

	"github.com/coachbook/server/internal/api/problem"
	"github.com/gorilla/csrf"
)

const (
	CSRFHeader     = "X-CSRF-Token"
	CSRFCookieName = "coachbook_csrf"
)

// CSRFProtection guards cookie-authenticated mutations with the double-submit
// pattern: clients fetch a token from /api/v1/csrf and echo it in X-CSRF-Token.
// When secure is false requests are treated as plaintext HTTP, which relaxes
// the Referer check for local development.
func CSRFProtection(authKey []byte, secure bool, trustedOrigins []string) func(http.Handler) http.Handler {
	opts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.CookieName(CSRFCookieName),
		csrf.RequestHeader(CSRFHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	}
	if len(trustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(trustedOrigins))
	}
	protect := csrf.Protect(authKey, opts...)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		if secure {
			return protected
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusForbidden, problem.TypeCSRF, "CSRF token validation failed", csrf.FailureReason(r), "")
}

// CSRFToken returns the masked token for the current request.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}
