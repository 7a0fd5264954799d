package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coachbook/server/internal/api/problem"
	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/domain/users"
	"github.com/rs/zerolog"
)

const SessionCookieName = "coachbook_session"

// UserLoader resolves the subject of a session token.
type UserLoader interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

// Session resolves the caller from the session cookie. The role is loaded
// from storage on every request. Requests without a valid session continue
// anonymously; RequireIdentity rejects them where needed.
func Session(manager *auth.SessionManager, loader UserLoader, secure bool, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || strings.TrimSpace(cookie.Value) == "" || manager == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := manager.Validate(cookie.Value)
			if err != nil {
				ClearSessionCookie(w, secure)
				next.ServeHTTP(w, r)
				return
			}

			user, err := loader.Get(r.Context(), claims.Subject)
			if errors.Is(err, users.ErrNotFound) {
				ClearSessionCookie(w, secure)
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Session lookup failed", err, env)
				return
			}

			identity := auth.Identity{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}
			ctx := auth.WithIdentity(r.Context(), identity)
			logger := zerolog.Ctx(ctx).With().Str("user_id", user.ID).Logger()
			ctx = logger.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity answers 401 with a pointer to the login page when the
// request carries no identity.
func RequireIdentity(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.IdentityFromContext(r.Context()).Require(); err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthenticated, "Authentication required", err, env,
					problem.WithLanding(auth.PathLogin))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
