package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/coachbook/server/internal/api/middleware"
	"github.com/coachbook/server/internal/api/problem"
	"github.com/coachbook/server/internal/audit"
	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/auth/oauth"
	"github.com/coachbook/server/internal/domain/users"
)

// OAuthProvider runs the authorization code flow.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.GoogleUser, error)
}

type AuthHandler struct {
	provider    OAuthProvider
	state       *oauth.StateStore
	users       *users.Service
	sessions    *auth.SessionManager
	auditLogger *audit.Logger
	secure      bool
	env         string
}

func NewAuthHandler(provider OAuthProvider, state *oauth.StateStore, userService *users.Service, sessions *auth.SessionManager, auditLogger *audit.Logger, secure bool, env string) *AuthHandler {
	return &AuthHandler{
		provider:    provider,
		state:       state,
		users:       userService,
		sessions:    sessions,
		auditLogger: auditLogger,
		secure:      secure,
		env:         env,
	}
}

// Login redirects to the Google consent screen.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Google sign-in is not configured", nil, h.env)
		return
	}

	state, err := h.state.Issue(w, r)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Server error", err, h.env)
		return
	}
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes sign-in: verifies state, exchanges the code, upserts the
// user, sets the session cookie and sends the caller to their landing page.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Google sign-in is not configured", nil, h.env)
		return
	}

	query := r.URL.Query()
	if reason := query.Get("error"); reason != "" {
		h.auditLogger.LogFromRequest(r, "user.sign_in", "", "user", "", "failure", map[string]string{"reason": reason})
		http.Redirect(w, r, auth.PathLogin+"?error="+url.QueryEscape(reason), http.StatusFound)
		return
	}

	if err := h.state.Verify(w, r, query.Get("state")); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid OAuth state", err, h.env)
		return
	}

	googleUser, err := h.provider.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		h.auditLogger.LogFromRequest(r, "user.sign_in", "", "user", "", "failure", map[string]string{"reason": "exchange"})
		if errors.Is(err, oauth.ErrEmailNotVerified) {
			problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Email address is not verified", err, h.env)
			return
		}
		problem.Write(w, r, http.StatusBadGateway, problem.TypeUnavailable, "Google sign-in failed", err, h.env)
		return
	}

	user, err := h.users.UpsertFromOAuth(r.Context(), users.OAuthProfile{
		Email: googleUser.Email,
		Name:  googleUser.Name,
		Image: googleUser.Picture,
	})
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}

	token, err := h.sessions.Generate(user.ID, user.Email)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Server error", err, h.env)
		return
	}
	middleware.SetSessionCookie(w, token, h.sessions.Expiry(), h.secure)
	h.auditLogger.LogFromRequest(r, "user.session_start", user.ID, "user", user.ID, "success", nil)

	identity := auth.Identity{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}
	http.Redirect(w, r, auth.Landing(identity), http.StatusFound)
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	middleware.ClearSessionCookie(w, h.secure)
	if identity.Authenticated() {
		h.auditLogger.LogFromRequest(r, "user.session_end", identity.ID, "user", identity.ID, "success", nil)
	}
	w.WriteHeader(http.StatusNoContent)
}
