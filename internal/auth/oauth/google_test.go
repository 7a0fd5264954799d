package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeGoogle struct {
	user       map[string]any
	tokenCalls int
}

func (f *fakeGoogle) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		require.NoError(t, r.ParseForm())
		if r.FormValue("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *GoogleClient {
	return NewGoogleClient(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
		UserInfoURL: srv.URL + "/userinfo",
	})
}

func TestAuthCodeURL(t *testing.T) {
	client := NewGoogleClient(GoogleConfig{
		ClientID:    "client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	parsed, err := url.Parse(client.AuthCodeURL("state-value"))
	require.NoError(t, err)
	require.Equal(t, "accounts.google.com", parsed.Host)

	query := parsed.Query()
	require.Equal(t, "client-id", query.Get("client_id"))
	require.Equal(t, "state-value", query.Get("state"))
	require.Equal(t, "code", query.Get("response_type"))
	require.Equal(t, "openid email profile", query.Get("scope"))
	require.Equal(t, "http://localhost:8080/auth/google/callback", query.Get("redirect_uri"))
}

func TestExchange_Success(t *testing.T) {
	fake := &fakeGoogle{user: map[string]any{
		"sub":            "1234",
		"email":          "Ada@Example.com ",
		"email_verified": true,
		"name":           "Ada Lovelace",
		"picture":        "https://example.com/ada.png",
	}}
	client := newTestClient(fake.server(t))

	user, err := client.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)
	require.Equal(t, "Ada Lovelace", user.Name)
	require.Equal(t, "https://example.com/ada.png", user.Picture)
	require.Equal(t, 1, fake.tokenCalls)
}

func TestExchange_NameFallsBackToEmail(t *testing.T) {
	fake := &fakeGoogle{user: map[string]any{
		"sub":            "1234",
		"email":          "grace@example.com",
		"email_verified": true,
	}}
	client := newTestClient(fake.server(t))

	user, err := client.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	require.Equal(t, "grace@example.com", user.Name)
}

func TestExchange_InvalidCode(t *testing.T) {
	fake := &fakeGoogle{}
	client := newTestClient(fake.server(t))

	_, err := client.Exchange(context.Background(), "bad-code")
	require.Error(t, err)
	require.Contains(t, err.Error(), "exchange code")
}

func TestExchange_EmptyCode(t *testing.T) {
	fake := &fakeGoogle{}
	client := newTestClient(fake.server(t))

	_, err := client.Exchange(context.Background(), "")
	require.Error(t, err)
	require.Zero(t, fake.tokenCalls)
}

func TestExchange_UnverifiedEmail(t *testing.T) {
	fake := &fakeGoogle{user: map[string]any{
		"sub":            "1234",
		"email":          "ada@example.com",
		"email_verified": false,
	}}
	client := newTestClient(fake.server(t))

	_, err := client.Exchange(context.Background(), "good-code")
	require.True(t, errors.Is(err, ErrEmailNotVerified))
}

func TestGenerateState(t *testing.T) {
	first, err := GenerateState()
	require.NoError(t, err)
	second, err := GenerateState()
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Len(t, first, 43)
}
