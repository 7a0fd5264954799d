package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ErrEmailNotVerified is returned when Google reports an unverified address.
var ErrEmailNotVerified = errors.New("google account email is not verified")

// GoogleConfig holds the OAuth client settings for Google sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint and UserInfoURL default to Google's production endpoints.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// GoogleClient runs the authorization code flow against Google.
type GoogleClient struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// GoogleUser is the subset of the OpenID userinfo document used for sign-in.
type GoogleUser struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}
	return &GoogleClient{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthCodeURL builds the consent URL for state.
func (c *GoogleClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades the authorization code for a token and loads the profile.
func (c *GoogleClient) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("missing authorization code")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return c.fetchUser(ctx, token)
}

func (c *GoogleClient) fetchUser(ctx context.Context, token *oauth2.Token) (*GoogleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("userinfo failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" {
		return nil, fmt.Errorf("userinfo response has no email")
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	if strings.TrimSpace(user.Name) == "" {
		user.Name = user.Email
	}
	return &user, nil
}

// GenerateState returns a random URL-safe state value.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
