package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries only the subject; the role is looked up per request.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager signs and validates session tokens stored in the session cookie.
type SessionManager struct {
	secret []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// NewSessionManager derives the signing key from the master secret.
func NewSessionManager(masterSecret string, expiry time.Duration, issuer string) (*SessionManager, error) {
	key, err := DeriveSessionKey([]byte(masterSecret))
	if err != nil {
		return nil, err
	}
	return &SessionManager{
		secret: key,
		expiry: expiry,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Expiry is the lifetime of issued tokens.
func (m *SessionManager) Expiry() time.Duration {
	return m.expiry
}

func (m *SessionManager) Generate(subject, email string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrInvalidToken
	}

	now := m.now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *SessionManager) Validate(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func TokenFromHeader(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}
