package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// DerivedKeyLength is 32 bytes, sized for HMAC-SHA256.
	DerivedKeyLength = 32

	purposeSessionJWT = "coachbook-session-jwt-v1"
	purposeCSRF       = "coachbook-csrf-v1"
	purposeOAuthState = "coachbook-oauth-state-v1"
)

var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey derives an independent key from masterSecret with HKDF-SHA256,
// using purpose as the info parameter.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}

	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	derivedKey := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(reader, derivedKey); err != nil {
		return nil, err
	}
	return derivedKey, nil
}

func DeriveSessionKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeSessionJWT)
}

func DeriveCSRFKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeCSRF)
}

func DeriveOAuthStateKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeOAuthState)
}
