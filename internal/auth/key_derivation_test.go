package auth

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name         string
		masterSecret []byte
		purpose      string
		wantErr      bool
	}{
		{name: "valid derivation", masterSecret: []byte("this-is-a-secure-master-secret-for-testing"), purpose: "test-purpose-v1"},
		{name: "empty master secret", masterSecret: []byte{}, purpose: "test-purpose-v1", wantErr: true},
		{name: "nil master secret", masterSecret: nil, purpose: "test-purpose-v1", wantErr: true},
		{name: "empty purpose string is allowed", masterSecret: []byte("test-secret"), purpose: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := DeriveKey(tt.masterSecret, tt.purpose)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMasterSecret) {
					t.Fatalf("expected ErrInvalidMasterSecret, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(key) != DerivedKeyLength {
				t.Fatalf("expected %d bytes, got %d", DerivedKeyLength, len(key))
			}
		})
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	first, err := DeriveSessionKey(secret)
	if err != nil {
		t.Fatal(err)
	}
	second, err := DeriveSessionKey(secret)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("expected identical keys for the same secret and purpose")
	}
}

func TestDeriveKey_PurposesIndependent(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	session, _ := DeriveSessionKey(secret)
	csrfKey, _ := DeriveCSRFKey(secret)
	state, _ := DeriveOAuthStateKey(secret)

	if bytes.Equal(session, csrfKey) || bytes.Equal(session, state) || bytes.Equal(csrfKey, state) {
		t.Fatal("expected distinct keys per purpose")
	}
	if bytes.Equal(session, secret) {
		t.Fatal("derived key must differ from the master secret")
	}
}
