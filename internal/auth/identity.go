package auth

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when an operation needs a signed-in caller.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the resolved caller of a request. Role is read from storage on
// every request, so it reflects the latest role selection.
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  Role
}

// Authenticated reports whether the identity refers to a signed-in user.
func (i Identity) Authenticated() bool {
	return i.ID != ""
}

// Require returns ErrUnauthenticated for an anonymous identity.
func (i Identity) Require() error {
	if !i.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

// Landing returns where the caller should go next.
func Landing(identity Identity) string {
	if !identity.Authenticated() {
		return PathLogin
	}
	return identity.Role.HomePath()
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by the session middleware,
// or an anonymous identity when none is present.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	identity, _ := ctx.Value(identityKey{}).(Identity)
	return identity
}
