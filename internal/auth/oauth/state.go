package oauth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	stateSessionName = "coachbook_oauth"
	stateKey         = "state"
	stateMaxAge      = 10 * 60
)

// ErrStateMismatch is returned when the callback state does not match the
// value issued at login.
var ErrStateMismatch = errors.New("oauth state mismatch")

// StateStore keeps the pending OAuth state in a short-lived signed cookie.
type StateStore struct {
	store *sessions.CookieStore
}

func NewStateStore(hashKey []byte, secure bool) *StateStore {
	store := sessions.NewCookieStore(hashKey)
	store.Options = &sessions.Options{
		Path:     "/auth",
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &StateStore{store: store}
}

// Issue generates a state value and stores it in the response cookie.
func (s *StateStore) Issue(w http.ResponseWriter, r *http.Request) (string, error) {
	state, err := GenerateState()
	if err != nil {
		return "", err
	}
	session, _ := s.store.Get(r, stateSessionName)
	session.Values[stateKey] = state
	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	return state, nil
}

// Verify checks the callback state against the stored value and clears it.
func (s *StateStore) Verify(w http.ResponseWriter, r *http.Request, state string) error {
	session, err := s.store.Get(r, stateSessionName)
	if err != nil {
		return ErrStateMismatch
	}
	expected, _ := session.Values[stateKey].(string)

	delete(session.Values, stateKey)
	session.Options.MaxAge = -1
	_ = session.Save(r, w)

	if expected == "" || state == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		return ErrStateMismatch
	}
	return nil
}
