// Package oauthstate issues and checks the OAuth state value that binds an
// authorization callback to the browser that started it.
package oauthstate

import (
	"crypto/subtle"
	"errors"

	"github.com/agentcanvas/agentcanvas/cookie"
	"github.com/agentcanvas/agentcanvas/internal"
)

// ErrStateMismatch is returned when the callback state is missing or does not
// match the state cookie.
var ErrStateMismatch = errors.New("oauth state mismatch")

// Reason labels why a callback was rejected, for logs and audit only.
type Reason string

const (
	ReasonMissingReturned Reason = "missing_returned_state"
	ReasonMissingCookie   Reason = "missing_state_cookie"
	ReasonMalformed       Reason = "malformed_state"
	ReasonMismatch        Reason = "state_mismatch"
)

// MismatchError carries the rejection reason. It matches ErrStateMismatch
// under errors.Is.
type MismatchError struct {
	Reason Reason
}

func (e *MismatchError) Error() string {
	return ErrStateMismatch.Error() + ": " + string(e.Reason)
}

func (e *MismatchError) Unwrap() error {
	return ErrStateMismatch
}

// Begun is the result of starting a sign-in.
type Begun struct {
	State     string
	SetCookie string
}

// Guard generates and validates OAuth state values.
type Guard struct {
	cookies *cookie.Builder
	random  func() (string, error)
}

// NewGuard returns a Guard that writes state cookies with cookies.
func NewGuard(cookies *cookie.Builder) *Guard {
	return &Guard{cookies: cookies, random: internal.NewState}
}

// Begin returns a fresh state for the authorization URL and the cookie
// binding the caller to it.
func (g *Guard) Begin() (Begun, error) {
	state, err := g.random()
	if err != nil {
		return Begun{}, err
	}
	return Begun{State: state, SetCookie: g.cookies.State(state)}, nil
}

// Complete succeeds only if both values are non-empty and equal. The state
// cookie must be cleared by the caller whatever the outcome.
func (g *Guard) Complete(returned, fromCookie string) error {
	switch {
	case returned == "":
		return &MismatchError{Reason: ReasonMissingReturned}
	case fromCookie == "":
		return &MismatchError{Reason: ReasonMissingCookie}
	}
	if subtle.ConstantTimeCompare([]byte(returned), []byte(fromCookie)) != 1 {
		if !internal.WellFormedState(returned) {
			return &MismatchError{Reason: ReasonMalformed}
		}
		return &MismatchError{Reason: ReasonMismatch}
	}
	return nil
}

// ClearCookie returns the Set-Cookie value consuming the state cookie.
func (g *Guard) ClearCookie() string {
	return g.cookies.ClearState()
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var me *MismatchError
	if errors.As(err, &me) {
		return me.Reason, true
	}
	return "", false
}
