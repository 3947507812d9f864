package agentcanvas

import (
	"errors"

	"github.com/agentcanvas/agentcanvas/oauthstate"
)

var (
	// ErrUnauthenticated is returned for a missing, invalid, expired, or revoked session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrStateMismatch is returned when the OAuth callback state does not match the state cookie.
	ErrStateMismatch = oauthstate.ErrStateMismatch
	// ErrUpstream wraps identity provider failures.
	ErrUpstream = errors.New("upstream unavailable")
	// ErrForbidden is returned when the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a membership does not exist in the given organization.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRole is returned for a role other than admin or member.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidRequest is returned for missing identifiers.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidConfig wraps configuration errors reported by Build.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrRevocationUnavailable is returned when the revocation list cannot be reached.
	ErrRevocationUnavailable = errors.New("revocation backend unavailable")
	// ErrSessionCreationFailed is returned when a session token cannot be sealed.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
