package agentcanvas

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/agentcanvas/agentcanvas/internal/audit"
	"github.com/agentcanvas/agentcanvas/idp"
	"github.com/agentcanvas/agentcanvas/session"
	"go.uber.org/zap"
)

// IdentityProvider is the subset of the identity provider API the Engine
// uses. [*idp.Client] satisfies it.
type IdentityProvider interface {
	AuthorizationURL(state string) string
	AuthenticateWithCode(ctx context.Context, code string) (*idp.AuthResponse, error)
	AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*idp.AuthResponse, error)
	ListUserMemberships(ctx context.Context, userID string) ([]idp.Membership, error)
	ListOrganizationMemberships(ctx context.Context, orgID string) ([]idp.Membership, error)
	CreateMembership(ctx context.Context, userID, orgID, roleSlug string) (*idp.Membership, error)
	GetMembership(ctx context.Context, membershipID string) (*idp.Membership, error)
	UpdateMembershipRole(ctx context.Context, membershipID, roleSlug string) (*idp.Membership, error)
	DeleteMembership(ctx context.Context, membershipID string) error
	GetOrganization(ctx context.Context, orgID string) (*idp.Organization, error)
}

// SignInStart is returned by [Engine.BeginSignIn].
type SignInStart struct {
	AuthorizationURL string
	// StateCookie binds the browser to the state embedded in the URL.
	StateCookie string
}

// SignInResult is returned by [Engine.CompleteSignIn].
type SignInResult struct {
	Session       *session.Data
	SessionCookie string
}

// RefreshResult is returned by [Engine.Refresh]. When Refreshed is false the
// session was still fresh and SessionCookie is empty.
type RefreshResult struct {
	Session       *session.Data
	SessionCookie string
	Refreshed     bool
}

// SessionView is the part of a session that may be sent to the UI. Upstream
// access and refresh tokens are never included.
type SessionView struct {
	User             session.User  `json:"user"`
	Orgs             []session.Org `json:"orgs"`
	IsSuperAdmin     bool          `json:"isSuperAdmin"`
	IDToken          string        `json:"idToken"`
	IDTokenExpiresAt int64         `json:"idTokenExpiresAt"`
	NeedsRefresh     bool          `json:"needsRefresh"`
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RevocationEnabled   bool
	RevocationAvailable bool
	RevocationLatency   time.Duration
	MembershipEntries   int
}

// AuditEvent is the audit record emitted by the Engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink writes audit events to a zap logger.
type ZapSink = internalaudit.ZapSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink returns a ZapSink writing to l.
func NewZapSink(l *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(l)
}
