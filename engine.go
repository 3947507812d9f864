package agentcanvas

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	internalaudit "github.com/agentcanvas/agentcanvas/internal/audit"
	"github.com/agentcanvas/agentcanvas/cookie"
	"github.com/agentcanvas/agentcanvas/idtoken"
	"github.com/agentcanvas/agentcanvas/membership"
	"github.com/agentcanvas/agentcanvas/oauthstate"
	"github.com/agentcanvas/agentcanvas/refresh"
	"github.com/agentcanvas/agentcanvas/session"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Engine owns the session lifecycle: sign-in, cookie authentication,
// proactive refresh, logout and organization membership management.
//
// Engine is safe for concurrent use. Its only shared mutable state is the
// membership cache and the session keyring, each behind its own lock.
type Engine struct {
	config      Config
	log         *zap.Logger
	now         func() time.Time
	cookies     *cookie.Builder
	state       *oauthstate.Guard
	codec       *session.Codec
	tokens      *idtoken.Manager
	verifier    *idtoken.Verifier
	policy      *refresh.Policy
	idp         IdentityProvider
	memberships *membership.Cache
	revocations *session.RevocationStore
	ownedRedis  *redis.Client
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	admins      map[string]struct{}

	stopJanitor context.CancelFunc
	janitorDone chan struct{}
}

// Close stops the membership janitor, flushes the audit dispatcher and
// closes a Redis client the Engine created itself. Close is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.stopJanitor != nil {
		e.stopJanitor()
		<-e.janitorDone
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.ownedRedis != nil {
		if err := e.ownedRedis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			e.log.Warn("close revocation redis", zap.Error(err))
		}
	}
}

// Config returns a copy of the Engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// AuditDropped returns the number of audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled or the
// Engine is nil, so exporters never need a nil check.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// observeUpstream records metrics only; the idp client logs the call.
func (e *Engine) observeUpstream(_ string, elapsed time.Duration, err error) {
	e.metrics.Observe(MetricUpstreamLatency, elapsed)
	if err != nil {
		e.metricInc(MetricUpstreamFailure)
	}
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate opens a session cookie value. Every decode failure (wrong
// key, expired, malformed, tampered) and every revoked token collapses to
// ErrUnauthenticated; the detail is only logged and audited. When the
// revocation list is enabled and unreachable, Authenticate fails closed
// with ErrRevocationUnavailable.
func (e *Engine) Authenticate(ctx context.Context, token string) (*session.Envelope, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}

	env, ok := e.codec.Open(token)
	if !ok {
		e.metricInc(MetricSessionDecodeFailure)
		e.log.Info("session cookie rejected",
			zap.String("request_id", RequestIDFromContext(ctx)),
			zap.String("ip", clientIPFromContext(ctx)),
			zap.Int("length", len(token)),
		)
		e.emitAudit(ctx, auditEventSessionRejected, false, "", "", "", ErrUnauthenticated, nil)
		return nil, ErrUnauthenticated
	}

	if e.revocations != nil {
		revoked, err := e.revocations.IsRevoked(ctx, env.ID)
		if err != nil {
			e.log.Error("revocation lookup failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		}
		if revoked {
			e.metricInc(MetricSessionRevoked)
			e.emitAudit(ctx, auditEventSessionRevoked, false, env.Data.User.ID, "", env.ID, ErrUnauthenticated, nil)
			return nil, ErrUnauthenticated
		}
	}

	return env, nil
}

// SessionView strips upstream credentials from d and reports whether the
// identity token is due for refresh.
func (e *Engine) SessionView(d *session.Data) SessionView {
	if d == nil {
		return SessionView{Orgs: []session.Org{}}
	}
	orgs := make([]session.Org, len(d.Orgs))
	copy(orgs, d.Orgs)
	needs := refresh.NeedsRefreshAt(time.Now(), d.IDTokenExpiresAt)
	if e != nil && e.policy != nil {
		needs = e.policy.NeedsRefresh(d.IDTokenExpiresAt)
	}
	return SessionView{
		User:             d.User,
		Orgs:             orgs,
		IsSuperAdmin:     d.IsSuperAdmin,
		IDToken:          d.IDToken,
		IDTokenExpiresAt: d.IDTokenExpiresAt,
		NeedsRefresh:     needs,
	}
}

// IsSuperAdmin reports whether email is on the super-admin allow-list.
func (e *Engine) IsSuperAdmin(email string) bool {
	if e == nil || email == "" {
		return false
	}
	_, ok := e.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// JWKS returns the public key set downstream verifiers trust.
func (e *Engine) JWKS() jose.JSONWebKeySet {
	if e == nil || e.tokens == nil {
		return jose.JSONWebKeySet{}
	}
	return e.tokens.JWKS()
}

// VerifyIDToken checks an identity token minted by this Engine. Any failure
// is reported as ErrUnauthenticated.
func (e *Engine) VerifyIDToken(ctx context.Context, raw string) (*idtoken.Claims, error) {
	if e == nil || e.verifier == nil {
		return nil, ErrEngineNotReady
	}
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := e.verifier.Verify(ctx, raw)
	if err != nil {
		e.log.Debug("identity token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return claims, nil
}

// ClearSessionCookie returns the Set-Cookie value that deletes the session.
func (e *Engine) ClearSessionCookie() string {
	return e.cookies.ClearSession()
}

// ClearStateCookie returns the Set-Cookie value that consumes the OAuth
// state cookie.
func (e *Engine) ClearStateCookie() string {
	return e.state.ClearCookie()
}

// CookiesSecure reports whether issued cookies carry the Secure attribute.
func (e *Engine) CookiesSecure() bool {
	return e.cookies.Secure()
}
