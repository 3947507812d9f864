package agentcanvas

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentcanvas/agentcanvas/session"
	"go.uber.org/zap"
)

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh opens token and, when the identity token is inside the refresh
// window or force is set, exchanges the stored refresh token with the
// provider and seals a replacement session. The user snapshot and
// organizations are replaced; the super-admin flag is carried over from
// sign-in. When the session is still fresh Refresh returns it unchanged with
// Refreshed false. There is no retry: a failed exchange leaves the current
// session in place.
func (e *Engine) Refresh(ctx context.Context, token string, force bool) (*RefreshResult, error) {
	env, err := e.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	current := env.Data

	if !force && !e.policy.NeedsRefresh(current.IDTokenExpiresAt) {
		e.metricInc(MetricRefreshSkipped)
		return &RefreshResult{Session: current}, nil
	}

	if current.RefreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, current.User.ID, "", env.ID, ErrUnauthenticated, nil)
		return nil, ErrUnauthenticated
	}

	auth, err := e.idp.AuthenticateWithRefreshToken(ctx, current.RefreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		err = upstreamError(err)
		e.emitAudit(ctx, auditEventRefreshFailure, false, current.User.ID, "", env.ID, err, nil)
		return nil, err
	}

	next := current.Clone()
	next.AccessToken = auth.AccessToken
	if auth.RefreshToken != "" {
		next.RefreshToken = auth.RefreshToken
	}
	if auth.User.ID != "" {
		next.User = sessionUser(auth.User)
	}
	next.Orgs = e.sessionOrgs(ctx, next.User.ID, current.Orgs)
	if err := e.attachIDToken(next, auth.IDToken); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, next.User.ID, "", env.ID, err, nil)
		return nil, err
	}

	sealed, err := e.codec.Encode(next)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.log.Error("seal refreshed session", zap.Error(err))
		e.emitAudit(ctx, auditEventRefreshFailure, false, next.User.ID, "", env.ID, ErrSessionCreationFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	// The replaced cookie would otherwise stay valid until its own expiry.
	if e.revocations != nil {
		if err := e.revocations.Revoke(ctx, env.ID, env.ExpiresAt); err != nil {
			e.log.Warn("revoke replaced session", zap.String("user_id", next.User.ID), zap.Error(err))
		}
	}

	e.metricInc(MetricRefreshSuccess)
	e.log.Debug("session refreshed", zap.String("user_id", next.User.ID), zap.Bool("forced", force))
	e.emitAudit(ctx, auditEventRefreshSuccess, true, next.User.ID, "", env.ID, nil, nil)

	return &RefreshResult{
		Session:       next,
		SessionCookie: e.cookies.Session(sealed),
		Refreshed:     true,
	}, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout always returns the Set-Cookie value that deletes the session, even
// for a missing or invalid token. When the revocation list is enabled the
// token id is recorded until its natural expiry; a Redis failure is
// returned as ErrRevocationUnavailable alongside the clear cookie.
func (e *Engine) Logout(ctx context.Context, token string) (string, error) {
	if e == nil || e.codec == nil {
		return "", ErrEngineNotReady
	}
	clear := e.cookies.ClearSession()

	e.metricInc(MetricLogout)

	env, ok := e.codec.Open(token)
	if !ok {
		e.emitAudit(ctx, auditEventLogout, true, "", "", "", nil, nil)
		return clear, nil
	}

	if e.revocations != nil {
		if err := e.revocations.Revoke(ctx, env.ID, env.ExpiresAt); err != nil {
			e.log.Error("revoke session on logout", zap.String("user_id", env.Data.User.ID), zap.Error(err))
			if errors.Is(err, session.ErrRedisUnavailable) {
				err = fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
			}
			e.emitAudit(ctx, auditEventLogout, false, env.Data.User.ID, "", env.ID, err, nil)
			return clear, err
		}
	}

	e.emitAudit(ctx, auditEventLogout, true, env.Data.User.ID, "", env.ID, nil, nil)
	return clear, nil
}
