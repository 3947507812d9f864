package agentcanvas

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/agentcanvas/agentcanvas/idp"
	"github.com/agentcanvas/agentcanvas/idtoken"
	"github.com/agentcanvas/agentcanvas/oauthstate"
	"github.com/agentcanvas/agentcanvas/session"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// BeginSignIn describes the beginsignin operation and its observable behavior.
//
// BeginSignIn generates a fresh OAuth state and returns the provider's
// authorization URL carrying it, plus the state cookie that binds the
// browser to it. BeginSignIn only fails when the system random source does.
func (e *Engine) BeginSignIn(ctx context.Context) (*SignInStart, error) {
	if e == nil || e.state == nil {
		return nil, ErrEngineNotReady
	}

	begun, err := e.state.Begin()
	if err != nil {
		e.log.Error("generate oauth state", zap.Error(err))
		return nil, fmt.Errorf("oauth state: %w", err)
	}

	e.metricInc(MetricSignInStarted)
	e.emitAudit(ctx, auditEventSignInStarted, true, "", "", "", nil, nil)

	return &SignInStart{
		AuthorizationURL: e.idp.AuthorizationURL(begun.State),
		StateCookie:      begun.SetCookie,
	}, nil
}

// CompleteSignIn describes the completesignin operation and its observable behavior.
//
// CompleteSignIn validates the returned state against the state cookie
// (failing closed with ErrStateMismatch), exchanges code with the identity
// provider, loads the user's memberships and seals a new session.
// Membership lookup failures do not block sign-in; the session then carries
// no organizations until the next refresh. The caller must clear the state
// cookie whatever the outcome.
func (e *Engine) CompleteSignIn(ctx context.Context, code, returnedState, stateCookie string) (*SignInResult, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.state.Complete(returnedState, stateCookie); err != nil {
		reason, _ := oauthstate.ReasonOf(err)
		e.metricInc(MetricStateMismatch)
		e.log.Warn("oauth state rejected",
			zap.String("reason", string(reason)),
			zap.String("request_id", RequestIDFromContext(ctx)),
			zap.String("ip", clientIPFromContext(ctx)),
		)
		e.emitAudit(ctx, auditEventStateMismatch, false, "", "", "", err, func() map[string]string {
			return map[string]string{"reason": string(reason)}
		})
		return nil, err
	}

	if code == "" {
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, "", "", "", ErrInvalidRequest, nil)
		return nil, fmt.Errorf("%w: missing authorization code", ErrInvalidRequest)
	}

	auth, err := e.idp.AuthenticateWithCode(ctx, code)
	if err != nil {
		e.metricInc(MetricSignInFailure)
		err = upstreamError(err)
		e.emitAudit(ctx, auditEventSignInFailure, false, "", "", "", err, nil)
		return nil, err
	}

	// A new sign-in always sees the provider's current memberships.
	e.memberships.Invalidate(auth.User.ID)
	orgs := e.sessionOrgs(ctx, auth.User.ID, nil)

	data := &session.Data{
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		User:         sessionUser(auth.User),
		Orgs:         orgs,
		IsSuperAdmin: e.IsSuperAdmin(auth.User.Email),
	}
	if err := e.attachIDToken(data, auth.IDToken); err != nil {
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, data.User.ID, "", "", err, nil)
		return nil, err
	}

	token, err := e.codec.Encode(data)
	if err != nil {
		e.metricInc(MetricSignInFailure)
		e.log.Error("seal session", zap.Error(err))
		e.emitAudit(ctx, auditEventSignInFailure, false, data.User.ID, "", "", ErrSessionCreationFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricSignInSuccess)
	e.log.Info("sign-in completed",
		zap.String("user_id", data.User.ID),
		zap.Int("orgs", len(data.Orgs)),
		zap.Bool("super_admin", data.IsSuperAdmin),
	)
	e.emitAudit(ctx, auditEventSignInSuccess, true, data.User.ID, auth.OrganizationID, "", nil, func() map[string]string {
		return map[string]string{"orgs": fmt.Sprint(len(data.Orgs))}
	})

	return &SignInResult{
		Session:       data,
		SessionCookie: e.cookies.Session(token),
	}, nil
}

// attachIDToken sets d.IDToken and d.IDTokenExpiresAt. An identity token
// issued by the provider is used as is; otherwise one is minted for d.User.
func (e *Engine) attachIDToken(d *session.Data, upstream string) error {
	if upstream != "" {
		if exp, err := idtoken.ExpiryOf(upstream); err == nil {
			d.IDToken = upstream
			d.IDTokenExpiresAt = e.policy.ExpiresAtFromExpiry(exp)
			return nil
		}
		e.log.Warn("upstream identity token has no readable expiry; minting")
	}

	token, exp, err := e.tokens.Mint(idtoken.Subject{
		ID:      d.User.ID,
		Email:   d.User.Email,
		Name:    d.User.DisplayName(),
		Picture: d.User.ProfilePictureURL,
	}, e.now())
	if err != nil {
		e.log.Error("mint identity token", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	e.metricInc(MetricIDTokenMinted)
	d.IDToken = token
	d.IDTokenExpiresAt = e.policy.ExpiresAtFromExpiry(exp)
	return nil
}

// sessionOrgs maps the user's active memberships to session orgs with
// their display names. On a membership fetch error it logs and returns
// fallback.
func (e *Engine) sessionOrgs(ctx context.Context, userID string, fallback []session.Org) []session.Org {
	ms, err := e.memberships.Get(ctx, userID)
	if err != nil {
		e.log.Warn("membership lookup failed; keeping previous organizations",
			zap.String("user_id", userID), zap.Error(err))
		if fallback == nil {
			return []session.Org{}
		}
		return fallback
	}

	known := lo.SliceToMap(fallback, func(o session.Org) (string, string) { return o.ID, o.Name })
	active := lo.Filter(ms, func(m idp.Membership, _ int) bool { return m.Active() })
	active = lo.UniqBy(active, func(m idp.Membership) string { return m.OrganizationID })

	return lo.Map(active, func(m idp.Membership, _ int) session.Org {
		return session.Org{
			ID:   m.OrganizationID,
			Role: roleOf(m),
			Name: e.orgName(ctx, m.OrganizationID, known),
		}
	})
}

func (e *Engine) orgName(ctx context.Context, orgID string, known map[string]string) string {
	if name := known[orgID]; name != "" {
		return name
	}
	org, err := e.idp.GetOrganization(ctx, orgID)
	if err != nil {
		e.log.Debug("organization name lookup failed", zap.String("org_id", orgID), zap.Error(err))
		return ""
	}
	return org.Name
}

func roleOf(m idp.Membership) session.Role {
	if r := session.Role(strings.ToLower(m.Role.Slug)); r.Valid() {
		return r
	}
	return session.RoleMember
}

func sessionUser(u idp.User) session.User {
	return session.User{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		ProfilePictureURL: u.ProfilePictureURL,
	}
}

// upstreamError maps identity provider errors to Engine errors. Credentials
// rejected by the authenticate endpoint are ErrUnauthenticated, a missing
// resource is ErrNotFound and everything else is ErrUpstream.
func upstreamError(err error) error {
	var apiErr *idp.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case strings.HasPrefix(apiErr.Op, "authenticate") &&
			apiErr.Status >= 400 && apiErr.Status < 500 &&
			apiErr.Status != http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
