package agentcanvas

import (
	"context"
	"fmt"

	"github.com/agentcanvas/agentcanvas/idp"
	"github.com/agentcanvas/agentcanvas/session"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Memberships returns the user's memberships from the short-TTL cache,
// fetching from the provider on a miss. Fetch errors are ErrUpstream and
// are not cached.
func (e *Engine) Memberships(ctx context.Context, userID string) ([]idp.Membership, error) {
	if e == nil || e.memberships == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	ms, err := e.memberships.Get(ctx, userID)
	if err != nil {
		return nil, upstreamError(err)
	}
	return ms, nil
}

// IsOrgAdmin reports whether userID holds an active admin membership in
// orgID according to the membership cache.
func (e *Engine) IsOrgAdmin(ctx context.Context, userID, orgID string) (bool, error) {
	if orgID == "" {
		return false, ErrInvalidRequest
	}
	ms, err := e.Memberships(ctx, userID)
	if err != nil {
		return false, err
	}
	return lo.ContainsBy(ms, func(m idp.Membership) bool {
		return m.OrganizationID == orgID && m.Active() && roleOf(m) == session.RoleAdmin
	}), nil
}

// InvalidateMemberships drops the cached memberships for userID.
func (e *Engine) InvalidateMemberships(userID string) {
	if e == nil || e.memberships == nil {
		return
	}
	e.memberships.Invalidate(userID)
}

// ListOrgMembers describes the listorgmembers operation and its observable behavior.
//
// ListOrgMembers returns every membership of orgID. The caller must be a
// super admin or an admin of orgID; role checks use the membership cache,
// so a demotion takes effect within the cache TTL.
func (e *Engine) ListOrgMembers(ctx context.Context, caller *session.Data, orgID string) ([]idp.Membership, error) {
	if err := e.AuthorizeOrgAdmin(ctx, caller, orgID); err != nil {
		return nil, err
	}
	ms, err := e.idp.ListOrganizationMemberships(ctx, orgID)
	if err != nil {
		return nil, upstreamError(err)
	}
	return ms, nil
}

// AddOrgMember describes the addorgmember operation and its observable behavior.
//
// AddOrgMember creates a membership for userID in orgID with role and
// invalidates userID's cached memberships.
func (e *Engine) AddOrgMember(ctx context.Context, caller *session.Data, orgID, userID string, role session.Role) (*idp.Membership, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	if err := e.AuthorizeOrgAdmin(ctx, caller, orgID); err != nil {
		return nil, err
	}

	m, err := e.idp.CreateMembership(ctx, userID, orgID, string(role))
	if err != nil {
		err = upstreamError(err)
		e.emitAudit(ctx, auditEventMembershipAdded, false, caller.User.ID, orgID, "", err, nil)
		return nil, err
	}
	e.memberships.Invalidate(userID)

	e.log.Info("membership added",
		zap.String("org_id", orgID), zap.String("user_id", userID), zap.String("role", string(role)))
	e.emitAudit(ctx, auditEventMembershipAdded, true, caller.User.ID, orgID, "", nil, func() map[string]string {
		return map[string]string{"member_user_id": userID, "role": string(role), "membership_id": m.ID}
	})
	return m, nil
}

// UpdateOrgMemberRole describes the updateorgmemberrole operation and its observable behavior.
//
// UpdateOrgMemberRole changes the role of membershipID, which must belong
// to orgID (ErrNotFound otherwise), and invalidates the member's cache
// entry.
func (e *Engine) UpdateOrgMemberRole(ctx context.Context, caller *session.Data, orgID, membershipID string, role session.Role) (*idp.Membership, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	target, err := e.orgMembership(ctx, caller, orgID, membershipID)
	if err != nil {
		return nil, err
	}

	m, err := e.idp.UpdateMembershipRole(ctx, membershipID, string(role))
	if err != nil {
		err = upstreamError(err)
		e.emitAudit(ctx, auditEventMembershipUpdated, false, caller.User.ID, orgID, "", err, nil)
		return nil, err
	}
	e.memberships.Invalidate(target.UserID)

	e.emitAudit(ctx, auditEventMembershipUpdated, true, caller.User.ID, orgID, "", nil, func() map[string]string {
		return map[string]string{
			"member_user_id": target.UserID,
			"membership_id":  membershipID,
			"from":           target.Role.Slug,
			"role":           string(role),
		}
	})
	return m, nil
}

// RemoveOrgMember describes the removeorgmember operation and its observable behavior.
//
// RemoveOrgMember deletes membershipID, which must belong to orgID, and
// invalidates the member's cache entry.
func (e *Engine) RemoveOrgMember(ctx context.Context, caller *session.Data, orgID, membershipID string) error {
	target, err := e.orgMembership(ctx, caller, orgID, membershipID)
	if err != nil {
		return err
	}

	if err := e.idp.DeleteMembership(ctx, membershipID); err != nil {
		err = upstreamError(err)
		e.emitAudit(ctx, auditEventMembershipRemoved, false, caller.User.ID, orgID, "", err, nil)
		return err
	}
	e.memberships.Invalidate(target.UserID)

	e.log.Info("membership removed", zap.String("org_id", orgID), zap.String("user_id", target.UserID))
	e.emitAudit(ctx, auditEventMembershipRemoved, true, caller.User.ID, orgID, "", nil, func() map[string]string {
		return map[string]string{"member_user_id": target.UserID, "membership_id": membershipID}
	})
	return nil
}

func (e *Engine) orgMembership(ctx context.Context, caller *session.Data, orgID, membershipID string) (*idp.Membership, error) {
	if membershipID == "" {
		return nil, ErrInvalidRequest
	}
	if err := e.AuthorizeOrgAdmin(ctx, caller, orgID); err != nil {
		return nil, err
	}
	m, err := e.idp.GetMembership(ctx, membershipID)
	if err != nil {
		return nil, upstreamError(err)
	}
	if m.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	return m, nil
}

// AuthorizeOrgAdmin allows super admins and admins of orgID. A refusal is
// audited and wraps ErrForbidden.
func (e *Engine) AuthorizeOrgAdmin(ctx context.Context, caller *session.Data, orgID string) error {
	if e == nil || e.idp == nil {
		return ErrEngineNotReady
	}
	if caller == nil || caller.User.ID == "" {
		return ErrUnauthenticated
	}
	if orgID == "" {
		return ErrInvalidRequest
	}
	if caller.IsSuperAdmin {
		return nil
	}
	ok, err := e.IsOrgAdmin(ctx, caller.User.ID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		e.emitAudit(ctx, auditEventMembershipForbidden, false, caller.User.ID, orgID, "", ErrForbidden, nil)
		return fmt.Errorf("%w: not an admin of %s", ErrForbidden, orgID)
	}
	return nil
}
