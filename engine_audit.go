package agentcanvas

import (
	"context"
	"errors"
)

const (
	auditEventSignInStarted       = "sign_in_started"
	auditEventSignInSuccess       = "sign_in_success"
	auditEventSignInFailure       = "sign_in_failure"
	auditEventStateMismatch       = "oauth_state_mismatch"
	auditEventSessionRejected     = "session_rejected"
	auditEventSessionRevoked      = "session_revoked"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshFailure      = "refresh_failure"
	auditEventLogout              = "logout"
	auditEventMembershipAdded     = "membership_added"
	auditEventMembershipUpdated   = "membership_role_updated"
	auditEventMembershipRemoved   = "membership_removed"
	auditEventMembershipForbidden = "membership_forbidden"
)

// AuditErrorCode is the coarse error classification written to audit
// events. Raw error strings never reach the sink.
type AuditErrorCode string

const (
	auditErrUnauthenticated       AuditErrorCode = "unauthenticated"
	auditErrStateMismatch         AuditErrorCode = "state_mismatch"
	auditErrUpstream              AuditErrorCode = "upstream_unavailable"
	auditErrForbidden             AuditErrorCode = "forbidden"
	auditErrNotFound              AuditErrorCode = "not_found"
	auditErrInvalidRequest        AuditErrorCode = "invalid_request"
	auditErrSessionCreationFailed AuditErrorCode = "session_creation_failed"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	orgID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		OrgID:     orgID,
		SessionID: sessionID,
		RequestID: RequestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrStateMismatch):
		return auditErrStateMismatch
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidRole):
		return auditErrInvalidRequest
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreationFailed
	case errors.Is(err, ErrRevocationUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrUpstream):
		return auditErrUpstream
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return auditErrUpstream
	default:
		return auditErrInternal
	}
}
