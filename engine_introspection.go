package agentcanvas

import (
	"context"
	"time"
)

// Health describes the health operation and its observable behavior.
//
// Health pings the revocation list when it is enabled and reports the
// membership cache size. It never returns an error; an unreachable backend
// is reported as RevocationAvailable false.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil {
		return HealthStatus{}
	}

	status := HealthStatus{
		RevocationEnabled: e.revocations != nil,
	}
	if e.memberships != nil {
		status.MembershipEntries = e.memberships.Len()
	}
	if e.revocations == nil {
		return status
	}

	start := time.Now()
	err := e.revocations.Ping(ctx)
	status.RevocationLatency = time.Since(start)
	status.RevocationAvailable = err == nil
	return status
}
