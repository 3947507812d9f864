package internaldefs

import (
	"github.com/agentcanvas/agentcanvas"
	internalmetrics "github.com/agentcanvas/agentcanvas/internal/metrics"
)

// BucketCount mirrors the engine's latency histogram width.
const BucketCount = internalmetrics.BucketCount

// CounterDef names one engine counter.
type CounterDef struct {
	ID   agentcanvas.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   agentcanvas.MetricID
	Name string
	Help string
}

// AuditDroppedName is the series for events the audit dispatcher discarded.
const (
	AuditDroppedName = "agentcanvas_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: agentcanvas.MetricSignInStarted, Name: "agentcanvas_sign_in_started_total", Help: "Authorization redirects issued."},
	{ID: agentcanvas.MetricSignInSuccess, Name: "agentcanvas_sign_in_success_total", Help: "Completed sign-ins."},
	{ID: agentcanvas.MetricSignInFailure, Name: "agentcanvas_sign_in_failure_total", Help: "Callbacks that did not produce a session."},
	{ID: agentcanvas.MetricStateMismatch, Name: "agentcanvas_oauth_state_mismatch_total", Help: "Callbacks rejected by the OAuth state check."},
	{ID: agentcanvas.MetricSessionDecodeFailure, Name: "agentcanvas_session_decode_failure_total", Help: "Session cookies that failed to open."},
	{ID: agentcanvas.MetricSessionRevoked, Name: "agentcanvas_session_revoked_total", Help: "Sessions rejected by the revocation list."},
	{ID: agentcanvas.MetricRefreshSuccess, Name: "agentcanvas_refresh_success_total", Help: "Sessions re-issued by refresh."},
	{ID: agentcanvas.MetricRefreshFailure, Name: "agentcanvas_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: agentcanvas.MetricRefreshSkipped, Name: "agentcanvas_refresh_skipped_total", Help: "Refresh calls on still-fresh sessions."},
	{ID: agentcanvas.MetricLogout, Name: "agentcanvas_logout_total", Help: "Logouts."},
	{ID: agentcanvas.MetricIDTokenMinted, Name: "agentcanvas_id_token_minted_total", Help: "Identity tokens signed locally."},
	{ID: agentcanvas.MetricMembershipHit, Name: "agentcanvas_membership_cache_hit_total", Help: "Membership cache hits."},
	{ID: agentcanvas.MetricMembershipMiss, Name: "agentcanvas_membership_cache_miss_total", Help: "Membership cache misses."},
	{ID: agentcanvas.MetricMembershipFetchFailure, Name: "agentcanvas_membership_fetch_failure_total", Help: "Failed upstream membership fetches."},
	{ID: agentcanvas.MetricMembershipInvalidated, Name: "agentcanvas_membership_invalidated_total", Help: "Explicit membership cache evictions."},
	{ID: agentcanvas.MetricUpstreamFailure, Name: "agentcanvas_upstream_failure_total", Help: "Failed identity provider calls."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: agentcanvas.MetricUpstreamLatency, Name: "agentcanvas_upstream_latency_seconds", Help: "Identity provider call latency."},
}

// HistogramBounds are the upper bounds, in seconds, of each bucket.
var HistogramBounds = [BucketCount]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds rendered for use in instrument names.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
