package agentcanvas

import (
	"time"

	internalmetrics "github.com/agentcanvas/agentcanvas/internal/metrics"
)

// MetricID identifies an Engine counter or histogram.
type MetricID uint16

const (
	// MetricSignInStarted counts issued authorization redirects.
	MetricSignInStarted MetricID = iota
	// MetricSignInSuccess counts completed sign-ins.
	MetricSignInSuccess
	// MetricSignInFailure counts callbacks that did not produce a session.
	MetricSignInFailure
	// MetricStateMismatch counts callbacks rejected by the OAuth state check.
	MetricStateMismatch
	// MetricSessionDecodeFailure counts session cookies that failed to open.
	MetricSessionDecodeFailure
	// MetricSessionRevoked counts sessions rejected by the revocation list.
	MetricSessionRevoked
	// MetricRefreshSuccess counts sessions re-issued by Refresh.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed refresh attempts.
	MetricRefreshFailure
	// MetricRefreshSkipped counts Refresh calls on still-fresh sessions.
	MetricRefreshSkipped
	// MetricLogout counts logouts.
	MetricLogout
	// MetricIDTokenMinted counts identity tokens signed locally.
	MetricIDTokenMinted
	// MetricMembershipHit counts membership cache hits.
	MetricMembershipHit
	// MetricMembershipMiss counts membership cache misses.
	MetricMembershipMiss
	// MetricMembershipFetchFailure counts failed upstream membership fetches.
	MetricMembershipFetchFailure
	// MetricMembershipInvalidated counts explicit cache evictions.
	MetricMembershipInvalidated
	// MetricUpstreamFailure counts failed identity provider calls.
	MetricUpstreamFailure
	// MetricUpstreamLatency is the identity provider call latency histogram.
	MetricUpstreamLatency
	metricIDCount
)

// Metrics holds Engine counters. A nil or disabled Metrics ignores writes.
type Metrics struct {
	enabled       bool
	enableLatency bool
	set           *internalmetrics.Set
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics allocates storage for every MetricID; disabled metrics still
// allocate so that toggling requires no nil checks on the write path.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
		set:           internalmetrics.NewSet(int(metricIDCount)),
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.set.Inc(int(id))
}

// Observe records d for a histogram metric. Only MetricUpstreamLatency is a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricUpstreamLatency {
		return
	}
	m.set.Observe(int(id), d)
}

// Value returns the current value of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.set.Load(int(id))
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricUpstreamLatency {
			continue
		}
		s.Counters[id] = m.set.Load(int(id))
	}
	if m.enableLatency {
		s.Histograms[MetricUpstreamLatency] = m.set.Buckets(int(MetricUpstreamLatency))
	}
	return s
}
