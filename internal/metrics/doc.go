// Package metrics provides lock-free counters and latency histograms for
// agentcanvas observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. Histograms use 8 fixed buckets
// (≤5ms … +Inf). Both are allocation-free on the write path.
//
// # Architecture boundaries
//
// This package owns metric storage. Metric identifiers and snapshots are
// defined by the root package; export (Prometheus, OTel) lives in
// metrics/export/.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import agentcanvas or any sibling package.
//   - Expose global metric registries.
package metrics
