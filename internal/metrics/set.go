package metrics

import (
	"sync/atomic"
	"time"
)

// BucketCount is the number of latency histogram buckets.
const BucketCount = 8

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type histogram struct {
	buckets [BucketCount]uint64
}

// Set is a fixed-size array of counters and histograms indexed by metric id.
type Set struct {
	counters   []paddedCounter
	histograms []histogram
}

// NewSet allocates n counter and histogram slots.
func NewSet(n int) *Set {
	return &Set{
		counters:   make([]paddedCounter, n),
		histograms: make([]histogram, n),
	}
}

// Len returns the number of slots.
func (s *Set) Len() int {
	return len(s.counters)
}

// Inc adds one to counter i. Out-of-range ids are ignored.
func (s *Set) Inc(i int) {
	if i < 0 || i >= len(s.counters) {
		return
	}
	atomic.AddUint64(&s.counters[i].value, 1)
}

// Load returns counter i.
func (s *Set) Load(i int) uint64 {
	if i < 0 || i >= len(s.counters) {
		return 0
	}
	return atomic.LoadUint64(&s.counters[i].value)
}

// Observe records d in histogram i.
func (s *Set) Observe(i int, d time.Duration) {
	if i < 0 || i >= len(s.histograms) {
		return
	}
	atomic.AddUint64(&s.histograms[i].buckets[BucketIndex(d)], 1)
}

// Buckets returns the non-cumulative bucket counts of histogram i.
func (s *Set) Buckets(i int) []uint64 {
	out := make([]uint64, BucketCount)
	if i < 0 || i >= len(s.histograms) {
		return out
	}
	for b := 0; b < BucketCount; b++ {
		out[b] = atomic.LoadUint64(&s.histograms[i].buckets[b])
	}
	return out
}

// BucketIndex maps a duration to its bucket.
func BucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
