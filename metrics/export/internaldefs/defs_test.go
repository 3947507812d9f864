package internaldefs

import (
	"strings"
	"testing"

	"github.com/agentcanvas/agentcanvas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryCounterHasOneDefinition(t *testing.T) {
	seen := map[agentcanvas.MetricID]bool{}
	names := map[string]bool{}
	for _, def := range CounterDefs {
		require.False(t, seen[def.ID], "duplicate id %d", def.ID)
		require.False(t, names[def.Name], "duplicate name %s", def.Name)
		seen[def.ID] = true
		names[def.Name] = true
		assert.True(t, strings.HasPrefix(def.Name, "agentcanvas_"), def.Name)
		assert.True(t, strings.HasSuffix(def.Name, "_total"), def.Name)
		assert.NotEmpty(t, def.Help)
	}
	assert.False(t, seen[agentcanvas.MetricUpstreamLatency], "latency is a histogram, not a counter")
	assert.Len(t, CounterDefs, int(agentcanvas.MetricUpstreamLatency))
}

func TestNormalizeBuckets(t *testing.T) {
	assert.Equal(t, [BucketCount]uint64{1, 2, 0, 0, 0, 0, 0, 0}, NormalizeBuckets([]uint64{1, 2}))
	assert.Equal(t, [BucketCount]uint64{}, NormalizeBuckets(nil))
	long := []uint64{1, 1, 1, 1, 1, 1, 1, 1, 9}
	assert.Equal(t, [BucketCount]uint64{1, 1, 1, 1, 1, 1, 1, 1}, NormalizeBuckets(long))
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets([BucketCount]uint64{1, 2, 3, 4, 5, 6, 7, 8})
	assert.Equal(t, [BucketCount]uint64{1, 3, 6, 10, 15, 21, 28, 36}, got)
}
