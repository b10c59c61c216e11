package histogram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogramCountsIntoBounds(t *testing.T) {
	h := New([]float64{1, 5, 10})
	h.ObserveSlice([]float64{0.5, 1, 3, 7, 20, math.NaN()})
	h.Observe(10)

	s := h.Snapshot()
	assert.Equal(t, uint64(6), s.Count)
	assert.InDelta(t, 41.5, s.Sum, 1e-9)
	assert.Equal(t, []float64{1, 5, 10}, s.Bounds)
	assert.Equal(t, []uint64{2, 3, 5}, s.Cumulative)
	assert.Equal(t, map[float64]uint64{1: 2, 5: 3, 10: 5}, s.Buckets())
}

func TestHistogramNormalisesBounds(t *testing.T) {
	h := New([]float64{5, 1, 5, math.Inf(+1), math.NaN()})
	assert.Equal(t, []float64{1, 5}, h.Snapshot().Bounds)

	assert.Equal(t, DefaultBuckets, New(nil).Snapshot().Bounds)
}

func TestHistogramMerge(t *testing.T) {
	a := New([]float64{1, 2})
	a.ObserveSlice([]float64{0.5, 1.5, 3})

	b := New([]float64{1, 2})
	b.Observe(1.5)
	require.True(t, b.Merge(a.Snapshot()))

	s := b.Snapshot()
	assert.Equal(t, uint64(4), s.Count)
	assert.Equal(t, []uint64{1, 3}, s.Cumulative)

	other := New([]float64{3})
	assert.False(t, other.Merge(a.Snapshot()))
}

func TestSummaryQuantiles(t *testing.T) {
	s := NewSummary(1000, nil)
	for i := 100; i >= 1; i-- {
		s.Observe(float64(i))
	}

	snap := s.Snapshot()
	assert.Equal(t, uint64(100), snap.Count)
	assert.Equal(t, 1.0, snap.Min)
	assert.Equal(t, 100.0, snap.Max)
	assert.InDelta(t, 50.5, snap.Mean, 1e-9)
	assert.Equal(t, 50.0, snap.Quantiles[0.5])
	assert.InDelta(t, 90.0, snap.Quantiles[0.9], 1)
	assert.InDelta(t, 99.0, snap.Quantiles[0.99], 1)
	assert.Greater(t, snap.StdDev, 0.0)
}

func TestSummaryWindowKeepsRecentSamples(t *testing.T) {
	s := NewSummary(4, []float64{0, 1, 2})
	s.ObserveSlice([]float64{100, 200, 1, 2, 3, 4})

	snap := s.Snapshot()
	assert.Equal(t, uint64(6), snap.Count)
	assert.Equal(t, 200.0, snap.Max)
	assert.Len(t, snap.Quantiles, 2)
	assert.Equal(t, 1.0, snap.Quantiles[0])
	assert.Equal(t, 4.0, snap.Quantiles[1])
}

func TestEmptySummary(t *testing.T) {
	snap := NewSummary(0, nil).Snapshot()
	assert.Zero(t, snap.Count)
	assert.Zero(t, snap.Min)
	assert.Empty(t, snap.Quantiles)
}

func TestSummaryMergeKeepsTotals(t *testing.T) {
	s := NewSummary(8, []float64{0.5})
	s.Merge(SummarySnapshot{Count: 3, Sum: 30, Min: 5, Max: 15})

	snap := s.Snapshot()
	assert.Equal(t, uint64(3), snap.Count)
	assert.Equal(t, 30.0, snap.Sum)
	assert.Equal(t, 5.0, snap.Min)
	assert.Equal(t, 15.0, snap.Max)
	assert.Empty(t, snap.Quantiles)

	s.Observe(1)
	snap = s.Snapshot()
	assert.Equal(t, uint64(4), snap.Count)
	assert.Equal(t, 1.0, snap.Min)
	assert.Equal(t, 1.0, snap.Quantiles[0.5])

	s.Merge(SummarySnapshot{})
	assert.Equal(t, uint64(4), s.Snapshot().Count)
}
