package histogram

import (
	"math"
	"slices"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// DefaultBuckets are latency bounds in seconds.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Histogram counts observations into fixed upper bounds.
// The last counter catches everything above the highest bound.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64
	count  uint64
	sum    float64
}

// Snapshot is a consistent copy of a histogram.
// Cumulative[i] counts observations <= Bounds[i].
type Snapshot struct {
	Count      uint64
	Sum        float64
	Bounds     []float64
	Cumulative []uint64
}

// New builds a histogram over bounds (DefaultBuckets when empty).
// NaN bounds are dropped and duplicates collapsed.
func New(bounds []float64) *Histogram {
	if len(bounds) == 0 {
		bounds = DefaultBuckets
	}
	b := make([]float64, 0, len(bounds))
	for _, v := range bounds {
		if !math.IsNaN(v) && !math.IsInf(v, +1) {
			b = append(b, v)
		}
	}
	slices.Sort(b)
	b = slices.Compact(b)

	return &Histogram{
		bounds: b,
		counts: make([]uint64, len(b)+1),
	}
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.observe(v)
	h.mu.Unlock()
}

// ObserveSlice records every value under one lock.
func (h *Histogram) ObserveSlice(vs []float64) {
	if len(vs) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, v := range vs {
		h.observe(v)
	}
}

func (h *Histogram) observe(v float64) {
	if math.IsNaN(v) {
		return
	}
	h.counts[sort.SearchFloat64s(h.bounds, v)]++
	h.count++
	h.sum += v
}

// Merge adds a snapshot taken from a histogram with the same bounds.
func (h *Histogram) Merge(s Snapshot) bool {
	if !floats.Equal(s.Bounds, h.bounds) || len(s.Cumulative) != len(h.bounds) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	var prev uint64
	for i, c := range s.Cumulative {
		h.counts[i] += c - prev
		prev = c
	}
	h.counts[len(h.bounds)] += s.Count - prev
	h.count += s.Count
	h.sum += s.Sum
	return true
}

func (h *Histogram) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Snapshot{
		Count:      h.count,
		Sum:        h.sum,
		Bounds:     slices.Clone(h.bounds),
		Cumulative: make([]uint64, len(h.bounds)),
	}
	var acc uint64
	for i := range h.bounds {
		acc += h.counts[i]
		s.Cumulative[i] = acc
	}
	return s
}

// Buckets returns the cumulative counts keyed by upper bound.
func (s Snapshot) Buckets() map[float64]uint64 {
	out := make(map[float64]uint64, len(s.Bounds))
	for i, b := range s.Bounds {
		out[b] = s.Cumulative[i]
	}
	return out
}
