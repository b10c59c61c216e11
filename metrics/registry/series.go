package registry

import (
	"sync/atomic"

	"reclaim/metrics/bucket"
	"reclaim/metrics/histogram"
)

// Series is one named stream of samples.
type Series struct {
	name    string
	pending *bucket.Bucket[float64]
	hist    *histogram.Histogram
	summary *histogram.Summary
	drained atomic.Uint64
}

func (s *Series) Name() string { return s.name }

// Push records v without locking.
func (s *Series) Push(v float64) { s.pending.Push(v) }

func (s *Series) PushSlice(vs []float64) {
	for _, v := range vs {
		s.pending.Push(v)
	}
}

// Pending is the number of samples not yet drained.
func (s *Series) Pending() int { return s.pending.Len() }

// Drained is the number of samples moved into the aggregates so far.
func (s *Series) Drained() uint64 { return s.drained.Load() }

// drain moves pending samples into the aggregates.
func (s *Series) drain() int {
	n := 0
	s.pending.ClearWith(func(vs []float64) {
		s.hist.ObserveSlice(vs)
		s.summary.ObserveSlice(vs)
		n += len(vs)
	})
	s.drained.Add(uint64(n))
	return n
}

func (s *Series) Histogram() histogram.Snapshot { return s.hist.Snapshot() }

func (s *Series) Summary() histogram.SummarySnapshot { return s.summary.Snapshot() }

// Restore folds a previously persisted histogram and summary totals into
// the series. Nothing is merged when the histogram bounds differ.
func (s *Series) Restore(h histogram.Snapshot, sum histogram.SummarySnapshot) bool {
	if !s.hist.Merge(h) {
		return false
	}
	s.summary.Merge(sum)
	s.drained.Add(h.Count)
	return true
}
