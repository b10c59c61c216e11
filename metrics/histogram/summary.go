package histogram

import (
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// DefaultQuantiles are reported by summaries unless overridden.
var DefaultQuantiles = []float64{0.5, 0.9, 0.99}

// DefaultWindow is the number of recent samples a summary keeps.
const DefaultWindow = 4096

// Summary keeps running totals and a ring of the most recent samples
// from which quantiles are computed.
type Summary struct {
	mu        sync.Mutex
	window    []float64
	next      int
	full      bool
	quantiles []float64

	count uint64
	sum   float64
	min   float64
	max   float64
}

type SummarySnapshot struct {
	Count     uint64
	Sum       float64
	Min       float64
	Max       float64
	Mean      float64
	StdDev    float64
	Quantiles map[float64]float64
}

func NewSummary(window int, quantiles []float64) *Summary {
	if window <= 0 {
		window = DefaultWindow
	}
	if len(quantiles) == 0 {
		quantiles = DefaultQuantiles
	}
	q := make([]float64, 0, len(quantiles))
	for _, p := range quantiles {
		if p >= 0 && p <= 1 {
			q = append(q, p)
		}
	}
	return &Summary{
		window:    make([]float64, window),
		quantiles: q,
		min:       math.Inf(+1),
		max:       math.Inf(-1),
	}
}

func (s *Summary) Observe(v float64) {
	s.mu.Lock()
	s.observe(v)
	s.mu.Unlock()
}

func (s *Summary) ObserveSlice(vs []float64) {
	if len(vs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vs {
		s.observe(v)
	}
}

func (s *Summary) observe(v float64) {
	if math.IsNaN(v) {
		return
	}
	s.window[s.next] = v
	s.next++
	if s.next == len(s.window) {
		s.next = 0
		s.full = true
	}
	s.count++
	s.sum += v
	s.min = math.Min(s.min, v)
	s.max = math.Max(s.max, v)
}

// Merge adds the running totals of a persisted summary. The sample window
// is not carried over, so quantiles only reflect samples observed here.
func (s *Summary) Merge(o SummarySnapshot) {
	if o.Count == 0 {
		return
	}
	s.mu.Lock()
	s.count += o.Count
	s.sum += o.Sum
	s.min = math.Min(s.min, o.Min)
	s.max = math.Max(s.max, o.Max)
	s.mu.Unlock()
}

func (s *Summary) Snapshot() SummarySnapshot {
	s.mu.Lock()
	n := s.next
	if s.full {
		n = len(s.window)
	}
	sorted := slices.Clone(s.window[:n])
	out := SummarySnapshot{
		Count:     s.count,
		Sum:       s.sum,
		Quantiles: make(map[float64]float64, len(s.quantiles)),
	}
	if s.count > 0 {
		out.Min, out.Max = s.min, s.max
		out.Mean = s.sum / float64(s.count)
	}
	quantiles := s.quantiles
	s.mu.Unlock()

	if len(sorted) == 0 {
		return out
	}
	slices.Sort(sorted)
	for _, p := range quantiles {
		out.Quantiles[p] = stat.Quantile(p, stat.Empirical, sorted, nil)
	}
	if len(sorted) > 1 {
		out.StdDev = stat.StdDev(sorted, nil)
	}
	return out
}
