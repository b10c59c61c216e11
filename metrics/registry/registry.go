package registry

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/puzpuzpuz/xsync/v2"

	"reclaim/infra/epoch"
	"reclaim/metrics/bucket"
	"reclaim/metrics/histogram"
)

const maxNameLen = 128

var ErrInvalidName = errors.New("invalid series name")

// Options configures every series of a registry.
type Options struct {
	Namespace string
	Bounds    []float64
	Window    int
	Quantiles []float64
}

type Registry struct {
	opts   Options
	series *xsync.MapOf[string, *Series]
	epochs *epoch.Collector
	descs  descs
}

func New(opts Options) *Registry {
	if opts.Namespace == "" {
		opts.Namespace = "reclaim"
	}
	return &Registry{
		opts:   opts,
		series: xsync.NewMapOf[*Series](),
		epochs: epoch.NewCollector(),
		descs:  newDescs(opts.Namespace),
	}
}

// ValidName reports whether name can be used as a series name.
func ValidName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, maxNameLen)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: not utf-8", ErrInvalidName)
	}
	return nil
}

// Get returns the series for name, creating it on first use.
func (r *Registry) Get(name string) (*Series, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	s, _ := r.series.LoadOrCompute(name, func() *Series {
		return &Series{
			name:    name,
			pending: bucket.NewWithCollector[float64](r.epochs),
			hist:    histogram.New(r.opts.Bounds),
			summary: histogram.NewSummary(r.opts.Window, r.opts.Quantiles),
		}
	})
	return s, nil
}

// Lookup returns an existing series.
func (r *Registry) Lookup(name string) (*Series, bool) {
	return r.series.Load(name)
}

func (r *Registry) Observe(name string, v float64) error {
	s, err := r.Get(name)
	if err != nil {
		return err
	}
	s.Push(v)
	return nil
}

func (r *Registry) ObserveBatch(name string, vs []float64) error {
	s, err := r.Get(name)
	if err != nil {
		return err
	}
	s.PushSlice(vs)
	return nil
}

// Drain moves every pending sample into its series aggregates and
// returns how many samples moved. Only one goroutine should drain.
func (r *Registry) Drain() int {
	n := 0
	r.series.Range(func(_ string, s *Series) bool {
		n += s.drain()
		return true
	})
	return n
}

// Each visits series in name order until fn returns false.
func (r *Registry) Each(fn func(*Series) bool) {
	for _, name := range r.Names() {
		s, ok := r.series.Load(name)
		if !ok {
			continue
		}
		if !fn(s) {
			return
		}
	}
}

func (r *Registry) Names() []string {
	names := make([]string, 0, r.series.Size())
	r.series.Range(func(name string, _ *Series) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int { return r.series.Size() }

// EpochStats reports the collector protecting the series buckets.
func (r *Registry) EpochStats() epoch.Stats { return r.epochs.Stats() }

// Epochs is the collector guarding the series buckets. Readers that need
// a consistent view across series pin it.
func (r *Registry) Epochs() *epoch.Collector { return r.epochs }
