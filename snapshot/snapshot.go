package snapshot

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"reclaim/metrics/histogram"
	"reclaim/metrics/registry"
)

var ErrInvalidPayload = errors.New("snapshot: invalid payload")

type Snapshot struct {
	Seq     uint64
	ID      string
	Created time.Time
	// JournalSeq is the last journal record folded into Series.
	JournalSeq uint64
	Series     []SeriesEntry
}

type SeriesEntry struct {
	Name       string
	Count      uint64
	Sum        float64
	Bounds     []float64
	Cumulative []uint64

	Min       float64
	Max       float64
	Mean      float64
	StdDev    float64
	Quantiles map[float64]float64
}

// Histogram returns the entry's bucket counts in the form Series.Restore
// expects.
func (e SeriesEntry) Histogram() histogram.Snapshot {
	return histogram.Snapshot{
		Count:      e.Count,
		Sum:        e.Sum,
		Bounds:     e.Bounds,
		Cumulative: e.Cumulative,
	}
}

// Summary returns the entry's running totals. Quantiles are left out.
func (e SeriesEntry) Summary() histogram.SummarySnapshot {
	return histogram.SummarySnapshot{
		Count: e.Count,
		Sum:   e.Sum,
		Min:   e.Min,
		Max:   e.Max,
	}
}

// Capture reads every series of reg between r.Begin and r.End.
func Capture(r *Reader, reg *registry.Registry, seq, journalSeq uint64) *Snapshot {
	r.Begin()
	defer r.End()

	s := &Snapshot{
		Seq:        seq,
		ID:         uuid.NewString(),
		Created:    time.Now().UTC(),
		JournalSeq: journalSeq,
		Series:     make([]SeriesEntry, 0, reg.Len()),
	}
	reg.Each(func(series *registry.Series) bool {
		h := series.Histogram()
		sum := series.Summary()
		s.Series = append(s.Series, SeriesEntry{
			Name:       series.Name(),
			Count:      h.Count,
			Sum:        h.Sum,
			Bounds:     h.Bounds,
			Cumulative: h.Cumulative,
			Min:        sum.Min,
			Max:        sum.Max,
			Mean:       sum.Mean,
			StdDev:     sum.StdDev,
			Quantiles:  sum.Quantiles,
		})
		return true
	})
	return s
}

// Restore folds the persisted histograms and summary totals of s into reg. Series whose
// bounds no longer match the registry are skipped and reported.
func Restore(reg *registry.Registry, s *Snapshot) (int, error) {
	var errs []error
	restored := 0
	for _, e := range s.Series {
		series, err := reg.Get(e.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !series.Restore(e.Histogram(), e.Summary()) {
			errs = append(errs, fmt.Errorf("snapshot: series %q: bucket bounds changed", e.Name))
			continue
		}
		restored++
	}
	return restored, errors.Join(errs...)
}

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Encode serializes s as zstd-compressed gob.
func Encode(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return encoder.EncodeAll(buf.Bytes(), nil), nil
}

func Decode(data []byte) (*Snapshot, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &s, nil
}
