package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reclaim/metrics/registry"
)

func populated(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(registry.Options{Bounds: []float64{1, 10, 100}})
	require.NoError(t, reg.ObserveBatch("latency", []float64{0.5, 5, 50, 500}))
	require.NoError(t, reg.ObserveBatch("size", []float64{2, 3}))
	reg.Drain()
	return reg
}

func TestCaptureReadsEverySeries(t *testing.T) {
	reg := populated(t)
	r := NewReader(reg.Epochs())
	defer r.Close()

	s := Capture(r, reg, 3, 42)
	assert.False(t, r.Active())
	assert.Equal(t, uint64(3), s.Seq)
	assert.Equal(t, uint64(42), s.JournalSeq)
	assert.NotEmpty(t, s.ID)

	require.Len(t, s.Series, 2)
	assert.Equal(t, "latency", s.Series[0].Name)
	assert.Equal(t, uint64(4), s.Series[0].Count)
	assert.Equal(t, []uint64{1, 2, 3}, s.Series[0].Cumulative)
	assert.Equal(t, 500.0, s.Series[0].Max)
	assert.Equal(t, "size", s.Series[1].Name)
}

func TestReaderPinsCollector(t *testing.T) {
	reg := populated(t)
	r := NewReader(reg.Epochs())
	defer r.Close()

	r.Begin()
	assert.True(t, r.Active())
	assert.Equal(t, 1, reg.Epochs().Stats().Pinned)
	r.End()
	assert.Equal(t, 0, reg.Epochs().Stats().Pinned)
	assert.Same(t, reg.Epochs(), r.Collector())
}

func TestEncodeDecode(t *testing.T) {
	reg := populated(t)
	r := NewReader(reg.Epochs())
	defer r.Close()
	s := Capture(r, reg, 1, 9)

	data, err := Encode(s)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.JournalSeq, got.JournalSeq)
	assert.True(t, s.Created.Equal(got.Created))
	assert.Equal(t, s.Series, got.Series)

	_, err = Decode([]byte("garbage"))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestWriterLoad(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: filepath.Join(dir, "snap")}

	missing, err := Load(w.Path())
	require.NoError(t, err)
	assert.Nil(t, missing)

	s := &Snapshot{Seq: 5, ID: "abc", Series: []SeriesEntry{{Name: "x", Count: 1}}}
	require.NoError(t, w.Write(s))
	require.NoError(t, w.Write(&Snapshot{Seq: 6, ID: "def"}))

	got, err := Load(w.Path())
	require.NoError(t, err)
	assert.Equal(t, uint64(6), got.Seq)

	entries, err := os.ReadDir(w.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are renamed away")
}

func TestRestore(t *testing.T) {
	src := populated(t)
	r := NewReader(src.Epochs())
	defer r.Close()
	s := Capture(r, src, 1, 0)

	dst := registry.New(registry.Options{Bounds: []float64{1, 10, 100}})
	n, err := Restore(dst, s)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	series, ok := dst.Lookup("latency")
	require.True(t, ok)
	assert.Equal(t, uint64(4), series.Histogram().Count)

	sum := series.Summary()
	assert.Equal(t, series.Histogram().Count, sum.Count)
	assert.InDelta(t, series.Histogram().Sum, sum.Sum, 1e-9)
	assert.Equal(t, 0.5, sum.Min)
	assert.Equal(t, 500.0, sum.Max)

	other := registry.New(registry.Options{Bounds: []float64{2}})
	n, err = Restore(other, s)
	assert.Error(t, err)
	assert.Zero(t, n)
}
