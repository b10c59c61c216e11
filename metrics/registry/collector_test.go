package registry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func family(t *testing.T, mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %q not gathered", name)
	return nil
}

func TestGatheredHistogramMatchesDrain(t *testing.T) {
	r := New(Options{Namespace: "test", Bounds: []float64{1, 10}})
	require.NoError(t, r.ObserveBatch("latency", []float64{0.5, 5, 50}))
	require.NoError(t, r.Observe("latency", 7))
	r.Drain()
	require.NoError(t, r.Observe("latency", 2))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(r))
	mfs, err := reg.Gather()
	require.NoError(t, err)

	hist := family(t, mfs, "test_samples")
	assert.Equal(t, dto.MetricType_HISTOGRAM, hist.GetType())
	h := hist.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(4), h.GetSampleCount())
	assert.InDelta(t, 62.5, h.GetSampleSum(), 1e-9)
	require.Len(t, h.GetBucket(), 2)
	assert.Equal(t, uint64(1), h.GetBucket()[0].GetCumulativeCount())
	assert.Equal(t, uint64(3), h.GetBucket()[1].GetCumulativeCount())

	pending := family(t, mfs, "test_pending_samples")
	assert.Equal(t, 1.0, pending.GetMetric()[0].GetGauge().GetValue())

	label := pending.GetMetric()[0].GetLabel()[0]
	assert.Equal(t, "series", label.GetName())
	assert.Equal(t, "latency", label.GetValue())

	advances := family(t, mfs, "test_epoch_advances_total")
	assert.Equal(t, dto.MetricType_COUNTER, advances.GetType())
}
