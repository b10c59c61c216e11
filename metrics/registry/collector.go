package registry

import (
	"github.com/prometheus/client_golang/prometheus"
)

type descs struct {
	samples      *prometheus.Desc
	summary      *prometheus.Desc
	pending      *prometheus.Desc
	epoch        *prometheus.Desc
	participants *prometheus.Desc
	queuedBags   *prometheus.Desc
	deferred     *prometheus.Desc
	reclaimed    *prometheus.Desc
	advances     *prometheus.Desc
}

func newDescs(ns string) descs {
	series := []string{"series"}
	return descs{
		samples: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "samples"),
			"Drained samples per series.", series, nil),
		summary: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "samples_summary"),
			"Quantiles over the most recent drained samples.", series, nil),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "pending_samples"),
			"Samples pushed but not yet drained.", series, nil),
		epoch: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "epoch", "current"),
			"Current global epoch.", nil, nil),
		participants: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "epoch", "participants"),
			"Registered epoch participants.", nil, nil),
		queuedBags: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "epoch", "queued_bags"),
			"Sealed bags waiting for reclamation.", nil, nil),
		deferred: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "epoch", "deferred_total"),
			"Functions deferred through guards.", nil, nil),
		reclaimed: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "epoch", "reclaimed_total"),
			"Deferred functions that have run.", nil, nil),
		advances: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "epoch", "advances_total"),
			"Global epoch advances.", nil, nil),
	}
}

func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	d := r.descs
	for _, desc := range []*prometheus.Desc{
		d.samples, d.summary, d.pending,
		d.epoch, d.participants, d.queuedBags, d.deferred, d.reclaimed, d.advances,
	} {
		ch <- desc
	}
}

func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	d := r.descs

	r.Each(func(s *Series) bool {
		h := s.Histogram()
		ch <- prometheus.MustNewConstHistogram(d.samples, h.Count, h.Sum, h.Buckets(), s.Name())

		sum := s.Summary()
		ch <- prometheus.MustNewConstSummary(d.summary, sum.Count, sum.Sum, sum.Quantiles, s.Name())

		ch <- prometheus.MustNewConstMetric(d.pending, prometheus.GaugeValue, float64(s.Pending()), s.Name())
		return true
	})

	st := r.EpochStats()
	ch <- prometheus.MustNewConstMetric(d.epoch, prometheus.GaugeValue, float64(st.Epoch))
	ch <- prometheus.MustNewConstMetric(d.participants, prometheus.GaugeValue, float64(st.Participants))
	ch <- prometheus.MustNewConstMetric(d.queuedBags, prometheus.GaugeValue, float64(st.QueuedBags))
	ch <- prometheus.MustNewConstMetric(d.deferred, prometheus.CounterValue, float64(st.Deferred))
	ch <- prometheus.MustNewConstMetric(d.reclaimed, prometheus.CounterValue, float64(st.Reclaimed))
	ch <- prometheus.MustNewConstMetric(d.advances, prometheus.CounterValue, float64(st.Advances))
}
