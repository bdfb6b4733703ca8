// Package metrics holds the Prometheus instrumentation for one Forest.
//
// Each Forest owns its own prometheus.Registry instead of registering against
// the global DefaultRegisterer, so more than one Forest can live in the same
// process without collector name collisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of collectors a Forest updates as it runs.
type Metrics struct {
	Registry *prometheus.Registry

	EntriesSeen    prometheus.Counter
	PointStoreSize prometheus.Gauge
	TotalSizeBytes prometheus.Gauge
	Score          prometheus.Histogram
	UpdateSeconds  prometheus.Histogram
	ScoreSeconds   prometheus.Histogram
}

// New creates a fresh Metrics bound to its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		EntriesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rcf_entries_seen_total",
			Help: "Number of points passed to Forest.Update.",
		}),
		PointStoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rcf_point_store_size",
			Help: "Number of distinct points currently retained by the shared point store.",
		}),
		TotalSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rcf_total_size_bytes",
			Help: "Estimated memory held by the point store.",
		}),
		Score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcf_score",
			Help:    "Anomaly scores returned by Forest.Score.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		UpdateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcf_update_seconds",
			Help:    "Wall time spent in Forest.Update.",
			Buckets: prometheus.DefBuckets,
		}),
		ScoreSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcf_score_seconds",
			Help:    "Wall time spent in Forest.Score.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EntriesSeen,
		m.PointStoreSize,
		m.TotalSizeBytes,
		m.Score,
		m.UpdateSeconds,
		m.ScoreSeconds,
	)

	return m
}
