package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// refresh engine and query path.
type Metrics struct {
	RefreshCycles   *prometheus.CounterVec // labels: outcome={success,upstream_error,normalize_error}
	RefreshDuration prometheus.Histogram
	SnapshotSize    prometheus.Gauge
	RecordsDropped  prometheus.Counter
	SnapshotPublish *prometheus.CounterVec // labels: sink={store,kafka}, outcome={success,error}

	// Geo resolution metrics.
	GeoLookups        *prometheus.CounterVec // labels: outcome={success,error,default}
	GeoCache          *prometheus.CounterVec // labels: result={hit,miss}
	GeoLookupDuration prometheus.Histogram

	// Query path metrics.
	QueriesServed prometheus.Counter
	QueryDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshCycles,
		m.RefreshDuration,
		m.SnapshotSize,
		m.RecordsDropped,
		m.SnapshotPublish,
		m.GeoLookups,
		m.GeoCache,
		m.GeoLookupDuration,
		m.QueriesServed,
		m.QueryDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelter_status",
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shelter_status",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-swap cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SnapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shelter_status",
			Name:      "snapshot_shelters",
			Help:      "Number of canonical shelters in the published snapshot.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shelter_status",
			Name:      "records_dropped_total",
			Help:      "Raw records dropped during normalization.",
		}),
		SnapshotPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelter_status",
			Name:      "snapshot_publish_total",
			Help:      "Snapshot publications to secondary sinks by outcome.",
		}, []string{"sink", "outcome"}),
		GeoLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelter_status",
			Name:      "geo_lookups_total",
			Help:      "External geolocation lookups by outcome.",
		}, []string{"outcome"}),
		GeoCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelter_status",
			Name:      "geo_cache_total",
			Help:      "Geo cache lookups by result.",
		}, []string{"result"}),
		GeoLookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shelter_status",
			Name:      "geo_lookup_duration_seconds",
			Help:      "External geolocation request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		QueriesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shelter_status",
			Name:      "queries_total",
			Help:      "Shelter queries served.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shelter_status",
			Name:      "query_duration_seconds",
			Help:      "Duration of the filter/sort/aggregate pipeline.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}
