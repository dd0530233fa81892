package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the map service.
type Metrics struct {
	Refreshes        *prometheus.CounterVec // labels: outcome={success,error}
	FeedDuration     prometheus.Histogram
	FeedRows         prometheus.Gauge
	RowsSkipped      *prometheus.CounterVec // labels: reason={coordinates,filtered}
	Markers          *prometheus.GaugeVec   // labels: style
	LastRefresh      prometheus.Gauge
	RefresherRunning prometheus.Gauge

	// Snapshot publishing metrics.
	SnapshotsPublished prometheus.Counter
	SnapshotErrors     prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Refreshes,
		m.FeedDuration,
		m.FeedRows,
		m.RowsSkipped,
		m.Markers,
		m.LastRefresh,
		m.RefresherRunning,
		m.SnapshotsPublished,
		m.SnapshotErrors,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
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
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetmap",
			Name:      "refreshes_total",
			Help:      "Feed refresh cycles by outcome.",
		}, []string{"outcome"}),
		FeedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fleetmap",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of a feed fetch and parse.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		FeedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetmap",
			Name:      "feed_rows",
			Help:      "Rows in the most recently loaded feed.",
		}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetmap",
			Name:      "rows_skipped_total",
			Help:      "Rows left off the map by reason.",
		}, []string{"reason"}),
		Markers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fleetmap",
			Name:      "markers",
			Help:      "Markers placed by the last render pass, by style.",
		}, []string{"style"}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetmap",
			Name:      "last_successful_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		RefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetmap",
			Name:      "refresher_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetmap",
			Name:      "snapshots_published_total",
			Help:      "Marker snapshots written to the snapshot topic.",
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetmap",
			Name:      "snapshot_errors_total",
			Help:      "Failed marker snapshot publishes.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetmap",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetmap",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fleetmap",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetmap",
			Name:      "geocode_enabled",
			Help:      "1 when address enrichment is enabled, 0 otherwise.",
		}),
	}
}
