package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "disaster_match"

// Metrics holds the Prometheus counters, histograms, and gauges for the matcher service.
type Metrics struct {
	// Collector metrics.
	CollectorRefreshes *prometheus.CounterVec // labels: kind={live,window}, outcome={success,error}
	SnapshotSize       prometheus.Gauge
	FeedDuration       prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty,throttled}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Matching metrics.
	EventsMatched           prometheus.Counter
	AlertsRaised            prometheus.Counter
	BatchProcessingDuration prometheus.Histogram

	// Broker metrics.
	Messages        *prometheus.CounterVec // labels: result={consumed,acked,requeued,dropped}
	Publishes       *prometheus.CounterVec // labels: routing_key, outcome={success,error}
	ConsumerRunning prometheus.Gauge

	RelaySubscribers prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		CollectorRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_refreshes_total",
			Help:      "Disaster feed refreshes by kind and outcome.",
		}, []string{"kind", "outcome"}),
		SnapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Disaster records in the most recently installed live snapshot.",
		}),
		FeedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_request_duration_seconds",
			Help:      "EONET request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when free-text geocoding is enabled, 0 otherwise.",
		}),
		EventsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_matched_total",
			Help:      "Calendar events run through the matcher.",
		}),
		AlertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Calendar events with at least one nearby disaster.",
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch resolve-fetch-match cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Work-queue messages by handling result.",
		}, []string{"result"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Topic publishes by routing key and outcome.",
		}, []string{"routing_key", "outcome"}),
		ConsumerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumer_running",
			Help:      "1 when the work-queue consumer is active, 0 when shut down.",
		}),
		RelaySubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_subscribers",
			Help:      "Connected realtime stream subscribers.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CollectorRefreshes,
		m.SnapshotSize,
		m.FeedDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.EventsMatched,
		m.AlertsRaised,
		m.BatchProcessingDuration,
		m.Messages,
		m.Publishes,
		m.ConsumerRunning,
		m.RelaySubscribers,
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
