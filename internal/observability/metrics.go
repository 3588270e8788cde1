package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the warning client.
type Metrics struct {
	// Warning service metrics.
	APIRequests *prometheus.CounterVec   // labels: endpoint={list,detail}, outcome={success,http_error,error}
	APIDuration *prometheus.HistogramVec // labels: endpoint={list,detail}

	// Session metrics.
	CacheLookups     *prometheus.CounterVec // labels: result={hit,miss}
	StaleWrites      prometheus.Counter
	RegionSelections prometheus.Counter
	CachedWarnings   prometheus.Gauge
	Refreshes        *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.APIRequests,
		m.APIDuration,
		m.CacheLookups,
		m.StaleWrites,
		m.RegionSelections,
		m.CachedWarnings,
		m.Refreshes,
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
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "api_requests_total",
			Help:      "Warning service requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "floodwatch",
			Name:      "api_request_duration_seconds",
			Help:      "Warning service request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "cache_lookups_total",
			Help:      "Warning cache lookups by result.",
		}, []string{"result"}),
		StaleWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "stale_writes_discarded_total",
			Help:      "Detail fetch results dropped because the region changed while in flight.",
		}),
		RegionSelections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "region_selections_total",
			Help:      "Region selections, each starting a new cache epoch.",
		}),
		CachedWarnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodwatch",
			Name:      "cached_warnings",
			Help:      "Parsed warnings held for the current region.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "refreshes_total",
			Help:      "Watch-mode region refreshes by outcome.",
		}, []string{"outcome"}),
	}
}
