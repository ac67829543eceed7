package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cycle metrics
	ScanCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealscan_cycles_total",
			Help: "Total number of scan cycles started",
		},
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealscan_scan_duration_seconds",
			Help:    "Per-source scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "status"},
	)

	// Listing metrics
	ListingsFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscan_listings_found_total",
			Help: "Total number of candidates returned by source fetches",
		},
		[]string{"source"},
	)

	ListingsNew = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscan_listings_new_total",
			Help: "Total number of listings persisted for the first time",
		},
		[]string{"source", "alert_level"},
	)

	ListingsUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscan_listings_updated_total",
			Help: "Total number of known listings refreshed",
		},
		[]string{"source"},
	)

	DetailFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscan_detail_fetches_total",
			Help: "Total number of second-pass detail page fetches",
		},
		[]string{"source", "status"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscan_notifications_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"channel", "status"},
	)

	// Breaker metrics: 0 closed, 1 half-open, 2 open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dealscan_breaker_state",
			Help: "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
		},
		[]string{"source"},
	)

	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscan_fetch_failures_total",
			Help: "Total number of fetch failures by classification",
		},
		[]string{"source", "kind"},
	)
)

// SetBreakerState maps the breaker state string to its gauge value.
func SetBreakerState(source, state string) {
	v := 0.0
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	BreakerState.WithLabelValues(source).Set(v)
}
