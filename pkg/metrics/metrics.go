package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry gauges
	FrontendsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "maxwell_frontends_total",
			Help: "Total number of registered frontends",
		},
	)

	BackendsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "maxwell_backends_total",
			Help: "Total number of configured backends",
		},
	)

	ServicesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maxwell_services_total",
			Help: "Total number of known services by health state",
		},
		[]string{"health"},
	)

	RouteVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "maxwell_route_version",
			Help: "Current route table version counter",
		},
	)

	TopicCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "maxwell_topic_cache_entries",
			Help: "Approximate number of entries held in the topic placement cache",
		},
	)

	// Connection/dispatcher metrics
	ConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maxwell_connections_active",
			Help: "Active connections by declared node type",
		},
		[]string{"node_type"},
	)

	DispatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maxwell_dispatch_requests_total",
			Help: "Total dispatched protocol requests by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	DispatchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maxwell_dispatch_request_duration_seconds",
			Help:    "Protocol request handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// HTTP selector metrics
	HTTPSelectRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maxwell_http_select_requests_total",
			Help: "Total HTTP frontend-selection requests by locality and status",
		},
		[]string{"locality", "status"},
	)

	// Backend/topic-set checksum changes
	TopicCacheInvalidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maxwell_topic_cache_invalidations_total",
			Help: "Total number of times the topic table was truncated due to a backend-set change",
		},
	)
)

func init() {
	prometheus.MustRegister(FrontendsTotal)
	prometheus.MustRegister(BackendsTotal)
	prometheus.MustRegister(ServicesTotal)
	prometheus.MustRegister(RouteVersion)
	prometheus.MustRegister(TopicCacheEntries)
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(DispatchRequestsTotal)
	prometheus.MustRegister(DispatchRequestDuration)
	prometheus.MustRegister(HTTPSelectRequestsTotal)
	prometheus.MustRegister(TopicCacheInvalidationsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
