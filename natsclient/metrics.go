package natsclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/makkenzo/codename-symbiont/metric"
)

// busMetrics tracks core bus operations. A nil receiver disables collection,
// so the client never branches on whether metrics are configured.
type busMetrics struct {
	published     *prometheus.CounterVec
	publishErrors *prometheus.CounterVec
	received      *prometheus.CounterVec
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
}

func newBusMetrics(registry *metric.MetricsRegistry) (*busMetrics, error) {
	m := &busMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbiont_bus_published_total",
			Help: "Messages published per subject",
		}, []string{"subject"}),
		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbiont_bus_publish_errors_total",
			Help: "Publish failures per subject",
		}, []string{"subject"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbiont_bus_received_total",
			Help: "Messages received per subscribed subject",
		}, []string{"subject"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbiont_bus_requests_total",
			Help: "Request/reply calls per subject and outcome",
		}, []string{"subject", "outcome"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "symbiont_bus_request_duration_seconds",
			Help:    "Request/reply round-trip time per subject",
			Buckets: prometheus.DefBuckets,
		}, []string{"subject"}),
	}

	if err := registry.RegisterCounterVec("natsclient", "published", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("natsclient", "publish_errors", m.publishErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("natsclient", "received", m.received); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("natsclient", "requests", m.requests); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("natsclient", "request_duration", m.requestTime); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *busMetrics) recordPublished(subject string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(subject).Inc()
}

func (m *busMetrics) recordPublishError(subject string) {
	if m == nil {
		return
	}
	m.publishErrors.WithLabelValues(subject).Inc()
}

func (m *busMetrics) recordReceived(subject string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(subject).Inc()
}

func (m *busMetrics) recordRequest(subject string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(subject, outcome).Inc()
	m.requestTime.WithLabelValues(subject).Observe(elapsed.Seconds())
}
