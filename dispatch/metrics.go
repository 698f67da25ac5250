package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/makkenzo/codename-symbiont/metric"
)

// Metrics tracks dispatch loop activity across every loop in the process.
// Built once and shared; the loop label distinguishes loops. A nil receiver
// disables collection.
type Metrics struct {
	received        *prometheus.CounterVec
	decodeFailures  *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	inFlight        *prometheus.GaugeVec
	handlerTime     *prometheus.HistogramVec
}

// NewMetrics builds dispatch metrics and registers them with the registry.
func NewMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	m := &Metrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbiont_dispatch_received_total",
			Help: "Decoded messages handed to handlers per loop",
		}, []string{"loop"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbiont_dispatch_decode_failures_total",
			Help: "Messages dropped because the payload failed to decode",
		}, []string{"loop"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbiont_dispatch_handler_failures_total",
			Help: "Handler invocations that returned an error or panicked",
		}, []string{"loop"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbiont_dispatch_dropped_total",
			Help: "Decoded messages dropped because the concurrency cap was full",
		}, []string{"loop"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "symbiont_dispatch_in_flight",
			Help: "Handlers currently running per loop",
		}, []string{"loop"}),
		handlerTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "symbiont_dispatch_handler_duration_seconds",
			Help:    "Handler execution time per loop",
			Buckets: prometheus.DefBuckets,
		}, []string{"loop"}),
	}

	if err := registry.RegisterCounterVec("dispatch", "received", m.received); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("dispatch", "decode_failures", m.decodeFailures); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("dispatch", "handler_failures", m.handlerFailures); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("dispatch", "dropped", m.dropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec("dispatch", "in_flight", m.inFlight); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("dispatch", "handler_duration", m.handlerTime); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) recordReceived(loop string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(loop).Inc()
}

func (m *Metrics) recordDecodeFailure(loop string) {
	if m == nil {
		return
	}
	m.decodeFailures.WithLabelValues(loop).Inc()
}

func (m *Metrics) recordDropped(loop string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(loop).Inc()
}

func (m *Metrics) handlerStarted(loop string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(loop).Inc()
}

func (m *Metrics) handlerFinished(loop string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(loop).Dec()
	m.handlerTime.WithLabelValues(loop).Observe(elapsed.Seconds())
	if err != nil {
		m.handlerFailures.WithLabelValues(loop).Inc()
	}
}
