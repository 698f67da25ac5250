package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/makkenzo/codename-symbiont/metric"
)

// Metrics tracks bridge fan-out. A nil receiver disables collection.
type Metrics struct {
	events      prometheus.Counter
	lagEvents   prometheus.Counter
	lagMissed   prometheus.Counter
	subscribers prometheus.Gauge
}

// NewMetrics builds bridge metrics and registers them with the registry.
func NewMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symbiont_bridge_events_total",
			Help: "Events offered to the broadcast ring",
		}),
		lagEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symbiont_bridge_lag_notifications_total",
			Help: "Lag notifications delivered to slow subscribers",
		}),
		lagMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symbiont_bridge_lag_missed_total",
			Help: "Events skipped past by lagging subscribers",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "symbiont_bridge_subscribers",
			Help: "Currently connected stream subscribers",
		}),
	}

	if err := registry.RegisterCounter("bridge", "events", m.events); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("bridge", "lag_notifications", m.lagEvents); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("bridge", "lag_missed", m.lagMissed); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("bridge", "subscribers", m.subscribers); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordEvent() {
	if m == nil {
		return
	}
	m.events.Inc()
}

func (m *Metrics) recordLag(missed uint64) {
	if m == nil {
		return
	}
	m.lagEvents.Inc()
	m.lagMissed.Add(float64(missed))
}

func (m *Metrics) setSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}
