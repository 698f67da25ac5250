package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/makkenzo/codename-symbiont/metric"
)

// Metrics tracks search workflow outcomes. A nil receiver disables
// collection.
type Metrics struct {
	searches *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics builds orchestrator metrics and registers them with the
// registry.
func NewMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbiont_orchestrator_searches_total",
			Help: "Search workflows by the stage they ended in and failure kind",
		}, []string{"stage", "kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "symbiont_orchestrator_search_duration_seconds",
			Help:    "End-to-end search workflow time",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
	}

	if err := registry.RegisterCounterVec("orchestrator", "searches", m.searches); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("orchestrator", "search_duration", m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordSearch(endedIn State, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(endedIn.String(), kind).Inc()
	m.duration.Observe(elapsed.Seconds())
}
