package component

import (
	"log/slog"

	"github.com/makkenzo/codename-symbiont/dispatch"
	"github.com/makkenzo/codename-symbiont/metric"
	"github.com/makkenzo/codename-symbiont/natsclient"
)

// Dependencies provides the shared infrastructure handed to every worker
// and service at construction time. Fields other than Bus may be nil; the
// accessors fall back to sane defaults so components never have to check.
type Dependencies struct {
	Bus             natsclient.Bus          // message bus for publish/subscribe/request
	MetricsRegistry *metric.MetricsRegistry // Prometheus registry (can be nil)
	DispatchMetrics *dispatch.Metrics       // shared dispatch loop metrics (can be nil)
	Logger          *slog.Logger            // structured logger (can be nil, defaults to slog.Default())
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
