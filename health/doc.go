// Package health provides thread-safe health status tracking and aggregation
// for symbiont services.
//
// Workers report their state to a shared Monitor; the gateway serves the
// aggregated snapshot at /healthz. Three states are distinguished: healthy,
// degraded (reduced functionality), and unhealthy. Aggregation follows the
// weakest member: any unhealthy sub-status makes the system unhealthy, any
// degraded one makes it degraded.
//
//	monitor := health.NewMonitor()
//	monitor.UpdateHealthy("preprocess", "loops running")
//	monitor.UpdateDegraded("vectormemory", "reconnecting to postgres")
//
//	system := monitor.AggregateHealth("symbiont")
//
// Messages exposed externally should pass through SanitizeMessage, which
// strips URLs, paths, addresses, and credential-shaped substrings.
package health
