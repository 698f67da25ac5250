// Package metric provides Prometheus-based metrics collection and an HTTP
// server for Symbiont pipeline monitoring and observability.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (service status, message processing, NATS health) and
// custom component metrics. It includes an HTTP server exposing metrics in
// Prometheus format for monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Platform-level metrics automatically registered (Metrics type)
//  2. Service Registry: Extensible registration for component-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: Metrics endpoint with health checks (Server type)
//
// This separates infrastructure concerns (core metrics) from application
// concerns (component metrics) while providing a unified metrics endpoint.
//
// # Basic Usage
//
// Setting up metrics collection and HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordServiceStatus("preprocess", 2) // 2 = running
//	coreMetrics.RecordMessageReceived("preprocess", "raw_text")
//
// # Component Metrics
//
// Components register their own metrics under a service-scoped key, which
// guards against duplicate registration across restarts:
//
//	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
//	    Name: "symbiont_dispatch_decode_failures_total",
//	    Help: "Messages dropped because the envelope failed to decode",
//	}, []string{"subject"})
//	if err := registry.RegisterCounterVec("dispatch", "decode_failures", counter); err != nil {
//	    return err
//	}
//
// Components built with a nil registry run with metrics disabled; every
// recording helper is safe to call in that state.
package metric
