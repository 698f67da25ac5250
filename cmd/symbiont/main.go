// Package main is the entry point for the symbiont pipeline. One binary
// hosts any subset of the services, selected with -services; every instance
// talks to the others only through the NATS bus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/makkenzo/codename-symbiont/bridge"
	"github.com/makkenzo/codename-symbiont/component"
	"github.com/makkenzo/codename-symbiont/config"
	"github.com/makkenzo/codename-symbiont/dispatch"
	"github.com/makkenzo/codename-symbiont/gateway"
	"github.com/makkenzo/codename-symbiont/health"
	"github.com/makkenzo/codename-symbiont/metric"
	"github.com/makkenzo/codename-symbiont/natsclient"
	"github.com/makkenzo/codename-symbiont/orchestrator"
	"github.com/makkenzo/codename-symbiont/pkg/embedding"
	"github.com/makkenzo/codename-symbiont/pkg/graphstore"
	"github.com/makkenzo/codename-symbiont/pkg/vectorstore"
	"github.com/makkenzo/codename-symbiont/worker/knowledgegraph"
	"github.com/makkenzo/codename-symbiont/worker/perception"
	"github.com/makkenzo/codename-symbiont/worker/preprocess"
	"github.com/makkenzo/codename-symbiont/worker/textgen"
	"github.com/makkenzo/codename-symbiont/worker/vectormemory"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "symbiont"
)

// healthPollInterval drives the monitor snapshot behind /healthz.
const healthPollInterval = 10 * time.Second

// healthReporter is implemented by runners that expose a health snapshot.
type healthReporter interface {
	Health() health.Status
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, buf[:n])
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.LogLevel != "" {
		cfg.LogLevel = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.LogFormat = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	slog.Info("starting symbiont", "version", Version, "services", cliCfg.Services)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	natsClient, err := connectNATS(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer natsClient.Close(context.Background()) //nolint:errcheck // best-effort drain

	dispatchMetrics, err := dispatch.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("register dispatch metrics: %w", err)
	}

	deps := component.Dependencies{
		Bus:             natsClient,
		MetricsRegistry: registry,
		DispatchMetrics: dispatchMetrics,
		Logger:          logger,
	}

	runners, err := buildServices(ctx, cliCfg, cfg, deps, monitor, registry)
	if err != nil {
		return err
	}

	// Gateway processes expose /metrics themselves; worker-only processes
	// get the standalone endpoint.
	if !cliCfg.enabled("gateway") && cfg.Metrics.Port > 0 {
		metricsServer := metric.NewServer(cfg.Metrics.Port, "/metrics", registry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer metricsServer.Stop() //nolint:errcheck // best-effort teardown
	}

	return supervise(ctx, runners, monitor, cliCfg.ShutdownTimeout)
}

func connectNATS(ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry) (*natsclient.Client, error) {
	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithMetrics(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, cfg.NATS.ConnectTimeout)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	return client, nil
}

// buildServices constructs the selected runners. Stores and the embedder are
// created only for services that need them.
func buildServices(
	ctx context.Context,
	cliCfg *CLIConfig,
	cfg *config.Config,
	deps component.Dependencies,
	monitor *health.Monitor,
	registry *metric.MetricsRegistry,
) ([]component.Runner, error) {
	var runners []component.Runner

	if cliCfg.enabled("perception") {
		runners = append(runners, perception.New(deps, perception.Config{
			RatePerSecond: cfg.Perception.RatePerSecond,
			FetchTimeout:  cfg.Perception.FetchTimeout,
			UserAgent:     cfg.Perception.UserAgent,
		}))
	}

	if cliCfg.enabled("preprocess") {
		cache, err := embedding.NewMemoryCache(cfg.Embedding.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
		embedder, err := embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
			APIKey:  cfg.Embedding.APIKey,
			Timeout: cfg.Embedding.Timeout,
			Cache:   cache,
			Logger:  deps.GetLoggerWithComponent("embedder"),
		})
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		runners = append(runners, preprocess.New(deps, embedder))
	}

	if cliCfg.enabled("textgen") {
		runners = append(runners, textgen.New(deps))
	}

	if cliCfg.enabled("vectormemory") {
		store, err := vectorstore.NewPG(ctx, vectorstore.Config{
			ConnString: cfg.Postgres.URL,
			Dimensions: cfg.Postgres.VectorDims,
			Logger:     deps.GetLoggerWithComponent("vectorstore"),
		})
		if err != nil {
			return nil, fmt.Errorf("create vector store: %w", err)
		}
		runners = append(runners, vectormemory.New(deps, store))
	}

	if cliCfg.enabled("knowledgegraph") {
		store, err := graphstore.NewPG(ctx, graphstore.Config{
			ConnString: cfg.Postgres.URL,
			Logger:     deps.GetLoggerWithComponent("graphstore"),
		})
		if err != nil {
			return nil, fmt.Errorf("create graph store: %w", err)
		}
		runners = append(runners, knowledgegraph.New(deps, store))
	}

	if cliCfg.enabled("gateway") {
		bridgeMetrics, err := bridge.NewMetrics(registry)
		if err != nil {
			return nil, fmt.Errorf("register bridge metrics: %w", err)
		}
		orchMetrics, err := orchestrator.NewMetrics(registry)
		if err != nil {
			return nil, fmt.Errorf("register orchestrator metrics: %w", err)
		}

		eventBridge := bridge.New(deps.Bus,
			bridge.WithCapacity(cfg.Bridge.Capacity),
			bridge.WithLogger(deps.GetLoggerWithComponent("bridge")),
			bridge.WithMetrics(bridgeMetrics))
		orch := orchestrator.New(deps.Bus, orchestrator.Config{
			EmbedTimeout:  cfg.Search.EmbedTimeout,
			SearchTimeout: cfg.Search.SearchTimeout,
		}, orchestrator.WithLogger(deps.GetLogger()),
			orchestrator.WithMetrics(orchMetrics))

		srv, err := gateway.New(gateway.Config{
			Addr:            cfg.HTTP.Addr,
			Bus:             deps.Bus,
			Searcher:        orch,
			Bridge:          eventBridge,
			Monitor:         monitor,
			Registry:        registry,
			Logger:          deps.GetLogger(),
			ReadTimeout:     cfg.HTTP.ReadTimeout,
			WriteTimeout:    cfg.HTTP.WriteTimeout,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create gateway: %w", err)
		}
		runners = append(runners, eventBridge, &gatewayRunner{srv: srv})
	}

	return runners, nil
}

// gatewayRunner adapts the blocking HTTP server to the runner lifecycle.
type gatewayRunner struct {
	srv    *gateway.Server
	cancel context.CancelFunc
	done   chan error
}

func (g *gatewayRunner) Name() string { return "gateway" }

func (g *gatewayRunner) Start(ctx context.Context) error {
	srvCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan error, 1)
	go func() { g.done <- g.srv.ListenAndServe(srvCtx) }()
	return nil
}

func (g *gatewayRunner) Stop(timeout time.Duration) error {
	if g.cancel == nil {
		return nil
	}
	g.cancel()
	select {
	case err := <-g.done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("gateway did not stop within %v", timeout)
	}
}

// supervise starts every runner, keeps the health monitor current, and stops
// everything in reverse order on shutdown.
func supervise(ctx context.Context, runners []component.Runner, monitor *health.Monitor, shutdownTimeout time.Duration) error {
	var started []component.Runner
	stopAll := func() {
		for i := len(started) - 1; i >= 0; i-- {
			r := started[i]
			if err := r.Stop(shutdownTimeout); err != nil {
				slog.Error("service stop failed", "service", r.Name(), "error", err)
			}
		}
	}

	for _, r := range runners {
		if err := r.Start(ctx); err != nil {
			stopAll()
			return fmt.Errorf("start %s: %w", r.Name(), err)
		}
		started = append(started, r)
		slog.Info("service started", "service", r.Name())
	}

	g, pollCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pollHealth(pollCtx, started, monitor)
		return nil
	})

	slog.Info("symbiont running", "services", len(started))
	<-ctx.Done()
	slog.Info("received shutdown signal")

	stopAll()
	_ = g.Wait()
	slog.Info("symbiont shutdown complete")
	return nil
}

func pollHealth(ctx context.Context, runners []component.Runner, monitor *health.Monitor) {
	update := func() {
		for _, r := range runners {
			if hr, ok := r.(healthReporter); ok {
				monitor.Update(r.Name(), hr.Health())
			}
		}
	}
	update()

	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
