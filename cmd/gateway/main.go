package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sentinelops/intel-gateway/internal/analytics"
	"github.com/sentinelops/intel-gateway/internal/clients"
	"github.com/sentinelops/intel-gateway/internal/features"
	"github.com/sentinelops/intel-gateway/internal/handlers"
	"github.com/sentinelops/intel-gateway/internal/health"
	"github.com/sentinelops/intel-gateway/internal/server"
	"github.com/sentinelops/intel-gateway/internal/tools"
	"github.com/sentinelops/intel-gateway/pkg/config"
	"github.com/sentinelops/intel-gateway/pkg/logging"
	"github.com/sentinelops/intel-gateway/pkg/metrics"
	"github.com/sentinelops/intel-gateway/pkg/resilience"
	"github.com/sentinelops/intel-gateway/pkg/tracing"
)

func main() {
	// Load environment variables from .env file if present
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.GetLogger().Fatal("Failed to load configuration: ", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "intel-gateway",
		Version:     server.Version,
	})
	if err != nil {
		logging.GetLogger().Fatal("Failed to initialize logger: ", err)
	}
	logging.SetGlobalLogger(logger)

	m := metrics.New(metrics.DefaultConfig())

	tracingService, err := tracing.NewTracingService(&tracing.Config{
		ServiceName:    "intel-gateway",
		ServiceVersion: server.Version,
		Environment:    cfg.Tracing.Environment,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracing: ", err)
	}

	aggregator := analytics.NewErrorAggregator(analytics.Config{
		HistorySize:        cfg.Analytics.HistorySize,
		Window:             cfg.Analytics.Window,
		MaxErrorsPerWindow: cfg.Analytics.MaxErrorsPerWindow,
	}, logger, m)

	retry := resilience.RetryPolicy{
		MaxRetries:      cfg.Resilience.MaxRetries,
		BaseDelay:       cfg.Resilience.BaseDelay,
		MaxDelay:        cfg.Resilience.MaxDelay,
		ExponentialBase: cfg.Resilience.ExponentialBase,
	}

	orchestrator, err := resilience.NewOrchestrator(resilience.Config{
		Retry:          retry,
		DefaultTimeout: cfg.Resilience.DefaultTimeout,
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Resilience.FailureThreshold,
			RecoveryTimeout:  cfg.Resilience.RecoveryTimeout,
			SuccessThreshold: cfg.Resilience.SuccessThreshold,
		},
	}, logger, aggregator, m)
	if err != nil {
		logger.Fatal("Invalid resilience configuration: ", err)
	}

	resolver := features.NewResolver(features.DefaultDefinitions(), features.Thresholds{
		MostlyAvailable:    cfg.Features.MostlyAvailablePercent,
		PartiallyAvailable: cfg.Features.PartiallyAvailablePercent,
	}, logger, m)

	handlerSet := handlers.NewSet(
		orchestrator,
		resolver,
		aggregator,
		retry,
		clients.NewSearchHTTPClient(cfg.Dependencies.SearchURL),
		clients.NewReputationHTTPClient(cfg.Dependencies.ReputationURL),
		clients.NewCommandCompiler(cfg.Dependencies.CompilerCommand),
	)

	catalog, err := tools.BuildCatalog(handlerSet.HandlerMap())
	if err != nil {
		logger.Fatal("Failed to build tool catalog: ", err)
	}

	dispatcher := tools.NewDispatcher(catalog, orchestrator, cfg.Resilience.DefaultTimeout, logger, m)

	monitor := health.NewMonitor(health.Config{
		Interval:     cfg.Health.Interval,
		CheckTimeout: cfg.Health.CheckTimeout,
	}, logger, m)
	monitor.Register(health.NewHTTPChecker(features.DepSearch, cfg.Dependencies.SearchURL+"/health"))
	monitor.Register(health.NewHTTPChecker(features.DepReputationAPI, cfg.Dependencies.ReputationURL+"/health"))
	monitor.Register(health.NewCommandChecker(features.DepDocCompiler, cfg.Dependencies.CompilerCommand, "--version"))

	gateway := server.New(server.Options{
		Config:       cfg,
		Logger:       logger,
		Metrics:      m,
		Tracing:      tracingService,
		Aggregator:   aggregator,
		Orchestrator: orchestrator,
		Resolver:     resolver,
		Catalog:      catalog,
		Dispatcher:   dispatcher,
		Monitor:      monitor,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gateway.Start(ctx); err != nil {
		logger.Fatal("Failed to start gateway: ", err)
	}

	logger.Info("Gateway started",
		"mcp_transport", cfg.MCP.Transport,
		"http_port", cfg.Server.Port,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	gateway.Stop(shutdownCtx)
	if err := tracingService.Shutdown(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown error", "error", err)
	}

	logger.Info("Gateway stopped")
}
