// Command advisor runs the telemetry filtering-and-labeling advisor as a
// standalone process: it samples buffered telemetry on an interval,
// consults an LLM for recommendations, optionally installs the resulting
// filter rules, and exposes a status API for operators.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telemetryadvisor/advisor/internal/config"
	"github.com/telemetryadvisor/advisor/internal/obsmetrics"
	"github.com/telemetryadvisor/advisor/internal/processor"
	"github.com/telemetryadvisor/advisor/internal/statusapi"
	"github.com/telemetryadvisor/advisor/internal/telemetrylog"
)

func main() {
	configPath := flag.String("config", "", "path to the advisor YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "advisor: loading config: %v\n", err)
		os.Exit(1)
	}

	level, err := telemetrylog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "advisor: %v\n", err)
		os.Exit(1)
	}
	logger, err := telemetrylog.New(telemetrylog.WithLevel(level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "advisor: building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	metrics := obsmetrics.New(registry)

	proc, err := processor.New(processor.Config{
		APIKey:                cfg.APIKey,
		BaseURL:               cfg.BaseURL,
		Model:                 cfg.Model,
		MaxSampleSize:         cfg.MaxSampleSize,
		SamplingInterval:      cfg.SamplingInterval,
		EnableCache:           cfg.EnableCache,
		CacheExpiration:       cfg.CacheExpiration,
		EnableRateLimit:       cfg.EnableRateLimit,
		RateLimitRPM:          cfg.RateLimitRPM,
		AutoApplyFilters:      cfg.AutoApplyFilters,
		MaxFilterRules:        cfg.MaxFilterRules,
		FilterTimeout:         cfg.FilterTimeout,
		FallbackToStatic:      cfg.FallbackToStatic,
		PolicyFile:            cfg.PolicyFile,
		PolicyReloadInterval:  cfg.PolicyReloadInterval,
		AnonymizerOverlayFile: cfg.AnonymizerOverlayFile,
	}, metrics, logger)
	if err != nil {
		logger.Fatalw("failed to construct processor", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := proc.Start(ctx); err != nil {
		logger.Fatalw("failed to start processor", "error", err)
	}

	status := statusapi.New(cfg.StatusAddr, proc, cfg.MetricsEnabled, registry, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := <-status.Start(); err != nil {
			errCh <- fmt.Errorf("status api server error: %w", err)
		}
	}()

	logger.Infow("advisor started", "status_addr", cfg.StatusAddr, "sampling_interval", cfg.SamplingInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Errorw("fatal server error", "error", err)
	case sig := <-sigCh:
		logger.Infow("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	proc.Stop()
	if err := status.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("error shutting down status api server", "error", err)
	}

	logger.Info("advisor shutdown complete")
}
