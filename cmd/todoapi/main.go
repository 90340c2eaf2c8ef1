// Command todoapi serves the multi-tenant todo REST API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxorio/todoapi/pkg/core"
	obs "github.com/fluxorio/todoapi/pkg/observability/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "YAML or JSON config file (optional)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := core.NewLogger(core.LoggerConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.DefaultRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(ctx, cfg, logger, obs.DefaultRegistry, obs.GetMetrics())
	if err != nil {
		logger.Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	if err := a.run(ctx); err != nil {
		logger.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
