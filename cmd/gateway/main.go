package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/edge-gateway/internal/config"
	"github.com/tjfontaine/edge-gateway/internal/logging"
	"github.com/tjfontaine/edge-gateway/internal/telemetry"
	"github.com/tjfontaine/edge-gateway/pkg/gateway"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config.yaml")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closeLogs, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer closeLogs()
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdownTracer, err := telemetry.InitTracer(cfg.Tracing, logger, nil)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	gw, err := gateway.New(
		gateway.WithLogger(logger),
		gateway.WithConfigFile(*configPath),
	)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gw.Start(ctx); err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping gateway...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
