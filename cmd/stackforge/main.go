package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stackforge/stackforge/cmd/stackforge/commands"
	"github.com/stackforge/stackforge/pkg/telemetry"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	tel, err := telemetry.NewTelemetry(telemetryConfig())
	if err != nil {
		log.Error().Err(err).Msg("Invalid telemetry configuration")
		os.Exit(1)
	}
	log.Logger = tel.Logger.Zerolog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = tel.WithContext(ctx)

	if tel.Config.Metrics.Enabled {
		if err := tel.StartMetricsServer(); err != nil {
			log.Warn().Err(err).Msg("Failed to start metrics server")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received interrupt signal, shutting down...")
		cancel()
	}()

	runErr := commands.Execute(ctx, Version, Commit, BuildDate)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("Command execution failed")
		os.Exit(1)
	}
}

// telemetryConfig builds the telemetry configuration from the environment.
// STACKFORGE_ENV selects the profile; LOG_LEVEL, STACKFORGE_METRICS_ADDR,
// and STACKFORGE_TRACE override individual settings.
func telemetryConfig() *telemetry.Config {
	var cfg *telemetry.Config
	switch os.Getenv("STACKFORGE_ENV") {
	case "ci":
		cfg = telemetry.CIConfig()
	case "dev", "development":
		cfg = telemetry.DevelopmentConfig()
	default:
		cfg = telemetry.DefaultConfig()
	}
	cfg.ServiceVersion = Version

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if addr := os.Getenv("STACKFORGE_METRICS_ADDR"); addr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = addr
	}
	switch os.Getenv("STACKFORGE_TRACE") {
	case "stdout":
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = "stdout"
	case "none":
		cfg.Tracing.Enabled = false
	}
	return cfg
}
