// Package main is the entry point for the review comment backfill job.
// It copies heat and created_at values embedded in legacy review comments
// into their own columns.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mampersat/ratewings2025/internal/backfill"
	"github.com/mampersat/ratewings2025/internal/config"
	"github.com/mampersat/ratewings2025/internal/db"
	"github.com/mampersat/ratewings2025/internal/jobs"
	"github.com/mampersat/ratewings2025/internal/location"
	"github.com/mampersat/ratewings2025/internal/middleware"
	"github.com/mampersat/ratewings2025/internal/tracing"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to a YAML config file")
	dryRun := flag.Bool("dry-run", false, "report changes without writing them")
	migrate := flag.Bool("migrate", false, "apply database migrations first")
	metricsFile := flag.String("metrics-textfile", "", "write job metrics to this file in Prometheus text format")
	flag.Parse()

	if *help {
		fmt.Println("Ratewings Comment Backfill")
		fmt.Println()
		fmt.Println("Usage: backfill [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			slog.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *dryRun, *migrate, *metricsFile); err != nil {
		logger.Error("backfill failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, dryRun, migrate bool, metricsFile string) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "ratewings-backfill",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown tracing", "error", err)
		}
	}()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer conn.Close()

	if migrate {
		if _, err := db.Migrate(ctx, conn, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	metrics := jobs.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	runner := backfill.NewRunner(location.NewPostgresStore(conn, logger),
		backfill.WithDryRun(dryRun),
		backfill.WithMetrics(metrics),
		backfill.WithLogger(logger),
	)
	res, runErr := runner.Run(ctx)

	logger.Info("backfill finished",
		"dry_run", dryRun,
		"scanned", res.Scanned,
		"heat_updated", res.HeatUpdated,
		"created_at_updated", res.CreatedAtUpdated,
		"unchanged", res.Unchanged,
		"invalid_heat", res.InvalidHeat,
		"failed", res.Failed,
	)

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			logger.Error("failed to write metrics", "path", metricsFile, "error", err)
		}
	}
	return runErr
}
