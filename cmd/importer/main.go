// Package main is the entry point for the ratings importer. It reads a JSON
// export of wing ratings and posts each one to a running API.
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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mampersat/ratewings2025/internal/importer"
	"github.com/mampersat/ratewings2025/internal/jobs"
	"github.com/mampersat/ratewings2025/internal/middleware"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	file := flag.String("file", "", "path to the JSON ratings export (required)")
	apiURL := flag.String("api", "http://localhost:8000", "base URL of the ratewings API")
	pageSize := flag.Int("page-size", 0, "page size used to list existing locations")
	metricsFile := flag.String("metrics-textfile", "", "write job metrics to this file in Prometheus text format")
	flag.Parse()

	if *help || *file == "" {
		fmt.Println("Ratewings Ratings Importer")
		fmt.Println()
		fmt.Println("Usage: importer -file ratings.json [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		if *help {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	env := os.Getenv("RATEWINGS_ENV")
	if env == "" {
		env = os.Getenv("ENV")
	}
	logger := middleware.NewLogger(env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *file, *apiURL, *pageSize, *metricsFile); err != nil {
		logger.Error("import failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, path, apiURL string, pageSize int, metricsFile string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := importer.ReadEntries(f)
	if err != nil {
		return err
	}
	logger.Info("read ratings export", "path", path, "entries", len(entries))

	reg := prometheus.NewRegistry()
	metrics := jobs.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	var clientOpts []importer.ClientOption
	if pageSize > 0 {
		clientOpts = append(clientOpts, importer.WithPageSize(pageSize))
	}
	im := importer.New(importer.NewClient(apiURL, clientOpts...),
		importer.WithMetrics(metrics),
		importer.WithLogger(logger),
	)

	runErr := im.Run(ctx, entries)
	im.Stats().LogSummary(logger, path)

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			logger.Error("failed to write metrics", "path", metricsFile, "error", err)
		}
	}
	return runErr
}
