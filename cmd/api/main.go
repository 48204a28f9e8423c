// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mampersat/ratewings2025/internal/auth"
	"github.com/mampersat/ratewings2025/internal/config"
	"github.com/mampersat/ratewings2025/internal/middleware"
)

const serviceName = "ratewings-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to a YAML config file")
	migrate := flag.Bool("migrate", false, "apply database migrations before serving")
	issueToken := flag.String("issue-admin-token", "", "print an admin token for `subject` and exit")
	tokenTTL := flag.Duration("token-ttl", auth.DefaultAdminTokenExpiry, "lifetime of issued admin tokens")
	flag.Parse()

	if *help {
		fmt.Println("Ratewings API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
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

	if *issueToken != "" {
		if cfg.AdminJWTSecret == "" {
			logger.Error("ADMIN_JWT_SECRET is required to issue tokens")
			os.Exit(1)
		}
		token, err := auth.NewTokenService(cfg.AdminJWTSecret, cfg.AdminJWTPreviousSecret).Issue(*issueToken, *tokenTTL)
		if err != nil {
			logger.Error("failed to issue admin token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		os.Exit(0)
	}

	summary := cfg.LogSummary()
	attrs := make([]any, 0, len(summary)*2)
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("configuration loaded", attrs...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger, *migrate)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := serve(ctx, server, logger); err != nil {
		logger.Error("server error", "error", err)
		app.Close()
		os.Exit(1)
	}
}

// serve runs server until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
