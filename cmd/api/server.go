package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mampersat/ratewings2025/internal/api"
	"github.com/mampersat/ratewings2025/internal/auth"
	"github.com/mampersat/ratewings2025/internal/config"
	"github.com/mampersat/ratewings2025/internal/db"
	"github.com/mampersat/ratewings2025/internal/events"
	"github.com/mampersat/ratewings2025/internal/health"
	"github.com/mampersat/ratewings2025/internal/location"
	"github.com/mampersat/ratewings2025/internal/middleware"
	"github.com/mampersat/ratewings2025/internal/tracing"
)

// app owns the server's dependencies and the wrapped HTTP handler.
type app struct {
	handler  http.Handler
	registry *prometheus.Registry

	closeOnce sync.Once
	closers   []func()
}

// newApp connects configured backing services and builds the handler chain.
// Without DATABASE_URL locations live in memory; without REDIS_URL rate
// limits are per process; without NATS_URL events are dropped.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.onClose(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown tracing", "error", err)
		}
	})

	httpMetrics := middleware.NewMetrics()
	locationMetrics := location.NewMetrics()
	for _, m := range []interface {
		Register(prometheus.Registerer) error
	}{httpMetrics, locationMetrics} {
		if err := m.Register(a.registry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, dbChecker, err := a.openStore(ctx, cfg, logger, migrate)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		p, err := events.ConnectNATS(events.NATSConfig{
			URL:            cfg.NATSURL,
			SubjectPrefix:  cfg.NATSSubjectPrefix,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			ConnectTimeout: 5 * time.Second,
		}, logger)
		if err != nil {
			return nil, err
		}
		publisher = p
		a.onClose(p.Close)
		logger.Info("publishing events to nats", "prefix", cfg.NATSSubjectPrefix)
	}

	var rateStore middleware.RateLimitStore
	var redisChecker api.HealthChecker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		a.onClose(func() { _ = client.Close() })
		rateStore = middleware.NewRedisRateLimitStore(client,
			middleware.WithRedisMetrics(httpMetrics),
			middleware.WithRedisLogger(logger))
		redisChecker = health.NewRedisChecker(client)
	} else {
		rateStore = middleware.NewInMemoryRateLimitStore()
	}

	var admin api.TokenVerifier
	if cfg.AdminJWTSecret != "" {
		admin = auth.NewTokenService(cfg.AdminJWTSecret, cfg.AdminJWTPreviousSecret)
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes are unauthenticated")
	}

	service := location.NewService(store, publisher, locationMetrics, logger)
	mux := api.NewRouter(api.RouterConfig{
		Service:            service,
		DefaultMaxDistance: cfg.DefaultMaxDistance,
		Admin:              admin,
		Health:             api.HealthHandlersConfig{DB: dbChecker, Redis: redisChecker},
		Metrics:            promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
	})

	limit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitRequests,
		WindowDuration:    cfg.RateLimitWindow,
	}
	if err := limit.Validate(); err != nil {
		return nil, err
	}

	// RequestID -> Logging -> Tracing -> HTTPMetrics -> CORS -> RateLimiter -> mux
	var handler http.Handler = mux
	handler = middleware.RateLimiter(rateStore, limit, middleware.IPKeyFunc(), httpMetrics)(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)
	a.handler = handler

	return a, nil
}

// openStore returns the PostgreSQL store when DATABASE_URL is set and the
// in-memory store otherwise.
func (a *app) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (location.Store, api.HealthChecker, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		store := location.NewInMemoryStore()
		return store, health.NewDBChecker(health.PingFunc(store.Ping)), nil
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
	if err != nil {
		return nil, nil, err
	}
	a.onClose(func() { closeDB(conn, logger) })

	if migrate {
		applied, err := db.Migrate(ctx, conn, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("database migrated", "applied", len(applied))
	}

	return location.NewPostgresStore(conn, logger), health.NewDBChecker(conn), nil
}

func closeDB(conn *sql.DB, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
}

// Handler returns the fully wrapped HTTP handler.
func (a *app) Handler() http.Handler {
	return a.handler
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases dependencies in reverse order of acquisition. Safe to call
// more than once.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
	})
}
