// Package tracing provides OpenTelemetry tracer setup and span helpers for
// the ratewings API server and batch commands.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Supported exporters.
const (
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// ServiceVersion is reported as service.version on every span.
const ServiceVersion = "2025.1.0"

var (
	// ErrMissingServiceName is returned when tracing is enabled without a service name.
	ErrMissingServiceName = errors.New("service name is required")
	// ErrSamplingRate is returned for sampling rates outside [0, 1].
	ErrSamplingRate = errors.New("sampling rate must be between 0 and 1")
	// ErrUnsupportedExporter is returned for unknown exporter types.
	ErrUnsupportedExporter = errors.New("unsupported exporter type")
)

// Config holds the configuration for distributed tracing.
type Config struct {
	ServiceName string
	Enabled     bool
	Environment string

	// ExporterType is otlp-grpc or otlp-http. Empty means otlp-http.
	ExporterType string
	OTLPEndpoint string

	// SamplingRate is the fraction of traces sampled, 0.0 to 1.0.
	SamplingRate float64

	// InsecureMode disables TLS for the OTLP connection.
	InsecureMode bool
}

// Validate checks an enabled configuration. A disabled configuration is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("%w, got %f", ErrSamplingRate, c.SamplingRate)
	}
	switch c.ExporterType {
	case ExporterOTLPGRPC, ExporterOTLPHTTP, "":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedExporter, c.ExporterType)
	}
	return nil
}

// Provider owns the SDK tracer provider registered as the global provider.
type Provider struct {
	tp     *sdktrace.TracerProvider
	config Config
	logger *slog.Logger
}

// NewProvider configures tracing. When cfg.Enabled is false the returned
// provider is a no-op and the global otel provider is left untouched.
func NewProvider(cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		logger.Info("tracing disabled")
		return &Provider{config: cfg, logger: logger}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if cfg.ExporterType == ExporterOTLPGRPC {
		exporter, err = newGRPCExporter(cfg)
	} else {
		exporter, err = newHTTPExporter(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRate)),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized",
		"service", cfg.ServiceName,
		"exporter", cfg.ExporterType,
		"endpoint", cfg.OTLPEndpoint,
		"sampling_rate", cfg.SamplingRate,
	)

	return &Provider{tp: tp, config: cfg, logger: logger}, nil
}

// sampler honours the parent decision so a sampled upstream request stays sampled.
func sampler(rate float64) sdktrace.Sampler {
	switch rate {
	case 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

func newHTTPExporter(cfg Config) (sdktrace.SpanExporter, error) {
	var opts []otlptracehttp.Option
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
	}
	if cfg.InsecureMode {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return otlptracehttp.New(ctx, opts...)
}

func newGRPCExporter(cfg Config) (sdktrace.SpanExporter, error) {
	var opts []otlptracegrpc.Option
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
	}
	if cfg.InsecureMode {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return otlptracegrpc.New(ctx, opts...)
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}

	p.logger.Info("shutting down tracer provider")
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}

// Tracer returns a named tracer, falling back to the global provider when disabled.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tp == nil {
		return otel.Tracer(name)
	}
	return p.tp.Tracer(name)
}

// IsEnabled reports whether spans are exported.
func (p *Provider) IsEnabled() bool {
	return p.tp != nil
}
