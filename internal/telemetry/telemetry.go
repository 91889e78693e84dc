// Package telemetry installs the OpenTelemetry tracer provider.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// Config selects the OTLP collector. An empty endpoint disables export.
type Config struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
	Environment string
}

// Setup installs a batching OTLP/gRPC tracer provider and returns its
// shutdown func. Without an endpoint, or when the exporter cannot be
// built, spans stay on the no-op provider and shutdown does nothing.
func Setup(ctx context.Context, cfg Config, logger *logging.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Endpoint == "" {
		return noop
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		logger.Error("otel exporter setup failed", "error", err, "endpoint", cfg.Endpoint)
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		logger.Warn("otel resource incomplete", "error", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	logger.Info("tracing enabled", "endpoint", cfg.Endpoint, "service", cfg.ServiceName)
	return provider.Shutdown
}
