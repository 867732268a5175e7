package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
}

// SetupTracing installs a tracer provider exporting to stdout and returns its
// shutdown function. Replace the exporter with OTLP for real deployments.
func SetupTracing(serviceName string) (func(context.Context) error, error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("init stdouttrace exporter: %w", err)
	}
	res, err := newResource(serviceName)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// SetupMetrics installs a meter provider backed by a Prometheus exporter
// registered on reg. The registry is then served by promhttp.
func SetupMetrics(serviceName string, reg prometheus.Registerer) (*metric.MeterProvider, error) {
	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("init prometheus exporter: %w", err)
	}
	res, err := newResource(serviceName)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}
	mp := metric.NewMeterProvider(
		metric.WithReader(exp),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}
