// internal/observability/observability.go
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// InstrumentationName is the tracer and meter name used across lockguard.
const InstrumentationName = "github.com/avivl/lockguard"

// MetricsClient interface for metrics operations
type MetricsClient interface {
	// Increment increments a counter by the given amount
	Increment(ctx context.Context, name string, value int64, attributes ...string)

	// RecordLatency records a duration, in milliseconds, on a histogram
	RecordLatency(ctx context.Context, name string, duration time.Duration, attributes ...string) error
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

// Increment implements MetricsClient.
func (NopMetrics) Increment(context.Context, string, int64, ...string) {}

// RecordLatency implements MetricsClient.
func (NopMetrics) RecordLatency(context.Context, string, time.Duration, ...string) error { return nil }

// OTelMetrics implements MetricsClient using OpenTelemetry
type OTelMetrics struct {
	meter  metric.Meter
	logger *SLogger
}

// InitProvider initializes OpenTelemetry with the given configuration.
// When cfg.Enabled is false the global no-op providers are left in place and
// the returned shutdown function does nothing.
func InitProvider(ctx context.Context, cfg Config) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "localhost:4317"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	dialOpt := grpc.WithTransportCredentials(insecure.NewCredentials())

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTelEndpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithDialOption(dialOpt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTelEndpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(dialOpt),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(10*time.Second)),
		),
	)
	otel.SetMeterProvider(meterProvider)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := errors.Join(tracerProvider.Shutdown(shutdownCtx), meterProvider.Shutdown(shutdownCtx))
		if err != nil {
			fmt.Printf("Error shutting down telemetry providers: %v\n", err)
		}
	}, nil
}

// Tracer returns the lockguard tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// NewMetricsClient creates a new OpenTelemetry metrics client
func NewMetricsClient(cfg Config, l *SLogger) (*OTelMetrics, error) {
	return NewMetricsClientWithProvider(otel.GetMeterProvider(), cfg, l)
}

// NewMetricsClientWithProvider creates a metrics client on an explicit meter provider.
func NewMetricsClientWithProvider(provider metric.MeterProvider, cfg Config, l *SLogger) (*OTelMetrics, error) {
	if provider == nil {
		return nil, errors.New("meter provider is nil")
	}
	if l == nil {
		l = NewNopLogger()
	}
	name := cfg.ServiceName
	if name == "" {
		name = InstrumentationName
	}
	meter := provider.Meter(
		name,
		metric.WithInstrumentationVersion(cfg.ServiceVersion),
	)

	return &OTelMetrics{
		meter:  meter,
		logger: l,
	}, nil
}

// Increment increments a counter metric
func (m *OTelMetrics) Increment(ctx context.Context, name string, value int64, attributes ...string) {
	counter, err := m.meter.Int64Counter(name)
	if err != nil {
		m.logger.Errorf("Failed to create counter metric '%s': %v", name, err)
		return
	}

	counter.Add(ctx, value, metric.WithAttributes(attributesFromTags(attributes)...))
}

// RecordLatency records a latency histogram sample in milliseconds
func (m *OTelMetrics) RecordLatency(ctx context.Context, name string, duration time.Duration, attributes ...string) error {
	histogram, err := m.meter.Float64Histogram(name, metric.WithUnit("ms"))
	if err != nil {
		return fmt.Errorf("failed to create histogram metric '%s': %w", name, err)
	}

	ms := float64(duration) / float64(time.Millisecond)
	histogram.Record(ctx, ms, metric.WithAttributes(attributesFromTags(attributes)...))
	return nil
}

// Helper function to convert string tags to OpenTelemetry attributes
func attributesFromTags(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		attrs = append(attrs, attribute.String(tags[i], tags[i+1]))
	}
	return attrs
}
