// Package observability is the C16 ambient component: OpenTelemetry tracing
// and metrics export over OTLP/gRPC. Adapted from the teacher's
// pkg/observability/observability.go — the resource/tracer/meter provider
// setup and RED-metric shape are carried over; the mTLS certificate
// placeholder and mobile-agnostic service name are dropped since this
// module has no equivalent surface, and the RED counters are narrowed to
// the campaign/attack activity gauges spec §4.2 (ADDED) calls for (see
// metrics.go).
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // e.g. "localhost:4317"; empty disables export entirely
	Insecure       bool
}

// Provider owns the tracer and meter providers for the process lifetime.
type Provider struct {
	config         Config
	enabled        bool
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	meter          metric.Meter
	logger         *slog.Logger

	activeCampaigns metric.Int64UpDownCounter
	activeAttacks   metric.Int64UpDownCounter
	hashesCracked   metric.Int64Counter
}

// New creates a Provider. When cfg.OTLPEndpoint is empty, observability is a
// no-op (spec never mandates an OTLP collector be present, e.g. in lite
// mode / local dev) — every method on the returned Provider is still safe
// to call, it simply records nothing.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{config: cfg, logger: slog.Default().With("component", "observability")}
	if cfg.OTLPEndpoint == "" {
		p.logger.Info("observability disabled: OTEL_EXPORTER_OTLP_ENDPOINT not set")
		return p, nil
	}
	p.enabled = true

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	p.meter = otel.Meter("ouroboros.control-plane", metric.WithInstrumentationVersion(cfg.ServiceVersion))
	if err := p.initGauges(); err != nil {
		return nil, fmt.Errorf("failed to init gauges: %w", err)
	}

	p.logger.Info("observability initialized", "endpoint", cfg.OTLPEndpoint, "environment", cfg.Environment)
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

// initGauges sets up the campaign/attack activity gauges spec §4.2 (ADDED)
// calls for, plus a cracked-hash counter mirroring the teacher's RED
// request counter shape.
func (p *Provider) initGauges() error {
	var err error
	p.activeCampaigns, err = p.meter.Int64UpDownCounter("ouroboros.campaigns.active",
		metric.WithDescription("Campaigns currently in the active state"),
		metric.WithUnit("{campaign}"),
	)
	if err != nil {
		return err
	}
	p.activeAttacks, err = p.meter.Int64UpDownCounter("ouroboros.attacks.active",
		metric.WithDescription("Attacks currently running"),
		metric.WithUnit("{attack}"),
	)
	if err != nil {
		return err
	}
	p.hashesCracked, err = p.meter.Int64Counter("ouroboros.hashes.cracked",
		metric.WithDescription("Total hashes cracked across all campaigns"),
		metric.WithUnit("{hash}"),
	)
	return err
}

// Tracer returns a tracer for span instrumentation; safe to call even when
// observability is disabled (spans are simply dropped).
func (p *Provider) Tracer() trace.Tracer {
	return otel.Tracer("ouroboros.control-plane")
}

// Shutdown flushes and closes the providers. Safe to call on a disabled Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.Error("failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.Error("failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}
