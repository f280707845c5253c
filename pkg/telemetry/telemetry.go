// Package telemetry exports the loader's startup spans over OTLP/HTTP.
//
// Exporting is off unless an endpoint is configured. Without it the global
// tracer provider stays the otel no-op one and Tracer hands out spans that
// are dropped.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/daimatz/warzone-loader/pkg/config"
)

// InstrumentationName is the tracer name used by the loader packages.
const InstrumentationName = "github.com/daimatz/warzone-loader"

// Attribute keys describing the loaded game on every exported span.
const (
	AttrGameID  = attribute.Key("warzone.game.id")
	AttrGameJar = attribute.Key("warzone.game.jar")
)

// Service describes the process whose startup is traced.
type Service struct {
	Name        string
	Version     string
	GameID      string
	GameJar     string
	Development bool
}

func (s Service) environment() string {
	if s.Development {
		return "development"
	}
	return "production"
}

// Resource builds the otel resource for s.
func (s Service) Resource(ctx context.Context) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(s.Name),
		semconv.DeploymentEnvironment(s.environment()),
	}
	if s.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(s.Version))
	}
	if s.GameID != "" {
		attrs = append(attrs, AttrGameID.String(s.GameID))
	}
	if s.GameJar != "" {
		attrs = append(attrs, AttrGameJar.String(s.GameJar))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

// Shutdown flushes pending spans.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Setup registers a batching OTLP/HTTP tracer provider for svc when cfg
// enables it, and returns the flush function the caller defers. Disabled or
// endpoint-less configs register nothing.
func Setup(ctx context.Context, svc Service, cfg config.Telemetry) (Shutdown, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return noop, nil
	}

	res, err := svc.Resource(ctx)
	if err != nil {
		return noop, fmt.Errorf("telemetry resource: %w", err)
	}
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otlp exporter for %s: %w", cfg.Endpoint, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// Tracer returns the loader tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
