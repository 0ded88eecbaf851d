// Package tracing wires one process-wide OpenTelemetry tracer provider
// with an OTLP-over-gRPC exporter and exposes the per-stage span helper
// the pipeline orchestrator uses for machine-readable timing.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/veridocs/trainforge/internal/types"
)

const tracerName = "github.com/veridocs/trainforge/internal/pipeline"

// Tracer owns the process-wide TracerProvider and its shutdown.
type Tracer struct {
	provider *sdktrace.TracerProvider
}

// InitTracer configures an OTLP-over-gRPC exporter pointed at endpoint. An
// empty endpoint disables export but still installs a provider, so
// StartStage spans always have somewhere to go (a no-op exporter would
// otherwise require every caller to nil-check).
func InitTracer(ctx context.Context, endpoint string) (*Tracer, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("trainforge-pipeline")),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if endpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithTimeout(5*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("tracing: build otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return &Tracer{provider: provider}, nil
}

// Shutdown flushes and closes the tracer provider. Safe to call on a nil
// Tracer (e.g. when tracing was never initialized).
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartStage opens a span named after stage, the pipeline orchestrator's
// one call-site per stage. The returned end function records err (if any)
// as the span status and closes the span — callers defer it.
func StartStage(ctx context.Context, stage types.StageID) (context.Context, func(err error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, string(stage), trace.WithAttributes(
		attribute.String("pipeline.stage", string(stage)),
	))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
