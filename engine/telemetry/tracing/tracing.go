// Package tracing wires a real OpenTelemetry tracer provider for AEGIS,
// grounded on the teacher's NewOpenTelemetryTracer (engine/monitoring).
// Unlike the teacher, which layers a hand-rolled no-op tracer behind its
// own Tracer interface, AEGIS exposes the otel trace.Tracer directly since
// every component already accepts context.Context.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// New builds a process-wide tracer provider with no external exporter
// (spans are recorded but not shipped; wiring an OTLP exporter is an
// operational concern left to the deployment, not the core pipeline).
func New(serviceName, environment string) oteltrace.Tracer {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("deployment.environment", environment),
		)),
	)
	otel.SetTracerProvider(tp)
	return otel.Tracer(serviceName)
}

// StartCycle starts a span for one scheduler tick's pass over one floor.
func StartCycle(ctx context.Context, tracer oteltrace.Tracer, floorID string) (context.Context, oteltrace.Span) {
	return tracer.Start(ctx, "cycle.floor", oteltrace.WithAttributes(
		attribute.String("floor_id", floorID),
	))
}

// ExtractIDs returns the trace and span id strings for the span recorded on
// ctx, used by engine/telemetry/logging to correlate log lines with traces.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
