package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the checkpoint-handling tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("preempt")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartStepSpan starts a span for one checkpointing step.
	StartStepSpan(ctx context.Context, runID string, step int) (context.Context, trace.Span)

	// StartLoadSpan starts a span for loading the latest checkpoint.
	StartLoadSpan(ctx context.Context, runID string) (context.Context, trace.Span)

	// StartHandoffSpan starts a span for the preemption hand-off sequence.
	StartHandoffSpan(ctx context.Context, runID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartStepSpan starts a span for one checkpointing step.
func (m *otelSpanManager) StartStepSpan(ctx context.Context, runID string, step int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "preempt.step",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.step", step),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartLoadSpan starts a span for loading the latest checkpoint.
func (m *otelSpanManager) StartLoadSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "preempt.load_latest",
		trace.WithAttributes(
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartHandoffSpan starts a span for the preemption hand-off sequence.
func (m *otelSpanManager) StartHandoffSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "preempt.handoff",
		trace.WithAttributes(
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
