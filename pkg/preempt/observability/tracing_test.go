package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("preempt")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartStepSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	ctx := context.Background()
	_, span := sm.StartStepSpan(ctx, "run-1", 7)
	require.NotNil(t, span)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	s := spans[0]
	assert.Equal(t, "preempt.step", s.Name)

	var runID string
	var step int64
	for _, attr := range s.Attributes {
		switch attr.Key {
		case "run.id":
			runID = attr.Value.AsString()
		case "run.step":
			step = attr.Value.AsInt64()
		}
	}
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, int64(7), step)
}

func TestStartLoadAndHandoffSpans(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	ctx := context.Background()

	_, loadSpan := sm.StartLoadSpan(ctx, "run-1")
	loadSpan.End()

	_, handoffSpan := sm.StartHandoffSpan(ctx, "run-1")
	handoffSpan.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "preempt.load_latest", spans[0].Name)
	assert.Equal(t, "preempt.handoff", spans[1].Name)
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("sets OK status for nil error", func(t *testing.T) {
		_, span := sm.StartStepSpan(context.Background(), "run-1", 0)
		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	t.Run("sets Error status and records error", func(t *testing.T) {
		exporter.Reset()

		_, span := sm.StartStepSpan(context.Background(), "run-1", 0)
		sm.EndSpanWithError(span, errors.New("save failed"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, codes.Error, s.Status.Code)
		assert.Equal(t, "save failed", s.Status.Description)

		found := false
		for _, event := range s.Events {
			if event.Name == "exception" {
				found = true
			}
		}
		assert.True(t, found, "Expected exception event")
	})

	t.Run("nil span does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(nil, nil)
			sm.EndSpanWithError(nil, errors.New("test"))
		})
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("adds event to current span", func(t *testing.T) {
		ctx, span := sm.StartStepSpan(context.Background(), "run-1", 3)

		sm.AddSpanEvent(ctx, "checkpoint_saved",
			attribute.String("path", "/d/r1_00000003.ckpt"),
			attribute.Int64("size_bytes", 1024),
		)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		found := false
		for _, event := range spans[0].Events {
			if event.Name == "checkpoint_saved" {
				found = true
			}
		}
		assert.True(t, found, "Expected checkpoint_saved event")
	})

	t.Run("no panic with no current span", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(context.Background(), "orphan_event")
		})
	})
}
