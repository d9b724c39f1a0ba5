package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records checkpoint-handling metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordSave records a checkpoint save with its duration and size.
	RecordSave(ctx context.Context, runID string, duration time.Duration, sizeBytes int64, err error)

	// RecordPrune records a retention pass.
	RecordPrune(ctx context.Context, runID string, keepLatest bool)

	// RecordResume records a successful resume from a checkpoint.
	RecordResume(ctx context.Context, runID string, step int)

	// RecordPreemption records a completed preemption hand-off.
	RecordPreemption(ctx context.Context, runID string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	saves          metric.Int64Counter
	saveLatency    metric.Float64Histogram
	saveErrors     metric.Int64Counter
	checkpointSize metric.Int64Histogram
	prunes         metric.Int64Counter
	resumes        metric.Int64Counter
	preemptions    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("preempt")

	saves, err := meter.Int64Counter("preempt.checkpoint.saves",
		metric.WithDescription("Number of checkpoint saves"),
	)
	if err != nil {
		return nil, err
	}

	saveLatency, err := meter.Float64Histogram("preempt.checkpoint.save_latency_ms",
		metric.WithDescription("Checkpoint save latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	saveErrors, err := meter.Int64Counter("preempt.checkpoint.save_errors",
		metric.WithDescription("Number of failed checkpoint saves"),
	)
	if err != nil {
		return nil, err
	}

	checkpointSize, err := meter.Int64Histogram("preempt.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	prunes, err := meter.Int64Counter("preempt.checkpoint.prunes",
		metric.WithDescription("Number of retention passes"),
	)
	if err != nil {
		return nil, err
	}

	resumes, err := meter.Int64Counter("preempt.run.resumes",
		metric.WithDescription("Number of resumes from a checkpoint"),
	)
	if err != nil {
		return nil, err
	}

	preemptions, err := meter.Int64Counter("preempt.run.preemptions",
		metric.WithDescription("Number of completed preemption hand-offs"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		saves:          saves,
		saveLatency:    saveLatency,
		saveErrors:     saveErrors,
		checkpointSize: checkpointSize,
		prunes:         prunes,
		resumes:        resumes,
		preemptions:    preemptions,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordSave records a checkpoint save.
func (m *otelMetrics) RecordSave(ctx context.Context, runID string, duration time.Duration, sizeBytes int64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("run_id", runID),
	}

	m.saves.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.saveLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attrs...))

	if err != nil {
		m.saveErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordPrune records a retention pass.
func (m *otelMetrics) RecordPrune(ctx context.Context, runID string, keepLatest bool) {
	m.prunes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Bool("keep_latest", keepLatest),
	))
}

// RecordResume records a successful resume.
func (m *otelMetrics) RecordResume(ctx context.Context, runID string, step int) {
	m.resumes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("step", step),
	))
}

// RecordPreemption records a completed hand-off.
func (m *otelMetrics) RecordPreemption(ctx context.Context, runID string) {
	m.preemptions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("run_id", runID),
	))
}
