package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a test meter provider and returns a function to collect metrics.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}

	return reader, cleanup
}

// collectMetrics collects all metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

// findMetric finds a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewOtelMetrics_Creation(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.NotNil(t, m.saves)
	assert.NotNil(t, m.saveLatency)
	assert.NotNil(t, m.saveErrors)
	assert.NotNil(t, m.checkpointSize)
	assert.NotNil(t, m.prunes)
	assert.NotNil(t, m.resumes)
	assert.NotNil(t, m.preemptions)
}

func TestRecordSave(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("records count, latency and size", func(t *testing.T) {
		m.RecordSave(ctx, "run-1", 50*time.Millisecond, 2048, nil)

		rm := collectMetrics(t, reader)

		saves := findMetric(rm, "preempt.checkpoint.saves")
		require.NotNil(t, saves)
		sum, ok := saves.Data.(metricdata.Sum[int64])
		require.True(t, ok, "Expected Sum type")
		require.NotEmpty(t, sum.DataPoints)

		latency := findMetric(rm, "preempt.checkpoint.save_latency_ms")
		require.NotNil(t, latency)
		hist, ok := latency.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "Expected Histogram type")
		require.NotEmpty(t, hist.DataPoints)

		size := findMetric(rm, "preempt.checkpoint.size_bytes")
		require.NotNil(t, size)
		sizeHist, ok := size.Data.(metricdata.Histogram[int64])
		require.True(t, ok, "Expected Histogram[int64] type")
		require.NotEmpty(t, sizeHist.DataPoints)
	})

	t.Run("records errors when present", func(t *testing.T) {
		m.RecordSave(ctx, "run-err", 10*time.Millisecond, 0, errors.New("disk full"))

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "preempt.checkpoint.save_errors")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)

		found := false
		for _, dp := range sum.DataPoints {
			for _, attr := range dp.Attributes.ToSlice() {
				if attr.Key == "run_id" && attr.Value.AsString() == "run-err" {
					found = true
					assert.GreaterOrEqual(t, dp.Value, int64(1))
				}
			}
		}
		assert.True(t, found, "Expected error datapoint for run-err")
	})
}

func TestRecordPrune(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordPrune(context.Background(), "run-1", true)

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "preempt.checkpoint.prunes")
	require.NotNil(t, metric)

	sum, ok := metric.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.NotEmpty(t, sum.DataPoints)
}

func TestRecordResumeAndPreemption(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordResume(ctx, "run-1", 4)
	m.RecordPreemption(ctx, "run-1")

	rm := collectMetrics(t, reader)

	resumes := findMetric(rm, "preempt.run.resumes")
	require.NotNil(t, resumes)

	preemptions := findMetric(rm, "preempt.run.preemptions")
	require.NotNil(t, preemptions)

	sum, ok := preemptions.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	found := false
	for _, dp := range sum.DataPoints {
		for _, attr := range dp.Attributes.ToSlice() {
			if attr.Key == "run_id" && attr.Value.AsString() == "run-1" {
				found = true
				assert.GreaterOrEqual(t, dp.Value, int64(1))
			}
		}
	}
	assert.True(t, found, "Expected preemption datapoint for run-1")
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
}
