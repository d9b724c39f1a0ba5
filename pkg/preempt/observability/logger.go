// Package observability provides structured logging, metrics, and tracing
// for checkpoint handling.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Log lines for save/load/prune/requeue carry an elapsed_s field measured
// from checkpointer creation, so a run's timeline can be reconstructed from
// verbose output alone.
package observability

import (
	"log/slog"
	"time"
)

// Clock stamps log lines with the elapsed time since checkpointer creation.
type Clock struct {
	start time.Time
}

// NewClock creates a clock anchored at now.
func NewClock() Clock {
	return Clock{start: time.Now()}
}

// Elapsed returns seconds since the clock was created, with 0.1 s precision.
func (c Clock) Elapsed() float64 {
	return float64(time.Since(c.start).Milliseconds()) / 1000.0
}

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id and resumes fields.
func EnrichLogger(logger *slog.Logger, runID string, resumes int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.Int("resumes", resumes),
	)
}

// LogSave logs a committed checkpoint.
func LogSave(logger *slog.Logger, clock Clock, path string, step int, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.Float64("elapsed_s", clock.Elapsed()),
		slog.String("path", path),
		slog.Int("step", step),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogLoad logs a restored checkpoint.
func LogLoad(logger *slog.Logger, clock Clock, path string, step, resumes int) {
	if logger == nil {
		return
	}
	logger.Info("checkpoint loaded",
		slog.Float64("elapsed_s", clock.Elapsed()),
		slog.String("path", path),
		slog.Int("step", step),
		slog.Int("resumes", resumes),
	)
}

// LogNoResume logs a fresh start with no prior checkpoint.
func LogNoResume(logger *slog.Logger, clock Clock) {
	if logger == nil {
		return
	}
	logger.Info("no checkpoint found, starting from scratch",
		slog.Float64("elapsed_s", clock.Elapsed()),
	)
}

// LogPrune logs a retention pass.
func LogPrune(logger *slog.Logger, clock Clock, keepLatest bool) {
	if logger == nil {
		return
	}
	logger.Debug("stale checkpoints removed",
		slog.Float64("elapsed_s", clock.Elapsed()),
		slog.Bool("keep_latest", keepLatest),
	)
}

// LogSkippedDevice logs an RNG snapshot that could not be restored because
// its device is absent at load time. The run may not be bit-reproducible.
func LogSkippedDevice(logger *slog.Logger, clock Clock, device string) {
	if logger == nil {
		return
	}
	logger.Warn("rng state skipped, device absent at load time",
		slog.Float64("elapsed_s", clock.Elapsed()),
		slog.String("device", device),
	)
}

// LogHandoff logs the start of the preemption hand-off sequence.
func LogHandoff(logger *slog.Logger, clock Clock, step int) {
	if logger == nil {
		return
	}
	logger.Info("run was marked as preempted, handing off",
		slog.Float64("elapsed_s", clock.Elapsed()),
		slog.Int("step", step),
	)
}

// LogRequeue logs the scheduler requeue call.
func LogRequeue(logger *slog.Logger, clock Clock, jobRef string) {
	if logger == nil {
		return
	}
	logger.Info("requeueing job",
		slog.Float64("elapsed_s", clock.Elapsed()),
		slog.String("job_ref", jobRef),
	)
}

// LogExit logs the terminal exit of the preemption path.
func LogExit(logger *slog.Logger, clock Clock, code int) {
	if logger == nil {
		return
	}
	logger.Info("exiting after preemption hand-off",
		slog.Float64("elapsed_s", clock.Elapsed()),
		slog.Int("exit_code", code),
	)
}
