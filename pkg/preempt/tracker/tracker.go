// Package tracker is a thin adapter around a run-tracking service.
//
// The core needs only three calls from the service: the state of a run,
// marking the current run as preempting, and finishing the run with an exit
// code. The service itself (API, transport, flushing) stays outside the
// library; callers plug in their client behind the Tracker interface.
package tracker

import (
	"context"
	"log/slog"
	"os"
)

// RunState is the tracked lifecycle state of a run.
type RunState string

// Run states as reported by the tracking service.
const (
	StateRunning    RunState = "running"
	StatePreempted  RunState = "preempted"
	StatePreempting RunState = "preempting"
	StateFinished   RunState = "finished"
	StateCrashed    RunState = "crashed"
	StateUnknown    RunState = ""
)

// Tracker exposes the run-tracking service at its boundary.
type Tracker interface {
	// RunState returns the tracked state of a run.
	RunState(ctx context.Context, runID string) (RunState, error)

	// MarkPreempting flags the current run as about to be preempted, so the
	// service expects a non-zero finish rather than a crash.
	MarkPreempting(ctx context.Context) error

	// Finish closes the current run with the given exit code.
	Finish(ctx context.Context, exitCode int) error
}

// Environment variables that identify a tracked run.
const (
	EnvEntity  = "WANDB_ENTITY"
	EnvProject = "WANDB_PROJECT"
	EnvRunID   = "WANDB_RUN_ID"
)

// Context identifies the tracked run drawn from the environment.
type Context struct {
	Entity  string
	Project string
	RunID   string
}

// Detect reads the tracker run identifiers from the environment.
// The second return value reports whether full context is present.
func Detect() (Context, bool) {
	c := Context{
		Entity:  os.Getenv(EnvEntity),
		Project: os.Getenv(EnvProject),
		RunID:   os.Getenv(EnvRunID),
	}
	return c, c.Entity != "" && c.Project != "" && c.RunID != ""
}

// ResumeMode is the resume value to hand to the tracking service before a
// run starts.
type ResumeMode string

const (
	// ResumeMust means the run was preempted and resuming is mandatory.
	ResumeMust ResumeMode = "must"

	// ResumeAllow means resuming is permitted but not required.
	ResumeAllow ResumeMode = "allow"

	// ResumeNever means no tracker context exists to resume into.
	ResumeNever ResumeMode = "never"
)

// ResolveResumeMode queries the tracked state of the run identified by the
// environment and decides whether resuming is mandatory or merely allowed.
// Without full tracker context it returns ResumeNever.
func ResolveResumeMode(ctx context.Context, t Tracker) (ResumeMode, error) {
	tc, ok := Detect()
	if !ok {
		return ResumeNever, nil
	}

	state, err := t.RunState(ctx, tc.RunID)
	if err != nil {
		return ResumeNever, err
	}
	if state == StatePreempted || state == StatePreempting {
		return ResumeMust, nil
	}
	return ResumeAllow, nil
}

// Noop is a Tracker that does nothing. Used when no tracking service is
// attached to the run.
type Noop struct{}

// Compile-time interface check.
var _ Tracker = Noop{}

// RunState always reports StateUnknown.
func (Noop) RunState(_ context.Context, _ string) (RunState, error) { return StateUnknown, nil }

// MarkPreempting does nothing.
func (Noop) MarkPreempting(_ context.Context) error { return nil }

// Finish does nothing.
func (Noop) Finish(_ context.Context, _ int) error { return nil }

// Logging is a Tracker that records calls to a logger. Useful as a default
// when diagnosing preemption hand-offs without a live tracking service.
type Logging struct {
	Logger *slog.Logger
}

// Compile-time interface check.
var _ Tracker = Logging{}

// RunState reports StateUnknown and logs the query.
func (l Logging) RunState(_ context.Context, runID string) (RunState, error) {
	l.Logger.Debug("tracker run state queried", slog.String("run_id", runID))
	return StateUnknown, nil
}

// MarkPreempting logs the call.
func (l Logging) MarkPreempting(_ context.Context) error {
	l.Logger.Info("tracker run marked preempting")
	return nil
}

// Finish logs the call.
func (l Logging) Finish(_ context.Context, exitCode int) error {
	l.Logger.Info("tracker run finished", slog.Int("exit_code", exitCode))
	return nil
}
