// Package slurm is a thin adapter around the Slurm scheduler.
//
// It detects scheduler context from the process environment, requeues the
// current job via scontrol, and writes the PID side-channel file an
// out-of-band controller uses to deliver the preemption signal.
package slurm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	perrors "github.com/randalmurphal/preempt/pkg/preempt/errors"
)

// Environment variables that identify a Slurm session.
const (
	EnvJobID       = "SLURM_JOB_ID"
	EnvArrayJobID  = "SLURM_ARRAY_JOB_ID"
	EnvArrayTaskID = "SLURM_ARRAY_TASK_ID"
)

// scontrol invocation, swappable for tests.
var runCommand = func(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}

// Context is the scheduler job context drawn from the environment.
type Context struct {
	JobID       string
	ArrayJobID  string
	ArrayTaskID string
}

// Detect reads the Slurm job identifiers from the environment.
// The second return value reports whether any scheduler context is present.
func Detect() (Context, bool) {
	c := Context{
		JobID:       os.Getenv(EnvJobID),
		ArrayJobID:  os.Getenv(EnvArrayJobID),
		ArrayTaskID: os.Getenv(EnvArrayTaskID),
	}
	return c, c.JobID != "" || c.ArrayJobID != "" || c.ArrayTaskID != ""
}

// RequeueRef returns the job reference to pass to scontrol requeue:
// "<arrayJobID>_<taskID>" for array jobs, the plain job ID otherwise.
func (c Context) RequeueRef() string {
	if c.ArrayJobID != "" && c.ArrayTaskID != "" {
		return c.ArrayJobID + "_" + c.ArrayTaskID
	}
	return c.JobID
}

// Requeue re-submits the current job so a successor process can resume from
// the latest checkpoint. It fails if invoked without scheduler context.
func (c Context) Requeue(ctx context.Context) error {
	ref := c.RequeueRef()
	if ref == "" {
		return &perrors.ConfigError{
			Op:      "requeue",
			Missing: []string{EnvJobID, EnvArrayJobID, EnvArrayTaskID},
		}
	}

	if err := runCommand(ctx, "scontrol", "requeue", ref); err != nil {
		return &perrors.AdapterError{Adapter: "slurm", Op: "requeue " + ref, Err: err}
	}
	return nil
}

// WritePIDFile writes the current process id to "<jobID>.pid" in dir, so
// the sbatch-side controller can target this process with the preemption
// signal. Returns the file path.
func (c Context) WritePIDFile(dir string) (string, error) {
	if c.JobID == "" {
		return "", &perrors.ConfigError{Op: "write pid file", Missing: []string{EnvJobID}}
	}

	path := filepath.Join(dir, c.JobID+".pid")
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid), 0o644); err != nil {
		return "", &perrors.PersistenceError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}
