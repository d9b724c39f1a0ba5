package preempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/preempt/pkg/preempt/checkpoint"
	"github.com/randalmurphal/preempt/pkg/preempt/observability"
	"github.com/randalmurphal/preempt/pkg/preempt/sigwatch"
	"github.com/randalmurphal/preempt/pkg/preempt/slurm"
	"github.com/randalmurphal/preempt/pkg/preempt/tracker"
)

// ExitCodePreempted is the process exit code after a completed preemption
// hand-off. The tracking service receives the same code, so a requeued
// successor can tell preemption from a crash.
const ExitCodePreempted = 1

// graceInterval approximates waiting for the tracker's asynchronous flush
// before requeuing. Fixed and bounded; not configurable by signal.
const graceInterval = 15 * time.Second

// namedSection pairs a section name with its caller-owned state.
type namedSection struct {
	name  string
	state Snapshotter
}

// Checkpointer coordinates durable checkpointing with preemption hand-off
// for one run.
//
// Create one per run, call LoadLatest once before the compute loop, and
// Step at the end of every unit of work. If the process received a
// preemption signal, Step commits a checkpoint, notifies the tracking
// service, requeues the scheduler job, and terminates the process.
//
// A single logical thread must drive all methods; the only concurrency is
// asynchronous signal delivery, which does no more than flip a flag.
type Checkpointer struct {
	runID   string
	store   checkpoint.Store
	watcher *sigwatch.Watcher
	tracker tracker.Tracker

	sections []namedSection
	devices  []RNGDevice

	slurmCtx slurm.Context
	onSlurm  bool
	pidFile  string

	logger      *slog.Logger
	baseLogger  *slog.Logger
	clock       observability.Clock
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	verbose     bool
	defaultMeta map[string]any

	saveDir     string
	keepOnError bool

	stepCount int
	resumes   int

	// Test seams. Production values are fixed.
	grace time.Duration
	exit  func(int)
	sleep func(time.Duration)
}

// New creates a checkpointer for a run.
//
// Construction detects scheduler context from the environment: under Slurm,
// checkpoints nest under a job-ID subdirectory and the process id is written
// to "<jobID>.pid" so an out-of-band controller can deliver the preemption
// signal; otherwise a date subdirectory is used. Signal handlers for
// SIGUSR1 and SIGTERM are registered process-wide.
func New(runID string, opts ...Option) (*Checkpointer, error) {
	if runID == "" {
		return nil, errors.New("run ID is required")
	}

	c := &Checkpointer{
		runID:   runID,
		tracker: tracker.Noop{},
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		clock:   observability.NewClock(),
		saveDir: "checkpoints",
		grace:   graceInterval,
		exit:    os.Exit,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		if c.verbose {
			c.logger = slog.Default()
		} else {
			c.logger = slog.New(slog.DiscardHandler)
		}
	}
	c.baseLogger = c.logger
	c.logger = observability.EnrichLogger(c.baseLogger, runID, 0)

	c.slurmCtx, c.onSlurm = slurm.Detect()
	c.logger.Debug("scheduler context detected",
		slog.Bool("slurm", c.onSlurm),
		slog.String("job_id", c.slurmCtx.JobID),
		slog.String("array_job_id", c.slurmCtx.ArrayJobID),
		slog.String("array_task_id", c.slurmCtx.ArrayTaskID),
	)

	if c.store == nil {
		var fileOpts []checkpoint.FileOption
		if c.onSlurm && c.slurmCtx.JobID != "" {
			fileOpts = append(fileOpts, checkpoint.WithSubdir(c.slurmCtx.JobID))
		}
		store, err := checkpoint.NewFileStore(c.saveDir, fileOpts...)
		if err != nil {
			return nil, err
		}
		c.store = store
	}

	if c.onSlurm && c.slurmCtx.JobID != "" {
		path, err := c.slurmCtx.WritePIDFile(".")
		if err != nil {
			return nil, err
		}
		c.pidFile = path
		c.logger.Debug("pid file written", slog.String("path", path))
	}

	c.watcher = sigwatch.Start(c.logger)
	return c, nil
}

// NewRunID generates a short unique run identifier, for drivers without a
// tracker-assigned one.
func NewRunID() string {
	return fmt.Sprintf("run-%s", uuid.New().String()[:8])
}

// RunID returns the run identifier.
func (c *Checkpointer) RunID() string { return c.runID }

// StepCount returns the index of the next checkpoint to be saved.
func (c *Checkpointer) StepCount() int { return c.stepCount }

// Resumes returns how many times this run restarted from a checkpoint.
func (c *Checkpointer) Resumes() int { return c.resumes }

// Store returns the checkpoint store.
func (c *Checkpointer) Store() checkpoint.Store { return c.store }

// Preempted reports whether a preemption notification has been received.
func (c *Checkpointer) Preempted() bool { return c.watcher.Preempted() }

// MarkPreempted sets the preemption flag directly, as the signal handler
// would. The next Step observes it at the boundary.
func (c *Checkpointer) MarkPreempted() { c.watcher.MarkPreempted() }

// Resume describes the outcome of LoadLatest.
type Resume struct {
	// Step is the index of the checkpoint that was loaded, or 0 when
	// starting from scratch. The checkpointer's internal counter points at
	// the next boundary (loaded step + 1).
	Step int

	// Resumed reports whether a checkpoint was found.
	Resumed bool

	// Metadata is the mapping stored with the checkpoint, empty when
	// starting from scratch.
	Metadata map[string]any
}

// LoadLatest restores the run from its most recent checkpoint.
//
// Registered sections present in the payload are deserialized into the
// caller-supplied objects; RNG state is restored per device, skipping (with
// a warning) devices recorded at save time but absent now. With no prior
// checkpoint, the run starts at step 0 with resume counter 0.
func (c *Checkpointer) LoadLatest(ctx context.Context) (Resume, error) {
	ctx, span := c.spans.StartLoadSpan(ctx, c.runID)
	res, err := c.loadLatest(ctx)
	c.spans.EndSpanWithError(span, err)
	return res, err
}

func (c *Checkpointer) loadLatest(ctx context.Context) (Resume, error) {
	info, data, err := c.store.LoadLatest(c.runID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		observability.LogNoResume(c.logger, c.clock)
		return Resume{Metadata: map[string]any{}}, nil
	}
	if err != nil {
		return Resume{}, err
	}

	ckpt, err := checkpoint.Unmarshal(data)
	if err != nil {
		return Resume{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	if ckpt.Version != checkpoint.Version {
		return Resume{}, fmt.Errorf("checkpoint version mismatch: got %d, expected %d",
			ckpt.Version, checkpoint.Version)
	}

	for _, sec := range c.sections {
		blob, ok := ckpt.Sections[sec.name]
		if !ok {
			c.logger.Warn("section missing from checkpoint, left untouched",
				slog.String("section", sec.name))
			continue
		}
		if err := sec.state.Restore(blob); err != nil {
			return Resume{}, fmt.Errorf("restore section %s: %w", sec.name, err)
		}
	}

	byLabel := make(map[string]RNGDevice, len(c.devices))
	for _, dev := range c.devices {
		byLabel[dev.Label()] = dev
	}
	for label, blob := range ckpt.RNGStates {
		dev, ok := byLabel[label]
		if !ok {
			observability.LogSkippedDevice(c.logger, c.clock, label)
			continue
		}
		if err := dev.SetState(blob); err != nil {
			return Resume{}, err
		}
	}

	c.stepCount = ckpt.Step + 1
	c.resumes = ckpt.Resumes + 1
	c.logger = observability.EnrichLogger(c.baseLogger, c.runID, c.resumes)

	c.metrics.RecordResume(ctx, c.runID, ckpt.Step)
	observability.LogLoad(c.logger, c.clock, info.Path, ckpt.Step, c.resumes)

	meta := ckpt.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return Resume{Step: ckpt.Step, Resumed: true, Metadata: meta}, nil
}

// Step performs one checkpointing step at a unit-of-work boundary.
//
// The order is fixed: durably commit a checkpoint for the current step,
// prune all but the latest, then consult the preemption flag. If set, the
// tracking service is notified, the scheduler job requeued, and the process
// terminated with ExitCodePreempted, so the requeued job always finds a
// checkpoint at least as recent as the point of preemption. On the
// non-terminating path the step counter advances.
//
// extra is free-form metadata stored in the checkpoint and returned by
// LoadLatest in the successor process.
func (c *Checkpointer) Step(ctx context.Context, extra map[string]any) error {
	ctx, span := c.spans.StartStepSpan(ctx, c.runID, c.stepCount)
	err := c.step(ctx, extra)
	c.spans.EndSpanWithError(span, err)
	return err
}

func (c *Checkpointer) step(ctx context.Context, extra map[string]any) error {
	if err := c.save(ctx, extra); err != nil {
		return err
	}

	if err := c.store.Prune(c.runID, true); err != nil {
		return err
	}
	c.metrics.RecordPrune(ctx, c.runID, true)
	observability.LogPrune(c.logger, c.clock, true)

	if c.watcher.Preempted() {
		return c.handoff(ctx)
	}

	c.stepCount++
	return nil
}

// save builds the payload from current trainee state and commits it.
func (c *Checkpointer) save(ctx context.Context, extra map[string]any) error {
	ckpt := checkpoint.New(c.runID, c.stepCount, c.resumes)

	for _, sec := range c.sections {
		blob, err := sec.state.Snapshot()
		if err != nil {
			return fmt.Errorf("snapshot section %s: %w", sec.name, err)
		}
		ckpt.Sections[sec.name] = blob
	}

	for _, dev := range c.devices {
		blob, err := dev.State()
		if err != nil {
			return err
		}
		ckpt.RNGStates[dev.Label()] = blob
	}

	for k, v := range c.defaultMeta {
		ckpt.Metadata[k] = v
	}
	for k, v := range extra {
		ckpt.Metadata[k] = v
	}

	data, err := ckpt.Marshal()
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	start := time.Now()
	saveErr := c.store.Save(c.runID, c.stepCount, data)
	c.metrics.RecordSave(ctx, c.runID, time.Since(start), int64(len(data)), saveErr)
	if saveErr != nil {
		return saveErr
	}

	path := ""
	if fs, ok := c.store.(*checkpoint.FileStore); ok {
		path = fs.Path(c.runID, c.stepCount)
	}
	observability.LogSave(c.logger, c.clock, path, c.stepCount, len(data))
	return nil
}

// handoff runs the preemption sequence: notify the tracking service, wait a
// fixed grace interval for its flush, requeue the scheduler job, exit.
// Adapter failures propagate without retry; retry policy belongs to the
// operator.
func (c *Checkpointer) handoff(ctx context.Context) error {
	ctx, span := c.spans.StartHandoffSpan(ctx, c.runID)
	observability.LogHandoff(c.logger, c.clock, c.stepCount)

	if err := c.tracker.MarkPreempting(ctx); err != nil {
		c.spans.EndSpanWithError(span, err)
		return err
	}
	if err := c.tracker.Finish(ctx, ExitCodePreempted); err != nil {
		c.spans.EndSpanWithError(span, err)
		return err
	}

	c.sleep(c.grace)

	if c.onSlurm {
		observability.LogRequeue(c.logger, c.clock, c.slurmCtx.RequeueRef())
		if err := c.slurmCtx.Requeue(ctx); err != nil {
			c.spans.EndSpanWithError(span, err)
			return err
		}
	}

	c.metrics.RecordPreemption(ctx, c.runID)
	c.spans.EndSpanWithError(span, nil)
	observability.LogExit(c.logger, c.clock, ExitCodePreempted)
	c.exit(ExitCodePreempted)
	return nil
}

// RemoveCheckpoints deletes all checkpoints for the run. Call at successful
// run completion when the final state is persisted elsewhere.
func (c *Checkpointer) RemoveCheckpoints() error {
	return c.store.Prune(c.runID, false)
}

// Close unregisters the signal handlers and releases the store.
// Only needed by tests and drivers that outlive the run; a preempted
// process exits through the hand-off instead.
func (c *Checkpointer) Close() error {
	c.watcher.Stop()
	return c.store.Close()
}
