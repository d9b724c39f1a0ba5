/*
Package preempt provides fault-tolerant resumption for long-running,
preemptible compute jobs.

A job may be interrupted by an external scheduler at any time. This package
coordinates durable multi-part checkpointing, retention, and the hand-off to
the scheduler and a run-tracking service, so a restarted job continues from
the most recent snapshot with no corruption and no silent state loss.

# Usage

Create a Checkpointer per run, registering the caller-owned state objects:

	ckpt, err := preempt.New(runID,
	    preempt.WithModel(model),
	    preempt.WithOptimizer(opt),
	    preempt.WithRNG(preempt.NewCPUDevice(0)),
	    preempt.WithSaveDir("checkpoints"),
	    preempt.WithVerbose(true),
	)
	if err != nil {
	    log.Fatal(err)
	}

	resume, err := ckpt.LoadLatest(ctx)
	if err != nil {
	    log.Fatal(err)
	}

	start := 0
	if resume.Resumed {
	    start = resume.Step + 1
	}
	for epoch := start; epoch < maxEpochs; epoch++ {
	    trainOneEpoch()
	    if err := ckpt.Step(ctx, map[string]any{"epoch": epoch}); err != nil {
	        log.Fatal(err)
	    }
	}
	ckpt.RemoveCheckpoints()

If the process receives SIGUSR1 or SIGTERM, the next Step call commits a
checkpoint, marks the tracked run as preempting, requeues the Slurm job, and
exits with ExitCodePreempted. The requeued job resumes via LoadLatest.

# Guarantees

Checkpoints commit with a single atomic rename: the canonical path is either
absent or a fully written checkpoint, never partial. Retention keeps exactly
the latest checkpoint; latest-selection uses the numeric step suffix, never
file modification time. A file in the checkpoint directory that does not
match the naming scheme aborts pruning before anything is deleted.

Adapter and persistence failures propagate without retry; retry policy
belongs to the operator.
*/
package preempt
