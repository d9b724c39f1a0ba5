package preempt

import (
	"context"
	"errors"
)

// Epoch brackets one unit of work (typically one training epoch) and
// guarantees the save-or-cleanup sequence on every exit path.
//
// On normal return from fn, the current step is saved and all but the
// latest checkpoint pruned. If fn returns an error, all checkpoints for the
// run are deleted instead: an error inside the unit of work may have
// already mutated shared trainee state in place, so even previously good
// checkpoints are suspect and a clean restart is forced. That policy can be
// relaxed with WithKeepCheckpointsOnError. A panic escaping fn triggers the
// same cleanup before re-panicking.
//
// In both cases, if a preemption notification arrived, the same hand-off
// sequence as Step runs before control returns.
func (c *Checkpointer) Epoch(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if !c.keepOnError {
				_ = c.store.Prune(c.runID, false)
			}
			panic(r)
		}
	}()

	if workErr := fn(ctx); workErr != nil {
		if !c.keepOnError {
			if pruneErr := c.store.Prune(c.runID, false); pruneErr != nil {
				workErr = errors.Join(workErr, pruneErr)
			}
		}
		if c.watcher.Preempted() {
			if handErr := c.handoff(ctx); handErr != nil {
				workErr = errors.Join(workErr, handErr)
			}
		}
		return workErr
	}

	// Step saves, prunes keep-latest, and runs the hand-off if flagged.
	return c.Step(ctx, nil)
}
