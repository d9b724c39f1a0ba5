// Package sigwatch traps asynchronous preemption notifications and exposes
// them as a single flag.
//
// Two OS signals map to the same one-way state transition: SIGUSR1, the
// scheduler's soft preemption warning, and SIGTERM, a graceful termination
// request. The delivery goroutine does nothing but set the flag and log;
// the flag is consulted only at synchronous step boundaries, so no locking
// is needed beyond the atomic cell (single writer in the handler, single
// reader at the boundary).
package sigwatch

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// DefaultSignals are the notifications that mark a run as preempted.
var DefaultSignals = []os.Signal{syscall.SIGUSR1, syscall.SIGTERM}

// Watcher holds the preemption flag for one process.
type Watcher struct {
	preempted atomic.Bool
	logger    *slog.Logger
	ch        chan os.Signal
	stop      sync.Once
}

// Start registers the signal handlers and begins watching.
// Registration is process-wide; there is no teardown requirement since the
// process either exits via the preemption path or terminates normally, but
// Stop is available for tests.
func Start(logger *slog.Logger, signals ...os.Signal) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if len(signals) == 0 {
		signals = DefaultSignals
	}

	w := &Watcher{
		logger: logger,
		ch:     make(chan os.Signal, 1),
	}
	signal.Notify(w.ch, signals...)

	go func() {
		for sig := range w.ch {
			w.mark(sig.String())
		}
	}()

	return w
}

// mark performs the handler's only work: flip the flag, best-effort log.
func (w *Watcher) mark(source string) {
	if w.preempted.Swap(true) {
		return // already marked, transition is one-way and idempotent
	}
	w.logger.Info("preemption requested, will halt and requeue at the next step boundary",
		slog.String("signal", source),
	)
}

// Preempted reports whether a preemption notification has been received.
// Intended to be read only at step boundaries.
func (w *Watcher) Preempted() bool {
	return w.preempted.Load()
}

// MarkPreempted sets the flag directly, without a signal.
// Exposed so callers and tests can drive the same transition.
func (w *Watcher) MarkPreempted() {
	w.mark("direct")
}

// Stop unregisters the signal handlers. The flag keeps its value.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		signal.Stop(w.ch)
		close(w.ch)
	})
}
