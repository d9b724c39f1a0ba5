// Package checkpoint provides durable, step-indexed checkpoint storage for
// preemptible runs.
//
// The canonical backend is FileStore, which commits each checkpoint with an
// atomic rename so a crash at any instant never leaves a partial file at the
// canonical path. MemoryStore supports tests and SQLiteStore offers a
// database-backed alternative with the same retention contract.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists step-indexed checkpoints for a run.
// Step indices within a run are strictly increasing; retention keeps either
// all checkpoints or exactly the one with the maximum step.
type Store interface {
	// Save durably stores a checkpoint for (runID, step).
	// A partially written checkpoint must never become visible.
	Save(runID string, step int, data []byte) error

	// Load retrieves the checkpoint at a specific step.
	// Returns ErrNotFound if it doesn't exist.
	Load(runID string, step int) ([]byte, error)

	// LoadLatest retrieves the checkpoint with the maximum step index.
	// Selection is by step index only, never by modification time.
	// Returns ErrNotFound if the run has no checkpoints.
	LoadLatest(runID string) (Info, []byte, error)

	// List returns metadata for all existing checkpoints of a run.
	// Returns an empty slice (not an error) if the run has none.
	List(runID string) ([]Info, error)

	// Prune deletes all checkpoints for a run, or all except the single
	// latest when keepLatest is true. If any deletion candidate does not
	// match the checkpoint naming scheme, the whole batch is aborted with
	// an IntegrityError before anything is removed.
	Prune(runID string, keepLatest bool) error

	// Close releases any resources.
	Close() error
}

// Info provides checkpoint metadata without loading the payload.
type Info struct {
	RunID   string
	Step    int
	Path    string // empty for non-file backends
	SavedAt time.Time
	Size    int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
