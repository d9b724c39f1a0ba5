package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Well-known trainee-state section names. Sections are optional; a
// checkpoint carries only the sections the caller registered.
const (
	SectionModel     = "model"
	SectionOptimizer = "optimizer"
	SectionScheduler = "lr_scheduler"
	SectionScaler    = "scaler"
)

// Checkpoint is one durable snapshot of a run's progress.
// It contains everything a successor process needs to resume.
type Checkpoint struct {
	// Metadata
	Version int       `json:"version"`
	RunID   string    `json:"run_id"`
	Step    int       `json:"step"`
	Resumes int       `json:"resumes"`
	SavedAt time.Time `json:"saved_at"`

	// Trainee state, keyed by section name. Each blob is opaque to the
	// store; only the caller-supplied objects can interpret it.
	Sections map[string][]byte `json:"sections,omitempty"`

	// Random-generator snapshots keyed by device label ("cpu", "gpu:0", ...).
	RNGStates map[string][]byte `json:"rng_states,omitempty"`

	// Free-form caller-supplied metadata, returned on load.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// New creates a checkpoint for a run at a step boundary.
func New(runID string, step, resumes int) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		RunID:     runID,
		Step:      step,
		Resumes:   resumes,
		SavedAt:   time.Now().UTC(),
		Sections:  make(map[string][]byte),
		RNGStates: make(map[string][]byte),
		Metadata:  make(map[string]any),
	}
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
