package preempt

import (
	"fmt"
	"math/rand/v2"
)

// Snapshotter is the only capability the core needs from caller-owned
// trainee state (model, optimizer, schedule, scale controller): produce an
// opaque blob, and restore from one.
type Snapshotter interface {
	// Snapshot serializes the current state.
	Snapshot() ([]byte, error)

	// Restore replaces the current state with a previously serialized one.
	Restore(data []byte) error
}

// RNGDevice is one random-generator source whose state is captured per
// checkpoint, keyed by a device label ("cpu", "gpu:0", ...).
type RNGDevice interface {
	// Label identifies the device. Labels must be unique per checkpointer.
	Label() string

	// State returns the generator's serialized state.
	State() ([]byte, error)

	// SetState replaces the generator's state.
	SetState(data []byte) error
}

// PCGDevice adapts a math/rand/v2 PCG source to RNGDevice.
// PCG implements binary marshaling, so its state round-trips exactly.
type PCGDevice struct {
	label string
	src   *rand.PCG
}

// NewPCGDevice wraps a PCG source under the given device label.
func NewPCGDevice(label string, src *rand.PCG) *PCGDevice {
	return &PCGDevice{label: label, src: src}
}

// NewCPUDevice creates a fresh seeded PCG source under the "cpu" label.
// Convenience for drivers that have no generator of their own.
func NewCPUDevice(seed uint64) *PCGDevice {
	return NewPCGDevice("cpu", rand.NewPCG(seed, seed))
}

// Label implements RNGDevice.
func (d *PCGDevice) Label() string { return d.label }

// Source returns the underlying PCG, for use with rand.New.
func (d *PCGDevice) Source() *rand.PCG { return d.src }

// State implements RNGDevice.
func (d *PCGDevice) State() ([]byte, error) {
	data, err := d.src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("snapshot rng %s: %w", d.label, err)
	}
	return data, nil
}

// SetState implements RNGDevice.
func (d *PCGDevice) SetState(data []byte) error {
	if err := d.src.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("restore rng %s: %w", d.label, err)
	}
	return nil
}
