// Package errors provides the error taxonomy for checkpoint handling.
//
// Every error surfaced by the library falls into one of four categories:
//   - Configuration: required scheduler or tracker context is absent
//   - Integrity: a deletion target does not match the checkpoint naming scheme
//   - Persistence: a write, rename, or read of a checkpoint failed
//   - Adapter: a scheduler command or tracker call failed
//
// All four are fatal. Nothing is retried and nothing is swallowed; retry and
// backoff policy belongs to the operator.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies an error for operator-facing reporting.
type Category int

const (
	// CategoryUnknown is returned for errors the library did not produce.
	CategoryUnknown Category = iota

	// CategoryConfiguration indicates missing scheduler or tracker context.
	CategoryConfiguration

	// CategoryIntegrity indicates a deletion candidate that does not look
	// like a checkpoint file.
	CategoryIntegrity

	// CategoryPersistence indicates a failed checkpoint write, rename, or read.
	CategoryPersistence

	// CategoryAdapter indicates a failed scheduler or tracker call.
	CategoryAdapter
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryConfiguration:
		return "configuration"
	case CategoryIntegrity:
		return "integrity"
	case CategoryPersistence:
		return "persistence"
	case CategoryAdapter:
		return "adapter"
	default:
		return "unknown"
	}
}

// ConfigError indicates that an operation required scheduler or tracker
// context which was not present in the environment.
type ConfigError struct {
	// Op is the operation that needed the context.
	Op string

	// Missing names the environment variables or settings that were absent.
	Missing []string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: required context missing: %v", e.Op, e.Missing)
	}
	return fmt.Sprintf("%s: required context missing", e.Op)
}

// IntegrityError indicates that a prune or delete candidate does not match
// the expected checkpoint naming scheme. The whole deletion batch is aborted
// before anything is removed.
type IntegrityError struct {
	// Path is the offending file.
	Path string

	// Reason describes what failed validation.
	Reason string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("refusing to delete %s: %s", e.Path, e.Reason)
}

// PersistenceError indicates a failed checkpoint write, rename, or read.
// It is never retried; masking it would let the caller believe a save
// succeeded when it did not.
type PersistenceError struct {
	// Op is the failed operation ("write", "rename", "read", "remove", ...).
	Op string

	// Path is the checkpoint path involved, if any.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("checkpoint %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error { return e.Err }

// AdapterError indicates a failed call to an external collaborator.
type AdapterError struct {
	// Adapter names the collaborator ("slurm", "tracker").
	Adapter string

	// Op is the failed call ("requeue", "mark_preempting", ...).
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Adapter, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *AdapterError) Unwrap() error { return e.Err }

// Categorize determines the category of an error produced by this library.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return CategoryConfiguration
	}

	var intErr *IntegrityError
	if errors.As(err, &intErr) {
		return CategoryIntegrity
	}

	var perErr *PersistenceError
	if errors.As(err, &perErr) {
		return CategoryPersistence
	}

	var adpErr *AdapterError
	if errors.As(err, &adpErr) {
		return CategoryAdapter
	}

	return CategoryUnknown
}

// IsIntegrity reports whether err is an integrity guard failure.
func IsIntegrity(err error) bool {
	return Categorize(err) == CategoryIntegrity
}

// IsConfig reports whether err is a missing-context failure.
func IsConfig(err error) bool {
	return Categorize(err) == CategoryConfiguration
}
