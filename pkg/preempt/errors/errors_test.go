package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{
			name: "nil error",
			err:  nil,
			want: CategoryUnknown,
		},
		{
			name: "config error",
			err:  &ConfigError{Op: "requeue", Missing: []string{"SLURM_JOB_ID"}},
			want: CategoryConfiguration,
		},
		{
			name: "integrity error",
			err:  &IntegrityError{Path: "/ckpt/r1_notes.txt", Reason: "unexpected suffix"},
			want: CategoryIntegrity,
		},
		{
			name: "persistence error",
			err:  &PersistenceError{Op: "rename", Path: "/ckpt/r1_00000001.ckpt", Err: errors.New("disk full")},
			want: CategoryPersistence,
		},
		{
			name: "adapter error",
			err:  &AdapterError{Adapter: "slurm", Op: "requeue", Err: errors.New("exit 1")},
			want: CategoryAdapter,
		},
		{
			name: "wrapped config error",
			err:  fmt.Errorf("step: %w", &ConfigError{Op: "requeue"}),
			want: CategoryConfiguration,
		},
		{
			name: "wrapped integrity error",
			err:  fmt.Errorf("prune: %w", &IntegrityError{Path: "x", Reason: "bad"}),
			want: CategoryIntegrity,
		},
		{
			name: "foreign error",
			err:  errors.New("something else"),
			want: CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "configuration", CategoryConfiguration.String())
	assert.Equal(t, "integrity", CategoryIntegrity.String())
	assert.Equal(t, "persistence", CategoryPersistence.String())
	assert.Equal(t, "adapter", CategoryAdapter.String())
	assert.Equal(t, "unknown", CategoryUnknown.String())
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("connection refused")

	perr := &PersistenceError{Op: "write", Path: "/ckpt", Err: inner}
	assert.ErrorIs(t, perr, inner)

	aerr := &AdapterError{Adapter: "tracker", Op: "finish", Err: inner}
	assert.ErrorIs(t, aerr, inner)
}

func TestErrorMessages(t *testing.T) {
	cfg := &ConfigError{Op: "requeue", Missing: []string{"SLURM_JOB_ID"}}
	assert.Contains(t, cfg.Error(), "requeue")
	assert.Contains(t, cfg.Error(), "SLURM_JOB_ID")

	integ := &IntegrityError{Path: "/d/r1_x.txt", Reason: "unexpected suffix"}
	assert.Contains(t, integ.Error(), "refusing to delete")
	assert.Contains(t, integ.Error(), "/d/r1_x.txt")

	pers := &PersistenceError{Op: "read", Path: "/d/c.ckpt", Err: errors.New("eof")}
	assert.Contains(t, pers.Error(), "read")
	assert.Contains(t, pers.Error(), "/d/c.ckpt")

	adp := &AdapterError{Adapter: "slurm", Op: "requeue 12", Err: errors.New("exit 1")}
	assert.Contains(t, adp.Error(), "slurm")
	assert.Contains(t, adp.Error(), "requeue 12")
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsConfig(&ConfigError{Op: "x"}))
	assert.False(t, IsConfig(errors.New("x")))

	assert.True(t, IsIntegrity(&IntegrityError{Path: "p", Reason: "r"}))
	assert.False(t, IsIntegrity(&ConfigError{Op: "x"}))
}
