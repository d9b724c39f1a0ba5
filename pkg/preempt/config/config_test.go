package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("nil map", func(t *testing.T) {
		cfg := New(nil)
		assert.NotNil(t, cfg.Raw())
		assert.False(t, cfg.Has("anything"))
	})

	t.Run("with data", func(t *testing.T) {
		cfg := New(map[string]any{"save_dir": "checkpoints"})
		assert.True(t, cfg.Has("save_dir"))
	})
}

func TestString(t *testing.T) {
	cfg := New(map[string]any{
		"save_dir": "checkpoints",
		"verbose":  true,
	})

	assert.Equal(t, "checkpoints", cfg.String("save_dir", "default"))
	assert.Equal(t, "default", cfg.String("missing", "default"))
	assert.Equal(t, "default", cfg.String("verbose", "default"), "wrong type falls back")
}

func TestDuration(t *testing.T) {
	cfg := New(map[string]any{
		"str_dur":   "30s",
		"int_dur":   15,
		"float_dur": 1.5,
		"dur_dur":   2 * time.Minute,
		"bad_dur":   "not a duration",
	})

	assert.Equal(t, 30*time.Second, cfg.Duration("str_dur", time.Second))
	assert.Equal(t, 15*time.Second, cfg.Duration("int_dur", time.Second))
	assert.Equal(t, 1500*time.Millisecond, cfg.Duration("float_dur", time.Second))
	assert.Equal(t, 2*time.Minute, cfg.Duration("dur_dur", time.Second))
	assert.Equal(t, time.Second, cfg.Duration("bad_dur", time.Second))
	assert.Equal(t, time.Second, cfg.Duration("missing", time.Second))
}

func TestBool(t *testing.T) {
	cfg := New(map[string]any{
		"verbose": true,
		"str":     "true",
	})

	assert.True(t, cfg.Bool("verbose", false))
	assert.False(t, cfg.Bool("missing", false))
	assert.False(t, cfg.Bool("str", false), "string is not coerced")
}

func TestInt(t *testing.T) {
	cfg := New(map[string]any{
		"int":      5,
		"int64":    int64(7),
		"float":    3.0,
		"fraction": 3.5,
	})

	assert.Equal(t, 5, cfg.Int("int", 0))
	assert.Equal(t, 7, cfg.Int("int64", 0))
	assert.Equal(t, 3, cfg.Int("float", 0))
	assert.Equal(t, 0, cfg.Int("fraction", 0), "fractional float falls back")
	assert.Equal(t, 9, cfg.Int("missing", 9))
}

func TestStringMap(t *testing.T) {
	cfg := New(map[string]any{
		"metadata": map[string]any{"experiment": "baseline"},
		"scalar":   1,
	})

	m := cfg.StringMap("metadata", nil)
	assert.Equal(t, "baseline", m["experiment"])

	assert.Nil(t, cfg.StringMap("missing", nil))
	assert.Nil(t, cfg.StringMap("scalar", nil))
}
