package checkpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/preempt/pkg/preempt/checkpoint"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	ckpt := checkpoint.New("r1", 3, 2)
	ckpt.Sections[checkpoint.SectionModel] = []byte{0x01, 0x02}
	ckpt.Sections[checkpoint.SectionOptimizer] = []byte{0x03}
	ckpt.RNGStates["cpu"] = []byte{0xfe, 0xff}
	ckpt.Metadata["epoch"] = 3

	data, err := ckpt.Marshal()
	require.NoError(t, err)

	got, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, checkpoint.Version, got.Version)
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 3, got.Step)
	assert.Equal(t, 2, got.Resumes)
	assert.Equal(t, []byte{0x01, 0x02}, got.Sections[checkpoint.SectionModel])
	assert.Equal(t, []byte{0x03}, got.Sections[checkpoint.SectionOptimizer])
	assert.Equal(t, []byte{0xfe, 0xff}, got.RNGStates["cpu"])
	// JSON numbers decode as float64
	assert.Equal(t, float64(3), got.Metadata["epoch"])
}

func TestCheckpoint_UnmarshalInvalid(t *testing.T) {
	_, err := checkpoint.Unmarshal([]byte("not json"))
	assert.Error(t, err)
}
