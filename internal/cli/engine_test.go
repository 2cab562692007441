//go:build native

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wizgo/internal/config"
	"wizgo/internal/generate"
	"wizgo/internal/model"
	"wizgo/internal/session"
	"wizgo/internal/vocab"
)

func TestParseMemoryType(t *testing.T) {
	assert.Equal(t, session.MemoryF32, parseMemoryType("f32"))
	assert.Equal(t, session.MemoryF16, parseMemoryType("f16"))
	assert.Equal(t, session.MemoryF16, parseMemoryType(""), "default")
	assert.Equal(t, session.MemoryF16, parseMemoryType("unknown"), "default")
}

func TestApplyPresetFillsOnlyZeroFields(t *testing.T) {
	cfg := config.Config{}
	cfg.Model.Threads = 2 // user already set this; preset must not override it

	preset := model.Preset{
		Threads:     8,
		MaxTokens:   256,
		Temperature: 0.2,
		TopK:        1,
		RepeatLastN: 256,
	}
	applyPreset(&cfg, preset)

	assert.Equal(t, 2, cfg.Model.Threads, "user value preserved")
	assert.Equal(t, 256, cfg.Generation.MaxTokens, "filled from preset")
	assert.Equal(t, 0.2, cfg.Generation.Temperature)
	assert.Equal(t, 1, cfg.Generation.TopK)
	assert.Equal(t, 256, cfg.Generation.RepeatLastN)
}

func TestApplyPresetLeavesNonZeroGenerationFieldsAlone(t *testing.T) {
	cfg := config.Config{}
	cfg.Generation.Temperature = 0.9

	applyPreset(&cfg, model.Preset{Temperature: 0.2})

	assert.Equal(t, 0.9, cfg.Generation.Temperature, "user value preserved over preset")
}

func TestEngineInferenceParametersBuildsFromConfig(t *testing.T) {
	cfg := config.Config{}
	cfg.Model.Threads = 4
	cfg.Generation.TopK = 10
	cfg.Generation.TopP = 0.9
	cfg.Generation.Temperature = 0.5
	cfg.Generation.RepeatPenalty = 1.1
	cfg.Generation.MaxTokens = 128

	e := &Engine{Config: cfg}
	params := e.InferenceParameters(nil)

	assert.Equal(t, 4, params.NThreads)
	assert.Equal(t, 10, params.TopK)
	assert.Equal(t, 128, params.MaxTokens)
	assert.Nil(t, params.Bias, "Bias should be nil when passed nil")
}

func TestEngineSelectedBiasDefaultsToNewline(t *testing.T) {
	tok, err := vocab.New(vocab.Vocabulary{{Word: "\n", Score: -1}})
	require.NoError(t, err)
	e := &Engine{Config: config.Config{}, Model: &model.Model{Tokenizer: tok}}
	bias := e.SelectedBias(2)
	_, ok := bias.(*generate.NewlineCountBias)
	assert.True(t, ok, "default bias policy should be newline-count based")
}

func TestChronologicalReversesNewestFirstRing(t *testing.T) {
	got := chronological([]int32{3, 2, 1})
	assert.Equal(t, []int32{1, 2, 3}, got)
}

func TestChronologicalEmptyRing(t *testing.T) {
	assert.Empty(t, chronological(nil))
}
