//go:build native

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPresetBySubstringOfFilePath(t *testing.T) {
	p, ok := MatchPreset("", "/models/replit-code-v1-3b.ggml")
	require.True(t, ok, "expected a match for a replit-code-v1-3b path")
	assert.Equal(t, "Replit Code v1 3B", p.Name)
}

func TestMatchPresetPrefersMoreSpecificEntry(t *testing.T) {
	// "replit-code-v1-3b" should win over the more general "replit-code" entry.
	p, ok := MatchPreset("", "replit-code-v1-3b.bin")
	require.True(t, ok)
	assert.Equal(t, "Replit Code v1 3B", p.Name, "want the more specific preset")
}

func TestMatchPresetFallsBackToGeneralEntry(t *testing.T) {
	p, ok := MatchPreset("", "replit-code-finetune.bin")
	require.True(t, ok, "expected a match for a generic replit-code path")
	assert.Equal(t, "Replit Code", p.Name)
}

func TestMatchPresetIsCaseAndSeparatorInsensitive(t *testing.T) {
	p, ok := MatchPreset("MPT_30B_CHAT checkpoint", "")
	require.True(t, ok, "expected a match regardless of case or separator style")
	assert.Equal(t, "MPT 30B Chat", p.Name)
}

func TestMatchPresetNoMatch(t *testing.T) {
	_, ok := MatchPreset("", "/models/some-other-model.bin")
	assert.False(t, ok, "expected no match for an unrecognized model path")
}

func TestMatchPresetConsultsBothDescriptionAndPath(t *testing.T) {
	p, ok := MatchPreset("a fine mpt 7b instruct checkpoint", "model.bin")
	require.True(t, ok, "expected a match driven by the description field")
	assert.Equal(t, "MPT 7B Instruct", p.Name)
}
