//go:build native

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wizgo/internal/config"
)

func TestApplySetCommandUpdatesKnownFields(t *testing.T) {
	e := &Engine{Config: config.Config{}}

	applySetCommand(e, "temperature", "0.75")
	assert.Equal(t, 0.75, e.Config.Generation.Temperature)

	applySetCommand(e, "top_k", "20")
	assert.Equal(t, 20, e.Config.Generation.TopK)

	applySetCommand(e, "max_tokens", "100")
	assert.Equal(t, 100, e.Config.Generation.MaxTokens)
}

func TestApplySetCommandIgnoresInvalidValues(t *testing.T) {
	e := &Engine{Config: config.Config{}}
	e.Config.Generation.TopK = 5

	applySetCommand(e, "top_k", "not-a-number")
	assert.Equal(t, 5, e.Config.Generation.TopK, "unchanged on parse failure")
}

func TestApplySetCommandIgnoresUnknownKey(t *testing.T) {
	e := &Engine{Config: config.Config{}}
	e.Config.Generation.Temperature = 0.4

	applySetCommand(e, "bogus", "1")
	assert.Equal(t, 0.4, e.Config.Generation.Temperature, "unchanged for unknown key")
}

func TestHandleReplCommandExit(t *testing.T) {
	e := &Engine{}
	cont, _ := handleReplCommand("/exit", e, false)
	assert.False(t, cont, "/exit should stop the loop")

	cont, _ = handleReplCommand("/quit", e, false)
	assert.False(t, cont, "/quit should stop the loop")
}

func TestHandleReplCommandStatsToggles(t *testing.T) {
	e := &Engine{}
	cont, stats := handleReplCommand("/stats", e, false)
	assert.True(t, cont, "/stats must not stop the loop")
	assert.True(t, stats, "/stats should toggle showStats from false to true")
}
