package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeModelFields(t *testing.T) {
	base := Config{}
	base.Model.Path = "base-model.bin"
	base.Model.Threads = 4

	t.Run("Path override", func(t *testing.T) {
		override := Config{}
		override.Model.Path = "other-model.bin"
		result := merge(base, override)
		assert.Equal(t, "other-model.bin", result.Model.Path)
		assert.Equal(t, 4, result.Model.Threads, "Threads lost")
	})

	t.Run("Path not overridden when empty", func(t *testing.T) {
		override := Config{}
		result := merge(base, override)
		assert.Equal(t, "base-model.bin", result.Model.Path)
	})

	t.Run("Threads override", func(t *testing.T) {
		override := Config{}
		override.Model.Threads = 8
		result := merge(base, override)
		assert.Equal(t, 8, result.Model.Threads)
	})
}

func TestMergeSessionFields(t *testing.T) {
	base := Config{}
	base.Session.LastNSize = 64
	base.Session.MemoryKType = "f16"
	base.Session.MemoryVType = "f16"

	override := Config{}
	override.Session.MemoryVType = "f32"

	result := merge(base, override)
	assert.Equal(t, 64, result.Session.LastNSize)
	assert.Equal(t, "f16", result.Session.MemoryKType)
	assert.Equal(t, "f32", result.Session.MemoryVType)
}

func TestMergeGenerationDefaults(t *testing.T) {
	base := Config{}
	base.Generation.MaxTokens = 512
	base.Generation.Temperature = 0.2
	base.Generation.TopK = 40
	base.Generation.Stop = []string{"<|end|>"}

	override := Config{}
	override.Generation.Temperature = 0.8

	result := merge(base, override)
	assert.Equal(t, 512, result.Generation.MaxTokens)
	assert.Equal(t, 0.8, result.Generation.Temperature)
	assert.Equal(t, 40, result.Generation.TopK)
	assert.Equal(t, []string{"<|end|>"}, result.Generation.Stop)
}

func TestMergeGenerationBias(t *testing.T) {
	t.Run("override", func(t *testing.T) {
		base := Config{}
		base.Generation.Bias = "newline"
		override := Config{}
		override.Generation.Bias = "fence"

		result := merge(base, override)
		assert.Equal(t, "fence", result.Generation.Bias)
	})

	t.Run("not overridden when empty", func(t *testing.T) {
		base := Config{}
		base.Generation.Bias = "fence"
		override := Config{}

		result := merge(base, override)
		assert.Equal(t, "fence", result.Generation.Bias)
	})
}

func TestMergeServerEnabled(t *testing.T) {
	t.Run("override to false", func(t *testing.T) {
		f := false
		base := Config{}
		base.Server.Enabled = boolPtr(true)
		override := Config{}
		override.Server.Enabled = &f

		result := merge(base, override)
		if assert.NotNil(t, result.Server.Enabled) {
			assert.False(t, *result.Server.Enabled)
		}
		assert.False(t, result.ServerEnabled())
	})

	t.Run("not overridden when nil", func(t *testing.T) {
		base := Config{}
		base.Server.Enabled = boolPtr(true)
		override := Config{}

		result := merge(base, override)
		if assert.NotNil(t, result.Server.Enabled) {
			assert.True(t, *result.Server.Enabled)
		}
	})

	t.Run("Host and Port override", func(t *testing.T) {
		base := Config{}
		base.Server.Host = "127.0.0.1"
		base.Server.Port = 42067
		override := Config{}
		override.Server.Port = 9090

		result := merge(base, override)
		assert.Equal(t, "127.0.0.1", result.Server.Host)
		assert.Equal(t, 9090, result.Server.Port)
	})
}

func TestMergeSnapshotFields(t *testing.T) {
	base := Config{}
	base.Snapshot.Dir = "snapshots"
	base.Snapshot.Enabled = boolPtr(true)

	override := Config{}
	override.Snapshot.CacheIndexPath = "cache.db"

	result := merge(base, override)
	assert.Equal(t, "snapshots", result.Snapshot.Dir)
	assert.Equal(t, "cache.db", result.Snapshot.CacheIndexPath)
	assert.True(t, result.SnapshotEnabled())
}

func TestDefaultIsUsable(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.Model.Threads, 0)
	assert.Greater(t, cfg.Generation.MaxTokens, 0)
	assert.NotEmpty(t, cfg.Session.MemoryKType)
}
