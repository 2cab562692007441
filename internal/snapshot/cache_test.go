package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixHashIsDeterministicAndDistinct(t *testing.T) {
	a := PrefixHash("hello world")
	b := PrefixHash("hello world")
	assert.Equal(t, a, b, "PrefixHash is not deterministic")
	assert.NotEqual(t, a, PrefixHash("hello world!"), "PrefixHash collided for distinct inputs")
	assert.Len(t, a, 64, "hex-encoded sha256")
}

func TestCacheIndexPutLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	index, err := OpenCacheIndex(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer index.Close()

	hash := PrefixHash("some prompt")
	require.NoError(t, index.Put("model-a.bin", hash, "/snapshots/one.snap"))

	path, ok, err := index.Lookup("model-a.bin", hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/snapshots/one.snap", path)
}

func TestCacheIndexLookupMissReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	index, err := OpenCacheIndex(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer index.Close()

	_, ok, err := index.Lookup("missing-model.bin", PrefixHash("anything"))
	require.NoError(t, err)
	assert.False(t, ok, "unindexed key should miss")
}

func TestCacheIndexPutOverwritesExistingEntry(t *testing.T) {
	dir := t.TempDir()
	index, err := OpenCacheIndex(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer index.Close()

	hash := PrefixHash("prompt")
	require.NoError(t, index.Put("model.bin", hash, "/snapshots/v1.snap"))
	require.NoError(t, index.Put("model.bin", hash, "/snapshots/v2.snap"))

	path, ok, err := index.Lookup("model.bin", hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/snapshots/v2.snap", path)
}
