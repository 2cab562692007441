package snapshot

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	want := &Snapshot{
		NPast: 42,
		Params: Params{
			LastNSize:   64,
			MemoryKType: KVTypeF16,
			MemoryVType: KVTypeF32,
		},
		MemoryKBytes: []byte{1, 2, 3, 4, 5},
		MemoryVBytes: []byte{9, 8, 7},
		LastNTokens:  []int32{10, 20, 30},
		LastLogits:   []float32{0.5, -1.25, 3.0},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, want))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteReadEmptySlices(t *testing.T) {
	want := &Snapshot{NPast: 0, Params: Params{LastNSize: 0}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, want))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Empty(t, got.LastNTokens)
	assert.Empty(t, got.LastLogits)
	assert.Equal(t, int32(0), got.NPast)
}

func TestReadRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0, 1, 0, 0, 0})
	_, err := Read(buf)
	assert.Error(t, err, "expected error reading a stream with a bad magic number")
}

func TestReadTruncatedStreamErrors(t *testing.T) {
	var full bytes.Buffer
	require.NoError(t, Write(&full, &Snapshot{NPast: 1, MemoryKBytes: []byte{1, 2, 3, 4}}))
	truncated := bytes.NewReader(full.Bytes()[:full.Len()-2])
	_, err := Read(truncated)
	assert.Error(t, err, "expected error reading a truncated snapshot stream")
}

func TestWriteToDiskLoadFromDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/test.snap"

	want := &Snapshot{
		NPast:        7,
		Params:       Params{LastNSize: 4, MemoryKType: KVTypeF32, MemoryVType: KVTypeF16},
		MemoryKBytes: []byte{0xAA, 0xBB},
		MemoryVBytes: []byte{0xCC},
		LastNTokens:  []int32{1, 2, 3, 4},
		LastLogits:   []float32{1.5},
	}

	require.NoError(t, WriteToDisk(path, want))
	got, err := LoadFromDisk(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
