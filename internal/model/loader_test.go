//go:build native

package model

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeI32Bytes(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeF32Bytes(buf *bytes.Buffer, v float32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	buf.Write(b[:])
}

func TestReadI32RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writeI32Bytes(&buf, -42)
	got, err := readI32(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(-42), got)
}

func TestReadI32ErrorsOnShortInput(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2})
	_, err := readI32(buf)
	assert.Error(t, err, "expected error reading a truncated int32")
}

func TestReadF32RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writeF32Bytes(&buf, 3.5)
	got, err := readF32(&buf)
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), got)
}

func TestReadStringExactLength(t *testing.T) {
	buf := bytes.NewBufferString("hello-extra")
	got, err := readString(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestReadStringZeroLength(t *testing.T) {
	buf := bytes.NewBufferString("anything")
	got, err := readString(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestReadHyperparameters(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []int32{512, 2048, 8, 6, 100, 1} {
		writeI32Bytes(&buf, v)
	}

	h, err := readHyperparameters(&buf)
	require.NoError(t, err)
	want := Hyperparameters{DModel: 512, MaxSeqLen: 2048, NHeads: 8, NLayers: 6, NVocab: 100, FType: 1}
	assert.Equal(t, want, h)
}

func TestReadVocabularyNormalizesWordsAndHandlesBadTokens(t *testing.T) {
	var buf bytes.Buffer
	// entry 0: valid 5-byte word "▁hi" (3-byte space marker + "hi") with
	// score 1.0
	writeI32Bytes(&buf, 5)
	buf.WriteString("▁hi")
	writeF32Bytes(&buf, 1.0)
	// entry 1: invalid UTF-8 word bytes, forcing the bad-token fallback path
	// (which must still consume the trailing score).
	writeI32Bytes(&buf, 2)
	buf.Write([]byte{0xFF, 0xFE})
	writeF32Bytes(&buf, 2.0)

	v, err := readVocabulary(&buf, 2, LoadOptions{})
	require.NoError(t, err)
	require.Len(t, v, 2)
	assert.Equal(t, " hi", v[0].Word, "space marker rewritten")
	assert.Equal(t, float64(1.0), v[0].Score)
	assert.Equal(t, "<unk>", v[1].Word, "bad-token fallback")
}

func TestComputeCtxSizePositiveForPlausibleHyperparameters(t *testing.T) {
	h := Hyperparameters{DModel: 512, MaxSeqLen: 2048, NHeads: 8, NLayers: 6, NVocab: 1000, FType: 0}
	size, err := computeCtxSize(h)
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
}

func TestComputeCtxSizeErrorsOnInvalidFtype(t *testing.T) {
	h := Hyperparameters{FType: 77}
	_, err := computeCtxSize(h)
	assert.Error(t, err, "expected error from an invalid ftype")
}

func TestComputeCtxSizeGrowsWithLayerCount(t *testing.T) {
	small := Hyperparameters{DModel: 512, MaxSeqLen: 2048, NHeads: 8, NLayers: 4, NVocab: 1000, FType: 0}
	big := small
	big.NLayers = 8

	smallSize, err := computeCtxSize(small)
	require.NoError(t, err)
	bigSize, err := computeCtxSize(big)
	require.NoError(t, err)
	assert.Greater(t, bigSize, smallSize)
}
