package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, v Vocabulary) *Unigram {
	t.Helper()
	u, err := New(v)
	require.NoError(t, err)
	return u
}

func TestEncodePrefersWholeVocabularyEntryOverFallback(t *testing.T) {
	v := Vocabulary{
		{Word: "h", Score: -5},
		{Word: "i", Score: -5},
		{Word: "hi", Score: -0.1}, // cheap whole-word match should win over h+i
	}
	u := mustNew(t, v)

	ids, err := u.Encode("hi", false)
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, ids)
}

func TestEncodeFallsBackToSingleBytesForUnknownInput(t *testing.T) {
	v := Vocabulary{
		{Word: "a", Score: -1},
	}
	u := mustNew(t, v)

	ids, err := u.Encode("ab", false)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, int32(0), ids[0], "first token should be known entry 'a'")
	assert.Equal(t, UnkID, ids[1], "second token should be UnkID for unknown byte 'b'")
}

func TestEncodeEmptyStringReturnsNil(t *testing.T) {
	u := mustNew(t, Vocabulary{{Word: "x", Score: -1}})
	ids, err := u.Encode("", false)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestDecodeJoinsEntriesInOrder(t *testing.T) {
	v := Vocabulary{
		{Word: "hel", Score: -1},
		{Word: "lo", Score: -1},
	}
	u := mustNew(t, v)

	got, err := u.Decode([]int32{0, 1}, false)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestDecodeSkipsOutOfRangeIDs(t *testing.T) {
	v := Vocabulary{{Word: "a", Score: -1}}
	u := mustNew(t, v)

	got, err := u.Decode([]int32{0, 99, -1}, false)
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestEncodeDecodeRoundTripsOnKnownVocabulary(t *testing.T) {
	v := Vocabulary{
		{Word: " the", Score: -0.5},
		{Word: " quick", Score: -0.6},
		{Word: " fox", Score: -0.7},
	}
	u := mustNew(t, v)

	text := "▁the▁quick▁fox"
	ids, err := u.Encode(text, false)
	require.NoError(t, err)
	decoded, err := u.Decode(ids, false)
	require.NoError(t, err)
	assert.Equal(t, " the quick fox", decoded)
}
