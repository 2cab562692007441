package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWord(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single marker", "▁hello", " hello"},
		{"no marker", "hello", "hello"},
		{"marker mid word", "foo▁bar", "foo bar"},
		{"multiple markers", "▁a▁b▁", " a b "},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeWord(tc.in))
		})
	}
}

func TestNewRejectsEmptyVocabulary(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err, "expected error constructing a tokenizer from an empty vocabulary")
}

func TestNewIndexesFirstOccurrenceOfDuplicateWords(t *testing.T) {
	v := Vocabulary{
		{Word: "a", Score: -1},
		{Word: "a", Score: -5}, // duplicate word at a later id; must not replace the first
	}
	u, err := New(v)
	require.NoError(t, err)

	id, ok := u.byWord["a"]
	assert.True(t, ok)
	assert.Equal(t, int32(0), id)
}
