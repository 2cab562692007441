//go:build native

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wizgo/internal/ggml"
	"wizgo/internal/model"
)

func TestPushTokenMaintainsRingOrderNewestFirst(t *testing.T) {
	s := &Session{LastNTokens: make([]int32, 3)}
	s.PushToken(1)
	s.PushToken(2)
	s.PushToken(3)
	assert.Equal(t, []int32{3, 2, 1}, s.LastNTokens)

	s.PushToken(4)
	assert.Equal(t, []int32{4, 3, 2}, s.LastNTokens, "oldest evicted")
}

func TestPushTokenNoOpOnZeroSizedRing(t *testing.T) {
	s := &Session{LastNTokens: []int32{}}
	s.PushToken(7) // must not panic
	assert.Empty(t, s.LastNTokens)
}

func TestWillOverflow(t *testing.T) {
	s := &Session{
		NPast: 10,
		Model: &model.Model{Hparams: model.Hyperparameters{MaxSeqLen: 16}},
	}

	assert.False(t, s.WillOverflow(6), "10+6 == 16, fits exactly")
	assert.True(t, s.WillOverflow(7), "10+7 > 16")
}

func TestMemoryTypeGgmlTypeMapping(t *testing.T) {
	assert.Equal(t, ggml.TypeF16, MemoryF16.ggmlType())
	assert.Equal(t, ggml.TypeF32, MemoryF32.ggmlType())
}
