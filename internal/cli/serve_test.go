//go:build native

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wizgo/internal/config"
	"wizgo/internal/generate"
	"wizgo/internal/session"
)

func TestApplyServeOptionsOverlaysKnownFields(t *testing.T) {
	params := generate.InferenceParameters{Temperature: 0.5, TopK: 5, MaxTokens: 10}
	options := map[string]interface{}{
		"temperature":    0.9,
		"max_tokens":     50.0,
		"top_k":          3.0,
		"top_p":          0.8,
		"repeat_penalty": 1.2,
	}

	applyServeOptions(&params, options)

	assert.Equal(t, float32(0.9), params.Temperature)
	assert.Equal(t, 50, params.MaxTokens)
	assert.Equal(t, 3, params.TopK)
	assert.Equal(t, float32(0.8), params.TopP)
	assert.Equal(t, float32(1.2), params.RepeatPenalty)
}

func TestApplyServeOptionsIgnoresMissingOrZeroFields(t *testing.T) {
	params := generate.InferenceParameters{Temperature: 0.5, MaxTokens: 10}

	applyServeOptions(&params, map[string]interface{}{"temperature": 0.0})
	assert.Equal(t, float32(0.5), params.Temperature, "zero override must be ignored")

	applyServeOptions(&params, nil)
	assert.Equal(t, 10, params.MaxTokens, "nil options map must be a no-op")
}

func TestApplyServeOptionsIgnoresWrongType(t *testing.T) {
	params := generate.InferenceParameters{Temperature: 0.5}
	// JSON numbers decode to float64; an int or string here must be ignored
	// rather than panicking the type assertion.
	applyServeOptions(&params, map[string]interface{}{"temperature": "hot"})
	assert.Equal(t, float32(0.5), params.Temperature, "wrong-typed value must be ignored")
}

func TestResumeServedSessionNoPreviousTurnStartsFresh(t *testing.T) {
	e := &Engine{Config: config.Config{}}

	sess, feedFrom, restoredExact := resumeServedSession(e, nil, "hello", []int32{1, 2, 3})
	assert.Nil(t, sess)
	assert.Equal(t, 0, feedFrom)
	assert.False(t, restoredExact)
}

func TestResumeServedSessionReusesSharedPrefix(t *testing.T) {
	e := &Engine{Config: config.Config{}}
	prevSess := &session.Session{NPast: 3}
	prev := &servedTurn{sess: prevSess, ids: []int32{1, 2, 3}}

	sess, feedFrom, restoredExact := resumeServedSession(e, prev, "hello there", []int32{1, 2, 3, 4})
	require.NotNil(t, sess)
	assert.Same(t, prevSess, sess, "should reuse the previous live session")
	assert.Equal(t, 3, feedFrom, "only the diverging suffix should need feeding")
	assert.False(t, restoredExact)
	assert.Equal(t, int32(3), sess.NPast, "TruncateKV should rewind to the shared prefix length")
}

func TestResumeServedSessionDivergesOnNoSharedPrefix(t *testing.T) {
	e := &Engine{Config: config.Config{}}
	prev := &servedTurn{sess: &session.Session{NPast: 2}, ids: []int32{5, 6}}

	sess, feedFrom, restoredExact := resumeServedSession(e, prev, "unrelated", []int32{9, 9})
	assert.Nil(t, sess, "no shared prefix means start fresh")
	assert.Equal(t, 0, feedFrom)
	assert.False(t, restoredExact)
}
