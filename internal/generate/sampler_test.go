//go:build native

package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wizgo/internal/session"
)

type fakeRNG struct{ v float64 }

func (f fakeRNG) Float64() float64 { return f.v }

func TestSamplePicksHighestLogit(t *testing.T) {
	sess := &session.Session{LastLogits: []float32{0.1, 0.9, 0.3, 0.2}}
	params := InferenceParameters{Temperature: 1.0}

	got := Sample(sess, params, fakeRNG{})
	assert.Equal(t, int32(1), got, "highest logit")
}

func TestSampleAppliesTopKTruncation(t *testing.T) {
	// Token 1 has the globally highest logit but TopK=1 should still just
	// return the single best candidate regardless of truncation width.
	sess := &session.Session{LastLogits: []float32{5, 9, 1, 0}}
	params := InferenceParameters{Temperature: 1.0, TopK: 1}

	got := Sample(sess, params, fakeRNG{})
	assert.Equal(t, int32(1), got)
}

func TestSampleBiasOverridesLogit(t *testing.T) {
	sess := &session.Session{LastLogits: []float32{0.1, 0.9, 0.3}}
	bias := &NewlineCountBias{EODTokenID: 1, NewlineID: 50, MinNewlines: 1}
	params := InferenceParameters{Temperature: 1.0, Bias: bias}

	got := Sample(sess, params, fakeRNG{})
	assert.NotEqual(t, int32(1), got, "want a token other than the biased-down EOD id 1")
	assert.Equal(t, int32(2), got, "next highest logit after EOD suppressed")
}

func TestSampleDefaultsTemperatureWhenNonPositive(t *testing.T) {
	sess := &session.Session{LastLogits: []float32{1, 2, 3}}
	params := InferenceParameters{Temperature: 0}

	// Must not panic or divide by zero; highest logit still wins.
	got := Sample(sess, params, fakeRNG{})
	assert.Equal(t, int32(2), got)
}

func TestSampleTopKBeyondLengthIsNoOp(t *testing.T) {
	sess := &session.Session{LastLogits: []float32{1, 2}}
	params := InferenceParameters{Temperature: 1.0, TopK: 100}

	got := Sample(sess, params, fakeRNG{})
	assert.Equal(t, int32(1), got)
}
