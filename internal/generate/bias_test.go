//go:build native

package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewlineCountBiasSuppressesUntilThreshold(t *testing.T) {
	b := &NewlineCountBias{EODTokenID: 1, NewlineID: 10, MinNewlines: 2}

	_, ok := b.Get(1)
	assert.True(t, ok, "expected EOD suppressed before any newline observed")

	b.Observe(10)
	_, ok = b.Get(1)
	assert.True(t, ok, "expected EOD still suppressed after one newline, want 2")

	b.Observe(10)
	_, ok = b.Get(1)
	assert.False(t, ok, "expected EOD allowed after MinNewlines reached")
}

func TestNewlineCountBiasIgnoresOtherTokens(t *testing.T) {
	b := &NewlineCountBias{EODTokenID: 1, NewlineID: 10, MinNewlines: 1}
	b.Observe(99)
	b.Observe(99)
	_, ok := b.Get(1)
	assert.True(t, ok, "expected EOD still suppressed, non-newline tokens must not count")
}

func TestNewlineCountBiasLeavesOtherTokensUnbiased(t *testing.T) {
	b := &NewlineCountBias{EODTokenID: 1, NewlineID: 10, MinNewlines: 5}
	_, ok := b.Get(42)
	assert.False(t, ok, "bias must only override the EOD token id")
}

func TestFenceCloseBiasTracksOpenClose(t *testing.T) {
	fence := []int32{7, 7, 7} // "```" as three identical ticks for this test
	b := &FenceCloseBias{EODTokenID: 1, FenceTokens: fence}

	_, ok := b.Get(1)
	assert.False(t, ok, "EOD must not be suppressed before any fence observed")

	b.Observe(7)
	b.Observe(7)
	b.Observe(7)
	_, ok = b.Get(1)
	assert.True(t, ok, "expected EOD suppressed once a fence has been opened")

	b.Observe(7)
	b.Observe(7)
	b.Observe(7)
	_, ok = b.Get(1)
	assert.False(t, ok, "expected EOD allowed once the fence has been closed again")
}

func TestFenceCloseBiasResetsOnMismatch(t *testing.T) {
	fence := []int32{1, 2, 3}
	b := &FenceCloseBias{EODTokenID: 99, FenceTokens: fence}

	b.Observe(1)
	b.Observe(2)
	b.Observe(5) // breaks the match partway through
	b.Observe(1)
	b.Observe(2)
	b.Observe(3)
	_, ok := b.Get(99)
	assert.True(t, ok, "expected fence to open only once fully matched after the reset")
}

func TestFenceCloseBiasEmptyTokensNeverOpens(t *testing.T) {
	b := &FenceCloseBias{EODTokenID: 1}
	b.Observe(1)
	b.Observe(2)
	_, ok := b.Get(1)
	assert.False(t, ok, "a bias with no fence tokens configured must never suppress EOD")
}
