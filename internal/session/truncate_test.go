//go:build native

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateKVClampsToZero(t *testing.T) {
	s := &Session{NPast: 10}
	s.TruncateKV(-5)
	assert.Equal(t, int32(0), s.NPast)
}

func TestTruncateKVClampsToCurrentNPast(t *testing.T) {
	s := &Session{NPast: 10}
	s.TruncateKV(50)
	assert.Equal(t, int32(10), s.NPast, "cannot rewind forward")
}

func TestTruncateKVRewindsWithinRange(t *testing.T) {
	s := &Session{NPast: 10}
	s.TruncateKV(4)
	assert.Equal(t, int32(4), s.NPast)
}

func TestCommonPrefixLen(t *testing.T) {
	cases := []struct {
		name       string
		prev, next []int32
		want       int32
	}{
		{"identical", []int32{1, 2, 3}, []int32{1, 2, 3}, 3},
		{"empty prev", nil, []int32{1, 2}, 0},
		{"empty next", []int32{1, 2}, nil, 0},
		{"diverge midway", []int32{1, 2, 3, 4}, []int32{1, 2, 9, 4}, 2},
		{"next shorter", []int32{1, 2, 3}, []int32{1, 2}, 2},
		{"prev shorter", []int32{1, 2}, []int32{1, 2, 3}, 2},
		{"no overlap", []int32{5}, []int32{6}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CommonPrefixLen(tc.prev, tc.next))
		})
	}
}
