//go:build native

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wizgo/internal/ggml"
)

func TestHyperparametersWtype(t *testing.T) {
	cases := []struct {
		ftype   int32
		want    ggml.Type
		wantErr bool
	}{
		{0, ggml.TypeF32, false},
		{1, ggml.TypeF16, false},
		{2, ggml.TypeQ4_0, false},
		{3, ggml.TypeQ4_1, false},
		{4, 0, true},
		{99, 0, true},
	}
	for _, tc := range cases {
		h := Hyperparameters{FType: tc.ftype}
		got, err := h.Wtype()
		if tc.wantErr {
			assert.Error(t, err)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
