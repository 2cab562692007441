//go:build native

// Package session owns one generation stream's KV-cache tensors and
// sampling state for a borrowed Model. A Session is never shared: all of
// its operations are serial, and it must not outlive its Model.
package session

import (
	"fmt"

	"wizgo/internal/ggml"
	"wizgo/internal/model"
)

// MemoryType is the element type of the KV-cache tensors.
type MemoryType int

const (
	MemoryF16 MemoryType = iota
	MemoryF32
)

func (t MemoryType) ggmlType() ggml.Type {
	if t == MemoryF16 {
		return ggml.TypeF16
	}
	return ggml.TypeF32
}

// Params are the session parameters from spec.md §6.
type Params struct {
	LastNSize   int
	MemoryKType MemoryType
	MemoryVType MemoryType
}

// Session is bound to one Model for its whole lifetime.
type Session struct {
	Model  *model.Model
	Params Params

	MemoryK *ggml.Tensor // flat [n_ctx * n_layers * d_model]
	MemoryV *ggml.Tensor

	NPast int32

	// LastNTokens is a bounded ring of the last_n_size most recently emitted
	// token ids, newest at index 0.
	LastNTokens []int32

	// LastLogits holds n_vocab F32 values from the most recent forward pass.
	LastLogits []float32

	// MemPerToken is the running scratch-budget estimator consulted by the
	// evaluator; 0 until the first forward pass completes.
	MemPerToken int64

	ctx *ggml.Context
}

// ErrMemorySizeMismatch is returned by FromSnapshot when the snapshot's KV
// byte lengths don't match a freshly allocated session's.
var ErrMemorySizeMismatch = fmt.Errorf("session: memory size mismatch")

// ErrContextFull is returned by callers enforcing the n_past+n<=n_ctx
// pre-check; the evaluator itself does not re-check it (spec.md §4.4).
var ErrContextFull = fmt.Errorf("session: context window is full")

// Start allocates a new Session's KV context, sized for the requested
// memory element types plus library overhead, and initializes LastNTokens
// to Params.LastNSize zeros and LastLogits to n_vocab zeros.
func Start(m *model.Model, params Params) (*Session, error) {
	h := m.Hparams
	nCtx := float64(h.MaxSeqLen)
	nLayer := float64(h.NLayers)
	nEmbd := float64(h.DModel)

	ctxSize := nCtx*nLayer*nEmbd*ggml.TypeSizeF(params.MemoryKType.ggmlType()) +
		nCtx*nLayer*nEmbd*ggml.TypeSizeF(params.MemoryVType.ggmlType()) +
		(5+10*nLayer)*256

	ctx, err := ggml.InitContext(int64(ctxSize))
	if err != nil {
		return nil, err
	}

	nMem := int64(h.NLayers) * int64(h.MaxSeqLen)
	nElements := int64(h.DModel) * nMem

	s := &Session{
		Model:       m,
		Params:      params,
		MemoryK:     ctx.NewTensor1D(params.MemoryKType.ggmlType(), nElements),
		MemoryV:     ctx.NewTensor1D(params.MemoryVType.ggmlType(), nElements),
		LastNTokens: make([]int32, params.LastNSize),
		LastLogits:  make([]float32, h.NVocab),
		ctx:         ctx,
	}
	return s, nil
}

// PushToken inserts tok at the front of LastNTokens, evicting the oldest
// entry from the back to preserve the ring's fixed length.
func (s *Session) PushToken(tok int32) {
	if len(s.LastNTokens) == 0 {
		return
	}
	copy(s.LastNTokens[1:], s.LastNTokens[:len(s.LastNTokens)-1])
	s.LastNTokens[0] = tok
}

// WillOverflow reports whether pushing n more positions would exceed n_ctx,
// for callers that must pre-check before any state mutation.
func (s *Session) WillOverflow(n int32) bool {
	return s.NPast+n > s.Model.Hparams.MaxSeqLen
}

// Close releases the session's KV context.
func (s *Session) Close() error {
	if s.ctx != nil {
		s.ctx.Close()
		s.ctx = nil
	}
	return nil
}
