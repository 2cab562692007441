//go:build native

// Package model holds the in-memory MPT/Replit-Code model: hyperparameters,
// weight tensors, the on-disk-name → tensor index, and the vocabulary. It
// owns the weight context for the lifetime of the Model.
package model

import (
	"fmt"

	"wizgo/internal/ggml"
	"wizgo/internal/vocab"
)

// Hyperparameters are fixed at load time.
type Hyperparameters struct {
	DModel    int32
	MaxSeqLen int32 // context window, n_ctx
	NHeads    int32
	NLayers   int32
	NVocab    int32
	FType     int32
}

// Wtype returns the ggml element type that large weight tensors are stored
// in, derived from FType.
func (h Hyperparameters) Wtype() (ggml.Type, error) {
	switch h.FType {
	case 0:
		return ggml.TypeF32, nil
	case 1:
		return ggml.TypeF16, nil
	case 2:
		return ggml.TypeQ4_0, nil
	case 3:
		return ggml.TypeQ4_1, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrHyperparametersF16Invalid, h.FType)
	}
}

// Layer holds one transformer block's weights.
type Layer struct {
	LN1Weight         *ggml.Tensor // [d_model] F32
	AttnWqkvWeight    *ggml.Tensor // [d_model, 3*d_model]
	AttnOutProjWeight *ggml.Tensor // [d_model, d_model]
	LN2Weight         *ggml.Tensor // [d_model] F32
	MLPUpWeight       *ggml.Tensor // [d_model, 4*d_model]
	MLPDownWeight     *ggml.Tensor // [4*d_model, d_model]
}

// Model owns one weight context, the tied token-embedding tensor, the final
// layernorm, every layer's weights, and a name→tensor index consulted by the
// loader to place bytes. A Session borrows a Model; it must not outlive it.
type Model struct {
	Hparams Hyperparameters

	WteWeight *ggml.Tensor // [d_model, n_vocab]
	LnFWeight *ggml.Tensor // [d_model]
	Layers    []Layer

	Vocab     vocab.Vocabulary
	Tokenizer vocab.Tokenizer

	ctx     *ggml.Context
	tensors map[string]*ggml.Tensor
}

// TensorByName looks up a declared tensor by its on-disk name, as populated
// during construction in newWeightLayout.
func (m *Model) TensorByName(name string) (*ggml.Tensor, bool) {
	t, ok := m.tensors[name]
	return t, ok
}

// TensorNames returns every declared tensor name. The loader uses its length
// as the total in PartTensorLoaded events; it does not check that every
// declared name was matched by an entry in the file.
func (m *Model) TensorNames() []string {
	names := make([]string, 0, len(m.tensors))
	for n := range m.tensors {
		names = append(names, n)
	}
	return names
}

// Close releases the weight context and every tensor allocated from it.
func (m *Model) Close() error {
	if m.ctx != nil {
		m.ctx.Close()
		m.ctx = nil
	}
	return nil
}

// newWeightLayout allocates the weight context and every declared tensor,
// building the name→tensor index the loader will fill. ctxSize must already
// be computed by computeCtxSize.
func newWeightLayout(hparams Hyperparameters, ctxSize int64) (*Model, error) {
	wtype, err := hparams.Wtype()
	if err != nil {
		return nil, err
	}

	ctx, err := ggml.InitContext(ctxSize)
	if err != nil {
		return nil, err
	}

	nEmbd := int64(hparams.DModel)
	nVocab := int64(hparams.NVocab)
	nLayer := int64(hparams.NLayers)

	m := &Model{
		Hparams: hparams,
		ctx:     ctx,
		tensors: make(map[string]*ggml.Tensor, int(nLayer)*6+2),
	}

	m.WteWeight = ctx.NewTensor2D(wtype, nEmbd, nVocab)
	m.LnFWeight = ctx.NewTensor1D(ggml.TypeF32, nEmbd)
	m.tensors["transformer.wte.weight"] = m.WteWeight.Share()
	m.tensors["transformer.ln_f.weight"] = m.LnFWeight.Share()

	m.Layers = make([]Layer, nLayer)
	for i := int64(0); i < nLayer; i++ {
		l := Layer{
			LN1Weight:         ctx.NewTensor1D(ggml.TypeF32, nEmbd),
			AttnWqkvWeight:    ctx.NewTensor2D(wtype, nEmbd, 3*nEmbd),
			AttnOutProjWeight: ctx.NewTensor2D(wtype, nEmbd, nEmbd),
			LN2Weight:         ctx.NewTensor1D(ggml.TypeF32, nEmbd),
			MLPUpWeight:       ctx.NewTensor2D(wtype, nEmbd, 4*nEmbd),
			MLPDownWeight:     ctx.NewTensor2D(wtype, 4*nEmbd, nEmbd),
		}
		m.Layers[i] = l

		prefix := fmt.Sprintf("transformer.blocks.%d.", i)
		m.tensors[prefix+"ln_1.weight"] = l.LN1Weight.Share()
		m.tensors[prefix+"attn.Wqkv.weight"] = l.AttnWqkvWeight.Share()
		m.tensors[prefix+"attn.out_proj.weight"] = l.AttnOutProjWeight.Share()
		m.tensors[prefix+"ln_2.weight"] = l.LN2Weight.Share()
		m.tensors[prefix+"mlp.mlp_up.weight"] = l.MLPUpWeight.Share()
		m.tensors[prefix+"mlp.mlp_down.weight"] = l.MLPDownWeight.Share()
	}

	return m, nil
}
