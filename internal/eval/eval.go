//go:build native

// Package eval builds and runs the MPT/Replit-Code forward-pass graph over
// ggml (C5): ALiBi positional bias, fused QKV projection, pre-layernorm,
// tied input/output embedding, GELU activation, no attention biases.
// Grounded line-for-line on original_source/wiz-rs's `Model::evaluate`.
package eval

import (
	"encoding/binary"
	"fmt"
	"math"

	"wizgo/internal/ggml"
	"wizgo/internal/model"
	"wizgo/internal/session"
)

const (
	oneGiB     = 1 << 30
	alibiMaxBias = 8.0
)

// Evaluate runs one forward pass over inputTokens (len >= 1), writing K/V
// into the session's KV cache at [n_past .. n_past+n), updating
// session.LastLogits with the final position's logits, and advancing
// session.NPast by len(inputTokens). The caller must ensure
// session.NPast+len(inputTokens) <= n_ctx before calling; Evaluate does not
// re-check it (spec.md §4.4).
func Evaluate(sess *session.Session, m *model.Model, nThreads int, inputTokens []int32) error {
	n := int64(len(inputTokens))
	if n == 0 {
		return fmt.Errorf("eval: no input tokens")
	}
	nPast := int64(sess.NPast)

	h := m.Hparams
	nVocab := int64(h.NVocab)
	nCtx := int64(h.MaxSeqLen)
	nEmbd := int64(h.DModel)
	nHead := int64(h.NHeads)
	nLayer := int64(h.NLayers)
	dh := nEmbd / nHead

	bufSize := int64(oneGiB)
	if sess.MemPerToken > 0 && sess.MemPerToken*n > bufSize {
		bufSize = int64(math.Ceil(1.1 * float64(sess.MemPerToken) * float64(n)))
	}

	ctx0, err := ggml.InitContext(bufSize)
	if err != nil {
		return err
	}
	defer ctx0.Close()

	gf := ctx0.NewGraph()

	embd := ctx0.NewTensor1D(ggml.TypeI32, n)
	if err := embd.WriteData(int32LEBytes(inputTokens)); err != nil {
		return err
	}

	x := ctx0.GetRows(m.WteWeight, embd)

	kElemSize := sess.MemoryK.ElementSize()
	vElemSize := sess.MemoryV.ElementSize()
	f32Size := int64(4)

	for il := int64(0); il < nLayer; il++ {
		layer := m.Layers[il]

		a := ctx0.Norm(x)
		a = ctx0.Mul(ctx0.Repeat(layer.LN1Weight, a), a)

		qkv := ctx0.MulMat(layer.AttnWqkvWeight, a) // [3*d_model, n]
		nb1 := qkv.Strides()[1]

		qCur := ctx0.View2D(qkv, nEmbd, n, nb1, 0*f32Size*nEmbd)
		kCur := ctx0.View2D(qkv, nEmbd, n, nb1, 1*f32Size*nEmbd)
		vCur := ctx0.View2D(qkv, nEmbd, n, nb1, 2*f32Size*nEmbd)

		kSlot := ctx0.View1D(sess.MemoryK, n*nEmbd, kElemSize*nEmbd*(il*nCtx+nPast))
		vSlot := ctx0.View1D(sess.MemoryV, n*nEmbd, vElemSize*nEmbd*(il*nCtx+nPast))
		gf.BuildForwardExpand(ctx0.Cpy(kCur, kSlot))
		gf.BuildForwardExpand(ctx0.Cpy(vCur, vSlot))

		q := ctx0.Permute(ctx0.Cpy(qCur, ctx0.NewTensor3D(ggml.TypeF32, dh, nHead, n)), 0, 2, 1, 3)

		k := ctx0.Permute(
			ctx0.Reshape3D(
				ctx0.View1D(sess.MemoryK, (nPast+n)*nEmbd, il*nCtx*kElemSize*nEmbd),
				dh, nHead, nPast+n),
			0, 2, 1, 3)

		kq := ctx0.MulMat(k, q)
		kqScaled := ctx0.Scale(kq, float32(1.0/math.Sqrt(float64(dh))))
		kqAlibi := ctx0.Alibi(kqScaled, int(nPast), int(nHead), alibiMaxBias)
		kqMasked := ctx0.DiagMaskInf(kqAlibi, int(nPast))
		kqSoftMax := ctx0.SoftMax(kqMasked)

		vTrans := ctx0.Cpy(
			ctx0.Permute(
				ctx0.Reshape3D(
					ctx0.View1D(sess.MemoryV, (nPast+n)*nEmbd, il*nCtx*vElemSize*nEmbd),
					dh, nHead, nPast+n),
				1, 2, 0, 3),
			ctx0.NewTensor3D(sess.MemoryV.Type(), nPast+n, dh, nHead))

		attnOut := ctx0.MulMat(vTrans, kqSoftMax)
		attnOut = ctx0.Permute(attnOut, 0, 2, 1, 3)
		attnOut = ctx0.Cpy(attnOut, ctx0.NewTensor2D(ggml.TypeF32, nEmbd, n))
		attnOut = ctx0.MulMat(layer.AttnOutProjWeight, attnOut)

		x = ctx0.Add(x, attnOut)

		mlp := ctx0.Norm(x)
		mlp = ctx0.Mul(ctx0.Repeat(layer.LN2Weight, mlp), mlp)
		mlp = ctx0.MulMat(layer.MLPUpWeight, mlp)
		mlp = ctx0.Gelu(mlp)
		mlp = ctx0.MulMat(layer.MLPDownWeight, mlp)

		x = ctx0.Add(x, mlp)
	}

	x = ctx0.Norm(x)
	x = ctx0.Mul(ctx0.Repeat(m.LnFWeight, x), x)

	logits := ctx0.MulMat(m.WteWeight, x) // tied output embedding, no softmax

	gf.BuildForwardExpand(logits)
	if err := gf.Compute(nThreads); err != nil {
		return err
	}

	if int64(len(sess.LastLogits)) != nVocab {
		panic(fmt.Sprintf("eval: last_logits length %d != n_vocab %d", len(sess.LastLogits), nVocab))
	}
	lastStep := logits.ReadDataAt(nVocab*(n-1)*f32Size, nVocab*f32Size)
	for i := int64(0); i < nVocab; i++ {
		sess.LastLogits[i] = math.Float32frombits(binary.LittleEndian.Uint32(lastStep[i*4 : i*4+4]))
	}

	if sess.MemPerToken == 0 {
		sess.MemPerToken = ctx0.UsedMem() / n
	}
	sess.NPast += int32(n)

	return nil
}

func int32LEBytes(ids []int32) []byte {
	out := make([]byte, len(ids)*4)
	for i, id := range ids {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(id))
	}
	return out
}
