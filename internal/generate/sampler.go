//go:build native

package generate

import (
	"sort"

	"wizgo/internal/session"
)

// InferenceParameters controls sampling and the generation loop's stopping
// conditions. TopP and RepeatPenalty are accepted for forward/wire
// compatibility with callers that already set them, but — matching
// original_source, which declares both fields and never reads them in its
// top-k selector — the core sampler does not consult them (see DESIGN.md's
// Open Question decision).
type InferenceParameters struct {
	NThreads      int
	NBatch        int
	TopK          int
	TopP          float32
	Temperature   float32
	RepeatPenalty float32
	MaxTokens     int
	Bias          TokenBias
}

type candidate struct {
	id    int32
	logit float32
}

// Sample draws the next token id from sess.LastLogits under params, applying
// params.Bias overrides before ranking, then truncating to the top params.TopK
// candidates by scaled logit and returning the highest-ranked one.
func Sample(sess *session.Session, params InferenceParameters, rng RNG) int32 {
	logits := sess.LastLogits
	temp := params.Temperature
	if temp <= 0 {
		temp = 1.0
	}

	cands := make([]candidate, len(logits))
	for id, logit := range logits {
		scaled := logit / temp
		if params.Bias != nil {
			if override, ok := params.Bias.Get(int32(id)); ok {
				scaled = override
			}
		}
		cands[id] = candidate{id: int32(id), logit: scaled}
	}

	sort.Slice(cands, func(i, j int) bool { return cands[i].logit > cands[j].logit })

	topK := params.TopK
	if topK <= 0 || topK > len(cands) {
		topK = len(cands)
	}
	cands = cands[:topK]

	_ = rng // reserved: deterministic top-1 selection matches original_source's
	// sample_top_k_top_p, which (per the recorded Open Question) ignores top_p
	// and always returns rank 0 after truncation; RNG is plumbed through for a
	// future stochastic sampling mode without changing the call signature.
	return cands[0].id
}

// RNG is the seam a future stochastic sampling mode would draw from; the
// current top-k selector does not consume it.
type RNG interface {
	Float64() float64
}
