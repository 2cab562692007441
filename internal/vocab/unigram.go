package vocab

import (
	"math"
	"strings"
)

// Unigram is a Viterbi-decoded Unigram subword tokenizer: find the
// minimum-cost (maximum log-probability) segmentation of the input into
// known vocabulary entries, falling back to single-byte pieces (mapped to
// UnkID if not themselves in the vocabulary) wherever no entry matches.
type Unigram struct {
	entries Vocabulary
	byWord  map[string]int32
}

// node is one position in the Viterbi lattice over byte offsets of the
// normalized input.
type node struct {
	cost   float64
	prevID int   // byte offset of the best predecessor, -1 at start
	tokID  int32 // token placed to reach this offset from prevID
}

const unreachable = math.MaxFloat64

// Encode tokenizes text into ids via Viterbi decoding. addSpecial is
// accepted for interface parity with the external tokenizer contract but
// this Unigram model has no special tokens of its own to add; the EOD/BOS
// framing is the caller's responsibility (the prompt's literal
// `<|USER|>`/`<|ASSISTANT|>` markers are plain vocabulary words).
func (u *Unigram) Encode(text string, addSpecial bool) ([]int32, error) {
	_ = addSpecial
	norm := NormalizeWord(text)
	n := len(norm)
	if n == 0 {
		return nil, nil
	}

	best := make([]node, n+1)
	for i := 1; i <= n; i++ {
		best[i] = node{cost: unreachable, prevID: -1}
	}
	best[0] = node{cost: 0, prevID: -1}

	maxPiece := u.maxWordLen()
	for i := 0; i < n; i++ {
		if best[i].cost == unreachable {
			continue
		}
		limit := i + maxPiece
		if limit > n {
			limit = n
		}
		for j := i + 1; j <= limit; j++ {
			piece := norm[i:j]
			id, ok := u.byWord[piece]
			if !ok {
				continue
			}
			cost := best[i].cost - u.entries[id].Score
			if cost < best[j].cost {
				best[j] = node{cost: cost, prevID: i, tokID: id}
			}
		}
		// Always allow a single-byte fallback edge so every position is
		// reachable even when no vocabulary entry matches.
		{
			j := i + 1
			piece := norm[i:j]
			id, ok := u.byWord[piece]
			if !ok {
				id = UnkID
			}
			cost := best[i].cost + 10.0 // fixed penalty of 10 per byte; an entry spanning L bytes beats it only while its score is above -10*L
			if cost < best[j].cost {
				best[j] = node{cost: cost, prevID: i, tokID: id}
			}
		}
	}

	if best[n].cost == unreachable {
		return nil, nil
	}

	var ids []int32
	for pos := n; pos > 0; {
		nd := best[pos]
		ids = append(ids, nd.tokID)
		pos = nd.prevID
	}
	for l, r := 0, len(ids)-1; l < r; l, r = l+1, r-1 {
		ids[l], ids[r] = ids[r], ids[l]
	}
	return ids, nil
}

// Decode joins the already-normalized words for each id, skipping ids
// outside the vocabulary and nothing else (skipSpecial kept for interface
// parity; this vocabulary carries no dedicated special-token ids beyond
// EOD/UNK, and the generation loop detects EOD by comparing the id).
func (u *Unigram) Decode(ids []int32, skipSpecial bool) (string, error) {
	_ = skipSpecial
	var b strings.Builder
	for _, id := range ids {
		if int(id) < 0 || int(id) >= len(u.entries) {
			continue
		}
		b.WriteString(u.entries[id].Word)
	}
	return b.String(), nil
}

func (u *Unigram) maxWordLen() int {
	max := 1
	for _, e := range u.entries {
		if len(e.Word) > max {
			max = len(e.Word)
		}
	}
	return max
}
