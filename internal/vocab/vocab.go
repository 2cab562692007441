// Package vocab builds and runs the Unigram subword tokenizer the model
// loader feeds from the on-disk (word, score) vocabulary. It is the only
// concrete implementation of the Tokenizer collaborator the core consults.
package vocab

import "fmt"

// Entry is one (word, score) vocabulary row, indexed by token id.
type Entry struct {
	Word  string
	Score float64
}

// Vocabulary is the ordered list of vocabulary entries, index == token id.
type Vocabulary []Entry

// Tokenizer is the external collaborator interface the generation loop
// consults: encode(text) -> token ids, decode(ids) -> text.
type Tokenizer interface {
	Encode(text string, addSpecial bool) ([]int32, error)
	Decode(ids []int32, skipSpecial bool) (string, error)
}

// UnkID is the reserved id for out-of-vocabulary subwords, matching
// original_source's `Unigram::from(vocab, Some(0))`.
const UnkID = 0

// spaceMarker is the on-disk byte sequence 0xE2 0x96 0x81 ("▁") that must be
// rewritten to an ASCII space before the vocabulary is handed to the
// tokenizer.
const spaceMarker = "▁"

// NormalizeWord rewrites the on-disk space marker to an ASCII space. Called
// once per vocabulary entry by the loader.
func NormalizeWord(w string) string {
	out := make([]byte, 0, len(w))
	for i := 0; i < len(w); {
		if i+len(spaceMarker) <= len(w) && w[i:i+len(spaceMarker)] == spaceMarker {
			out = append(out, ' ')
			i += len(spaceMarker)
			continue
		}
		out = append(out, w[i])
		i++
	}
	return string(out)
}

// New builds a Unigram tokenizer over vocab. Grounded on original_source's
// construction (`Unigram::from(vocab, Some(0))`): a Viterbi lattice over the
// byte-offset DAG of candidate subwords, scored by each entry's log
// probability, with single-byte fallback entries guaranteeing every input
// has at least one valid segmentation.
func New(v Vocabulary) (*Unigram, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("vocab: empty vocabulary")
	}
	u := &Unigram{
		entries: v,
		byWord:  make(map[string]int32, len(v)),
	}
	for id, e := range v {
		if _, exists := u.byWord[e.Word]; !exists {
			u.byWord[e.Word] = int32(id)
		}
	}
	return u, nil
}
