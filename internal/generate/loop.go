//go:build native

package generate

import (
	"errors"
	"fmt"
	"time"

	"wizgo/internal/eval"
	"wizgo/internal/model"
	"wizgo/internal/session"
)

// EODTokenID is the hardcoded end-of-document token id for the
// MPT/Replit-Code vocabulary (spec.md §4.5).
const EODTokenID int32 = 1

// promptBatchSize caps how many prompt tokens are evaluated per graph
// compute call while feeding a prompt, matching original_source's chunking.
const promptBatchSize = 8

var (
	// ErrTokenizationFailed is returned when the tokenizer cannot encode the
	// supplied prompt text.
	ErrTokenizationFailed = errors.New("generate: tokenization failed")
	// ErrContextFull is returned when a generation step would exceed n_ctx.
	ErrContextFull = session.ErrContextFull
	// ErrUserCallback wraps an error returned by the caller's onToken callback.
	ErrUserCallback = errors.New("generate: user callback error")
)

// Token is one generated unit, with both the raw id and its already-decoded
// piece so callers can stream output without re-decoding.
type Token struct {
	ID   int32
	Text string
}

// OnTokenFunc is invoked once per generated token; returning an error aborts
// generation and the error is wrapped in ErrUserCallback.
type OnTokenFunc func(Token) error

// InferenceStats records timing and token counts for one InferenceWithPrompt
// call, matching spec.md §4.5's reporting fields.
type InferenceStats struct {
	FeedPromptDuration time.Duration
	PredictDuration    time.Duration
	PromptTokens       int
	PredictTokens      int
}

// FeedPrompt tokenizes prompt, checks it will fit in the remaining context,
// and evaluates it in batches of promptBatchSize tokens, invoking onToken
// (with the decoded single-token piece) for every fed token as it is pushed
// into sess.LastNTokens.
func FeedPrompt(sess *session.Session, m *model.Model, params InferenceParameters, prompt string, onToken OnTokenFunc) error {
	ids, err := m.Tokenizer.Encode(prompt, true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenizationFailed, err)
	}
	return FeedTokens(sess, m, params, ids, onToken)
}

// FeedTokens is FeedPrompt's tokenization-already-done counterpart: it
// evaluates ids directly in batches of promptBatchSize, the way a prompt-cache
// restore re-feeds only the token suffix a cached snapshot doesn't already
// cover (see cli.Engine.RestoreSession).
func FeedTokens(sess *session.Session, m *model.Model, params InferenceParameters, ids []int32, onToken OnTokenFunc) error {
	if sess.WillOverflow(int32(len(ids))) {
		return ErrContextFull
	}

	for start := 0; start < len(ids); start += promptBatchSize {
		end := start + promptBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		if err := eval.Evaluate(sess, m, params.NThreads, chunk); err != nil {
			return err
		}
		for _, id := range chunk {
			sess.PushToken(id)
			if nb, ok := params.Bias.(interface{ Observe(int32) }); ok {
				nb.Observe(id)
			}
			if onToken != nil {
				text, derr := m.Tokenizer.Decode([]int32{id}, false)
				if derr != nil {
					return fmt.Errorf("%w: %v", ErrTokenizationFailed, derr)
				}
				if err := onToken(Token{ID: id, Text: text}); err != nil {
					return fmt.Errorf("%w: %v", ErrUserCallback, err)
				}
			}
		}
	}
	return nil
}

// InferNextToken samples and evaluates a single new token, pushing it into
// the session and advancing n_past by one. It returns the sampled token and
// whether it is the end-of-document token.
func InferNextToken(sess *session.Session, m *model.Model, params InferenceParameters, rng RNG) (Token, bool, error) {
	if sess.WillOverflow(1) {
		return Token{}, false, ErrContextFull
	}

	id := Sample(sess, params, rng)
	sess.PushToken(id)
	if nb, ok := params.Bias.(interface{ Observe(int32) }); ok {
		nb.Observe(id)
	}

	if err := eval.Evaluate(sess, m, params.NThreads, []int32{id}); err != nil {
		return Token{}, false, err
	}

	text, err := m.Tokenizer.Decode([]int32{id}, false)
	if err != nil {
		return Token{}, false, fmt.Errorf("%w: %v", ErrTokenizationFailed, err)
	}

	return Token{ID: id, Text: text}, id == EODTokenID, nil
}

// endOfTurnMarker stops generation early even without an explicit EOD token,
// matching the chat-style stop sequence original_source watches for.
const endOfTurnMarker = "<|USER|>"

// InferenceWithPrompt feeds prompt, then repeatedly samples and evaluates new
// tokens — invoking onToken for each — until the EOD token is produced, the
// end-of-turn marker is seen, params.MaxTokens is reached, the context fills,
// or onToken returns an error.
func InferenceWithPrompt(sess *session.Session, m *model.Model, params InferenceParameters, prompt string, rng RNG, onToken OnTokenFunc) (InferenceStats, error) {
	var stats InferenceStats

	feedStart := time.Now()
	promptTokenCount := 0
	if err := FeedPrompt(sess, m, params, prompt, func(t Token) error {
		promptTokenCount++
		if onToken != nil {
			return onToken(t)
		}
		return nil
	}); err != nil {
		stats.FeedPromptDuration = time.Since(feedStart)
		stats.PromptTokens = promptTokenCount
		return stats, err
	}
	stats.FeedPromptDuration = time.Since(feedStart)
	stats.PromptTokens = promptTokenCount

	predictStats, err := Predict(sess, m, params, rng, onToken)
	stats.PredictDuration = predictStats.PredictDuration
	stats.PredictTokens = predictStats.PredictTokens
	return stats, err
}

// Predict repeatedly samples and evaluates new tokens from sess's current
// state — invoking onToken for each — until the EOD token is produced, the
// end-of-turn marker is seen, params.MaxTokens is reached, the context
// fills, or onToken returns an error. It is InferenceWithPrompt's back half,
// factored out so a restored (already-fed) session can jump straight to
// generation without re-feeding its prompt.
func Predict(sess *session.Session, m *model.Model, params InferenceParameters, rng RNG, onToken OnTokenFunc) (InferenceStats, error) {
	var stats InferenceStats
	predictStart := time.Now()
	var tail string
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1 << 30
	}

	for stats.PredictTokens < maxTokens {
		tok, isEOD, err := InferNextToken(sess, m, params, rng)
		if err != nil {
			if errors.Is(err, ErrContextFull) {
				break
			}
			stats.PredictDuration = time.Since(predictStart)
			return stats, err
		}
		stats.PredictTokens++

		if onToken != nil {
			if err := onToken(tok); err != nil {
				stats.PredictDuration = time.Since(predictStart)
				return stats, fmt.Errorf("%w: %v", ErrUserCallback, err)
			}
		}

		if isEOD {
			break
		}

		tail += tok.Text
		if len(tail) > len(endOfTurnMarker) {
			tail = tail[len(tail)-len(endOfTurnMarker):]
		}
		if tail == endOfTurnMarker {
			break
		}
	}
	stats.PredictDuration = time.Since(predictStart)
	return stats, nil
}
