//go:build native

// Package cli wires wizgo's configuration, model loading, and session
// creation together behind a single Engine, then exposes the chat/repl/cache/
// serve subcommands that drive it. It replaces the teacher's
// pipeline.Pipeline/runtime.Registry HTTP-vs-native backend switch: wizgo has
// exactly one execution path, the native ggml engine, so there is nothing
// left to switch on.
package cli

import (
	"errors"
	"fmt"
	"io"

	"wizgo/internal/config"
	"wizgo/internal/generate"
	"wizgo/internal/model"
	"wizgo/internal/session"
	"wizgo/internal/snapshot"
)

// ErrNoModelPath is returned by NewEngine when cfg.Model.Path is empty.
var ErrNoModelPath = errors.New("cli: no model path configured (set model.path or WIZGO_MODEL_PATH)")

// Engine owns one loaded Model for the process lifetime and the Config it
// was resolved from. Every subcommand builds its sessions from an Engine.
type Engine struct {
	Model  *model.Model
	Config config.Config
}

// NewEngine loads the model named by cfg.Model.Path, mirroring load progress
// to mirror if non-nil, and applies any known preset's generation defaults
// for fields the config left at zero, the way the teacher's native backend
// consults internal/native/presets.go before first use.
func NewEngine(cfg config.Config, mirror io.Writer) (*Engine, error) {
	if cfg.Model.Path == "" {
		return nil, ErrNoModelPath
	}

	m, err := model.Load(cfg.Model.Path, model.LoadOptions{Mirror: mirror})
	if err != nil {
		return nil, fmt.Errorf("cli: load model %q: %w", cfg.Model.Path, err)
	}

	if preset, ok := model.MatchPreset("", cfg.Model.Path); ok {
		applyPreset(&cfg, preset)
	}

	return &Engine{Model: m, Config: cfg}, nil
}

// applyPreset fills generation fields the user never set (still at Default's
// zero-equivalent) from a matched model preset, without overriding anything
// the config or environment already specified.
func applyPreset(cfg *config.Config, p model.Preset) {
	if cfg.Model.Threads == 0 {
		cfg.Model.Threads = int(p.Threads)
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = p.MaxTokens
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = p.Temperature
	}
	if cfg.Generation.TopK == 0 {
		cfg.Generation.TopK = p.TopK
	}
	if cfg.Generation.RepeatLastN == 0 {
		cfg.Generation.RepeatLastN = p.RepeatLastN
	}
}

// Close releases the engine's model weights.
func (e *Engine) Close() error {
	return e.Model.Close()
}

// NewSession starts a fresh KV-cache session sized from e.Config.Session.
func (e *Engine) NewSession() (*session.Session, error) {
	return session.Start(e.Model, e.sessionParams())
}

func (e *Engine) sessionParams() session.Params {
	return session.Params{
		LastNSize:   e.Config.Session.LastNSize,
		MemoryKType: parseMemoryType(e.Config.Session.MemoryKType),
		MemoryVType: parseMemoryType(e.Config.Session.MemoryVType),
	}
}

func parseMemoryType(s string) session.MemoryType {
	if s == "f32" {
		return session.MemoryF32
	}
	return session.MemoryF16
}

// RestoreSession implements wiz-cli's --restore-prompt flow, generalized
// from a user-supplied file path to the hash-indexed cache RunCache (and
// chat/repl/serve's own auto-save, see saveSnapshot) populate: it looks
// prompt up in the prompt-cache index and, on a hit, restores a session
// from the recorded snapshot instead of the caller having to feed prompt
// from scratch. Any failure along the way — caching disabled, no index
// entry, a corrupt snapshot — is reported as ok=false, never an error the
// caller must handle, since the fallback is always just "start fresh".
func (e *Engine) RestoreSession(prompt string) (*session.Session, bool) {
	if !e.Config.SnapshotEnabled() {
		return nil, false
	}

	index, err := snapshot.OpenCacheIndex(e.Config.Snapshot.CacheIndexPath)
	if err != nil {
		return nil, false
	}
	defer index.Close()

	path, found, err := index.Lookup(e.Config.Model.Path, snapshot.PrefixHash(prompt))
	if err != nil || !found {
		return nil, false
	}

	snap, err := snapshot.LoadFromDisk(path)
	if err != nil {
		return nil, false
	}

	sess, err := session.FromSnapshot(e.Model, snap)
	if err != nil {
		return nil, false
	}

	// The index is keyed on prompt's exact text, so the snapshot should
	// already reflect exactly these tokens. Guard against a stale entry
	// (model or tokenizer changed since it was written) by comparing the
	// cached session's own trailing token window against prompt's matching
	// window: if they've drifted apart, rewind to whatever prefix the two
	// actually agree on and re-feed the rest, rather than trusting every
	// cached KV position.
	if ids, terr := e.Model.Tokenizer.Encode(prompt, true); terr == nil {
		cachedTail := chronological(sess.LastNTokens)
		n := len(cachedTail)
		if n > 0 && len(ids) >= n {
			newTail := ids[len(ids)-n:]
			common := session.CommonPrefixLen(cachedTail, newTail)
			if common < int32(n) {
				base := sess.NPast - int32(n)
				sess.TruncateKV(base + common)
				params := e.InferenceParameters(nil)
				_ = generate.FeedTokens(sess, e.Model, params, newTail[common:], nil)
			}
		}
	}

	return sess, true
}

// chronological reverses a newest-first token ring (Session.LastNTokens'
// order, see PushToken) into oldest-first order, so it can be compared
// prefix-wise against a freshly tokenized prompt.
func chronological(newestFirst []int32) []int32 {
	out := make([]int32, len(newestFirst))
	for i, tok := range newestFirst {
		out[len(out)-1-i] = tok
	}
	return out
}

// NewlineBias builds the stock EOD-suppression policy wiz-cli applies to
// chat-style prompts: hold off EOD until at least minNewlines newline tokens
// have been observed, grounded on wiz-cli's CustomTokenBias. The generation
// loop observes every fed prompt token as well as every sampled one, so
// newlines in a prompt fed after the bias is built count too.
func (e *Engine) NewlineBias(minNewlines int) *generate.NewlineCountBias {
	var newlineID int32 = -1
	if ids, err := e.Model.Tokenizer.Encode("\n", false); err == nil && len(ids) == 1 {
		newlineID = ids[0]
	}
	return &generate.NewlineCountBias{
		EODTokenID:  generate.EODTokenID,
		NewlineID:   newlineID,
		MinNewlines: minNewlines,
	}
}

// SelectedBias builds the EOD-suppression policy named by
// e.Config.Generation.Bias: "fence" suppresses EOD while an opened code
// fence hasn't closed (FenceCloseBias), anything else falls back to the
// NewlineBias default. A fence-token lookup failure (tokenizer can't
// encode "```" as a stable id sequence) also falls back to NewlineBias.
func (e *Engine) SelectedBias(minNewlines int) generate.TokenBias {
	if e.Config.Generation.Bias != "fence" {
		return e.NewlineBias(minNewlines)
	}
	fenceTokens, err := e.Model.Tokenizer.Encode("```", false)
	if err != nil || len(fenceTokens) == 0 {
		return e.NewlineBias(minNewlines)
	}
	return &generate.FenceCloseBias{EODTokenID: generate.EODTokenID, FenceTokens: fenceTokens}
}

// InferenceParameters builds a generate.InferenceParameters from e.Config's
// generation defaults, overridable by callers before use.
func (e *Engine) InferenceParameters(bias generate.TokenBias) generate.InferenceParameters {
	g := e.Config.Generation
	return generate.InferenceParameters{
		NThreads:      e.Config.Model.Threads,
		TopK:          g.TopK,
		TopP:          float32(g.TopP),
		Temperature:   float32(g.Temperature),
		RepeatPenalty: float32(g.RepeatPenalty),
		MaxTokens:     g.MaxTokens,
		Bias:          bias,
	}
}
