//go:build native

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"wizgo/internal/config"
	"wizgo/internal/generate"
	"wizgo/internal/session"
	"wizgo/internal/snapshot"
)

// RunCache implements wiz-cli's --cache-prompt flow: feed prompt into a
// fresh session, then write its KV state to cfg.Snapshot.Dir and record the
// (model, prompt-prefix-hash) -> snapshot-path mapping in the cache index so
// a later run can look it up by prefix hash instead of re-feeding the prompt
// (see Engine.RestoreSession, which chat/repl/serve consult on startup).
func RunCache(ctx context.Context, cfg config.Config, prompt string) int {
	_ = ctx

	engine, err := NewEngine(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cache: %v\n", err)
		return 1
	}
	defer engine.Close()

	sess, err := engine.NewSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cache: start session: %v\n", err)
		return 1
	}
	defer sess.Close()

	params := engine.InferenceParameters(nil)
	if err := generate.FeedPrompt(sess, engine.Model, params, prompt, nil); err != nil {
		fmt.Fprintf(os.Stderr, "cache: feed prompt: %v\n", err)
		return 1
	}

	snapPath, err := saveSnapshot(cfg, sess, prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cache: %v\n", err)
		return 1
	}

	fmt.Printf("cached %d prompt tokens to %s\n", sess.NPast, snapPath)
	return 0
}

// saveSnapshot writes sess's KV state under cfg.Snapshot.Dir and records it
// in the prompt-cache index, keyed on prompt's exact text, so a later
// Engine.RestoreSession call for the same prompt finds it. Used by RunCache
// directly and, best-effort, by chat/repl/serve after feeding a prompt.
func saveSnapshot(cfg config.Config, sess *session.Session, prompt string) (string, error) {
	dir := cfg.Snapshot.Dir
	if dir == "" {
		dir = "wizgo_snapshots"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	prefixHash := snapshot.PrefixHash(prompt)
	snapPath := filepath.Join(dir, prefixHash+".snap")
	if err := snapshot.WriteToDisk(snapPath, sess.GetSnapshot()); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	index, err := snapshot.OpenCacheIndex(cfg.Snapshot.CacheIndexPath)
	if err != nil {
		return "", fmt.Errorf("open cache index: %w", err)
	}
	defer index.Close()

	if err := index.Put(cfg.Model.Path, prefixHash, snapPath); err != nil {
		return "", fmt.Errorf("index snapshot: %w", err)
	}

	return snapPath, nil
}
