//go:build native

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"wizgo/internal/config"
	"wizgo/internal/generate"
)

// ChatOptions controls a one-shot RunChat invocation.
type ChatOptions struct {
	Stream    bool
	ShowStats bool
}

// RunChat loads the model, feeds message once, and prints the generated
// response to stdout, streaming tokens as they arrive when opts.Stream is
// set.
func RunChat(ctx context.Context, cfg config.Config, message string, opts ChatOptions) int {
	_ = ctx

	engine, err := NewEngine(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		return 1
	}
	defer engine.Close()

	sess, restored := engine.RestoreSession(message)
	if !restored {
		sess, err = engine.NewSession()
		if err != nil {
			fmt.Fprintf(os.Stderr, "chat: start session: %v\n", err)
			return 1
		}
	}
	defer sess.Close()

	bias := engine.SelectedBias(2)
	params := engine.InferenceParameters(bias)
	rng := newRNG(time.Now().UnixNano())

	if !opts.Stream {
		fmt.Print("thinking...")
	}
	var out []byte
	onToken := func(tok generate.Token) error {
		if opts.Stream {
			fmt.Print(tok.Text)
		} else {
			out = append(out, tok.Text...)
		}
		return nil
	}

	var stats generate.InferenceStats
	if restored {
		stats.PromptTokens = int(sess.NPast)
	} else {
		feedStart := time.Now()
		feedErr := generate.FeedPrompt(sess, engine.Model, params, message, func(tok generate.Token) error {
			stats.PromptTokens++
			return onToken(tok)
		})
		stats.FeedPromptDuration = time.Since(feedStart)
		if feedErr != nil {
			err = feedErr
		} else if _, serr := saveSnapshot(cfg, sess, message); serr != nil {
			fmt.Fprintf(os.Stderr, "chat: cache prompt: %v\n", serr)
		}
	}
	if err == nil {
		predictStats, perr := generate.Predict(sess, engine.Model, params, rng, onToken)
		stats.PredictDuration = predictStats.PredictDuration
		stats.PredictTokens = predictStats.PredictTokens
		err = perr
	}
	if !opts.Stream {
		fmt.Print("\r             \r")
		os.Stdout.Write(out)
	}
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		return 1
	}

	if opts.ShowStats {
		printInferenceStats(stats)
	}
	return 0
}

func printInferenceStats(stats generate.InferenceStats) {
	fmt.Printf("[prompt: %d tokens in %s | predicted: %d tokens in %s]\n",
		stats.PromptTokens, stats.FeedPromptDuration.Round(time.Millisecond),
		stats.PredictTokens, stats.PredictDuration.Round(time.Millisecond))
}
