//go:build native

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wizgo/internal/config"
	"wizgo/internal/generate"
	"wizgo/internal/session"
)

// ReplOptions controls the interactive loop's default verbosity.
type ReplOptions struct {
	ShowStats bool
}

const replPromptMarker = "<|USER|>"
const replAssistantMarker = "<|ASSISTANT|>"

// RunRepl drives a plain stdin/stdout chat loop, framing each turn with the
// <|USER|>...<|ASSISTANT|> convention wiz-cli's repl_mode uses, and reusing
// one Session across turns so the KV-cache accumulates conversation history
// instead of restarting from scratch every message.
func RunRepl(ctx context.Context, cfg config.Config, opts ReplOptions) int {
	_ = ctx

	engine, err := NewEngine(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "repl: %v\n", err)
		return 1
	}
	defer engine.Close()

	var sess *session.Session
	defer func() {
		if sess != nil {
			sess.Close()
		}
	}()

	fmt.Println("wizgo repl — type /help for commands, /exit to quit")
	reader := bufio.NewReader(os.Stdin)
	showStats := opts.ShowStats
	rng := newRNG(time.Now().UnixNano())
	firstTurn := true

	for {
		fmt.Print("you> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			cont, updatedStats := handleReplCommand(line, engine, showStats)
			showStats = updatedStats
			if !cont {
				return 0
			}
			continue
		}

		prompt := replPromptMarker + line + replAssistantMarker
		bias := engine.SelectedBias(1)
		params := engine.InferenceParameters(bias)

		onToken := func(tok generate.Token) error {
			fmt.Print(tok.Text)
			return nil
		}

		restored := false
		if firstTurn {
			if s, ok := engine.RestoreSession(prompt); ok {
				sess = s
				restored = true
				fmt.Println("(restored cached session)")
			}
		}
		firstTurn = false

		if sess == nil {
			sess, err = engine.NewSession()
			if err != nil {
				fmt.Fprintf(os.Stderr, "repl: start session: %v\n", err)
				return 1
			}
		}

		fmt.Print("bot> ")
		var stats generate.InferenceStats
		if restored {
			predictStats, perr := generate.Predict(sess, engine.Model, params, rng, onToken)
			stats.PredictDuration = predictStats.PredictDuration
			stats.PredictTokens = predictStats.PredictTokens
			err = perr
		} else {
			feedStart := time.Now()
			err = generate.FeedPrompt(sess, engine.Model, params, prompt, func(tok generate.Token) error {
				stats.PromptTokens++
				return onToken(tok)
			})
			stats.FeedPromptDuration = time.Since(feedStart)
			if err == nil {
				if _, serr := saveSnapshot(cfg, sess, prompt); serr != nil {
					fmt.Fprintf(os.Stderr, "repl: cache prompt: %v\n", serr)
				}
				predictStats, perr := generate.Predict(sess, engine.Model, params, rng, onToken)
				stats.PredictDuration = predictStats.PredictDuration
				stats.PredictTokens = predictStats.PredictTokens
				err = perr
			}
		}
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "repl: %v\n", err)
			continue
		}
		if showStats {
			printInferenceStats(stats)
		}
	}
}

func handleReplCommand(line string, engine *Engine, showStats bool) (cont bool, newShowStats bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return false, showStats
	case "/help":
		printReplHelp()
	case "/stats":
		return true, !showStats
	case "/set":
		if len(fields) != 3 {
			fmt.Println("usage: /set <temperature|top_k|max_tokens> <value>")
			return true, showStats
		}
		applySetCommand(engine, fields[1], fields[2])
	default:
		fmt.Printf("unknown command %q, try /help\n", fields[0])
	}
	return true, showStats
}

func applySetCommand(engine *Engine, key, value string) {
	switch key {
	case "temperature":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			engine.Config.Generation.Temperature = f
			fmt.Printf("temperature = %v\n", f)
			return
		}
	case "top_k":
		if n, err := strconv.Atoi(value); err == nil {
			engine.Config.Generation.TopK = n
			fmt.Printf("top_k = %d\n", n)
			return
		}
	case "max_tokens":
		if n, err := strconv.Atoi(value); err == nil {
			engine.Config.Generation.MaxTokens = n
			fmt.Printf("max_tokens = %d\n", n)
			return
		}
	default:
		fmt.Printf("unknown setting %q\n", key)
		return
	}
	fmt.Printf("invalid value %q for %q\n", value, key)
}

func printReplHelp() {
	fmt.Println(`commands:
  /help                       show this message
  /stats                      toggle per-turn token/timing stats
  /set temperature <value>    change sampling temperature
  /set top_k <value>          change top-k cutoff
  /set max_tokens <value>     change the per-turn token budget
  /exit                       quit`)
}
