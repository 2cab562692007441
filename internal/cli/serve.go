//go:build native

package cli

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"wizgo/internal/config"
	"wizgo/internal/generate"
	"wizgo/internal/session"
	"wizgo/server"
)

// runServe parses serve-specific flags and starts the HTTP/SSE façade.
func runServe(ctx context.Context, cfg config.Config, args []string) int {
	if !cfg.ServerEnabled() {
		fmt.Fprintln(os.Stderr, "server disabled by configuration (set server.enabled: true or WIZGO_SERVER_ENABLED=1)")
		return 1
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	hostFlag := fs.String("host", "", "Server host address (overrides config)")
	portFlag := fs.Int("port", 0, "Server port (overrides config)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse flags: %v\n", err)
		return 1
	}

	host := cfg.Server.Host
	if *hostFlag != "" {
		host = *hostFlag
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Server.Port
	if *portFlag > 0 {
		port = *portFlag
	}

	engine, err := NewEngine(cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}
	defer engine.Close()

	httpServer := server.NewHTTPServer(host, strconv.Itoa(port))
	if err := httpServer.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start HTTP server: %v\n", err)
		return 1
	}
	defer func() {
		if stopErr := httpServer.Stop(); stopErr != nil {
			log.Printf("warning: failed to stop HTTP server: %v", stopErr)
		}
	}()

	fmt.Printf("wizgo HTTP server listening on http://%s:%d\n", host, port)
	fmt.Printf("  Health:   http://%s:%d/health\n", host, port)
	fmt.Printf("  Chat API: http://%s:%d/v1/chat\n", host, port)

	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serveWorker(sigCtx, engine, httpServer)
	return 0
}

// serveWorker is the single inference worker spec.md §9 and SPEC_FULL.md §6
// describe: it drains httpServer's request channel serially, reusing the
// previous request's Session when the new request's tokenized content
// shares a prefix with it — the common shape for a stateless chat client
// that resends the whole transcript each call — and otherwise starting a
// fresh Session so unrelated prompts never share KV state, the same
// isolation the teacher's runHTTPServer loop got from calling
// pipe.ClearContext() before each request.
func serveWorker(ctx context.Context, engine *Engine, httpServer *server.HTTPServer) {
	var prev *servedTurn
	defer func() {
		if prev != nil {
			prev.sess.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("HTTP server shutting down")
			return
		default:
		}

		msg, err := httpServer.Receive()
		if err != nil {
			log.Printf("receive error: %v", err)
			time.Sleep(200 * time.Millisecond)
			continue
		}

		prev = handleServeMessage(engine, msg, prev)
	}
}

// servedTurn carries a live Session and the exact token ids it currently
// holds between one request and the next, so serveWorker can compute
// session.CommonPrefixLen against the next request's tokens and reuse the
// shared portion instead of starting over.
type servedTurn struct {
	sess *session.Session
	ids  []int32
}

func handleServeMessage(engine *Engine, msg server.HTTPMessage, prev *servedTurn) *servedTurn {
	ids, err := engine.Model.Tokenizer.Encode(msg.Content, true)
	if err != nil {
		log.Printf("tokenize error: %v", err)
		if respErr := msg.RespondError(err); respErr != nil {
			log.Printf("response error: %v", respErr)
		}
		return prev
	}

	sess, feedFrom, restoredExact := resumeServedSession(engine, prev, msg.Content, ids)
	if sess == nil {
		s, serr := engine.NewSession()
		if serr != nil {
			log.Printf("session error: %v", serr)
			if respErr := msg.RespondError(serr); respErr != nil {
				log.Printf("response error: %v", respErr)
			}
			return nil
		}
		sess = s
		feedFrom = 0
	}

	bias := engine.SelectedBias(1)
	params := engine.InferenceParameters(bias)
	applyServeOptions(&params, msg.Options)

	var full []byte
	streamToken := func(tok generate.Token) error {
		if msg.Stream {
			return msg.StreamToken(tok.Text)
		}
		return nil
	}

	if !restoredExact && feedFrom < len(ids) {
		if err := generate.FeedTokens(sess, engine.Model, params, ids[feedFrom:], streamToken); err != nil {
			log.Printf("inference error: %v", err)
			if respErr := msg.RespondError(err); respErr != nil {
				log.Printf("response error: %v", respErr)
			}
			sess.Close()
			return nil
		}
		if _, serr := saveSnapshot(engine.Config, sess, msg.Content); serr != nil {
			log.Printf("cache prompt: %v", serr)
		}
	}

	genIDs := append([]int32{}, ids...)
	rng := newRNG(time.Now().UnixNano())
	if _, err := generate.Predict(sess, engine.Model, params, rng, func(tok generate.Token) error {
		full = append(full, tok.Text...)
		genIDs = append(genIDs, tok.ID)
		return streamToken(tok)
	}); err != nil {
		log.Printf("inference error: %v", err)
		if respErr := msg.RespondError(err); respErr != nil {
			log.Printf("response error: %v", respErr)
		}
		sess.Close()
		return nil
	}

	if respErr := msg.Respond(string(full)); respErr != nil {
		log.Printf("response error: %v", respErr)
	}

	return &servedTurn{sess: sess, ids: genIDs}
}

// resumeServedSession decides how to continue from prev given the new
// request's tokens: exact disk-cache hit (Engine.RestoreSession), a
// CommonPrefixLen match against the still-live previous session, or neither
// (nil, signalling the caller should start fresh). feedFrom is the index
// into ids the caller must still feed; restoredExact means the session is
// already fully caught up (no feed needed at all, go straight to Predict).
func resumeServedSession(engine *Engine, prev *servedTurn, content string, ids []int32) (sess *session.Session, feedFrom int, restoredExact bool) {
	if restored, ok := engine.RestoreSession(content); ok {
		if prev != nil {
			prev.sess.Close()
		}
		return restored, len(ids), true
	}

	if prev == nil {
		return nil, 0, false
	}

	common := session.CommonPrefixLen(prev.ids, ids)
	if common == 0 {
		prev.sess.Close()
		return nil, 0, false
	}

	prev.sess.TruncateKV(common)
	return prev.sess, int(common), false
}

func applyServeOptions(params *generate.InferenceParameters, options map[string]interface{}) {
	if temp, ok := options["temperature"].(float64); ok && temp != 0 {
		params.Temperature = float32(temp)
	}
	if maxTokens, ok := options["max_tokens"].(float64); ok && maxTokens != 0 {
		params.MaxTokens = int(maxTokens)
	}
	if topK, ok := options["top_k"].(float64); ok && topK != 0 {
		params.TopK = int(topK)
	}
	if topP, ok := options["top_p"].(float64); ok && topP != 0 {
		params.TopP = float32(topP)
	}
	if repeatPenalty, ok := options["repeat_penalty"].(float64); ok && repeatPenalty != 0 {
		params.RepeatPenalty = float32(repeatPenalty)
	}
}
