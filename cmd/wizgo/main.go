// Command wizgo runs the CPU ggml inference engine for MPT/Replit-Code
// models: one-shot chat, an interactive REPL, prompt caching, and an
// HTTP/SSE server, all over a single loaded model and session.
package main

import (
	"os"

	"wizgo/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
