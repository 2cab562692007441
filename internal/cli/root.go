//go:build native

package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"wizgo/internal/config"
)

// Execute is the entry point for the wizgo CLI.
func Execute() int {
	ctx := context.Background()
	args := os.Args[1:]

	cfg, err := config.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	if len(args) == 0 {
		return runRepl(ctx, cfg, []string{})
	}

	subcommand := args[0]
	switch subcommand {
	case "chat":
		return runChat(ctx, cfg, args[1:])
	case "repl":
		return runRepl(ctx, cfg, args[1:])
	case "cache":
		return runCache(ctx, cfg, args[1:])
	case "serve":
		return runServe(ctx, cfg, args[1:])
	case "config":
		return runConfig(cfg)
	case "help", "-h", "--help":
		printHelp()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", subcommand)
		printHelp()
		return 1
	}
}

func runChat(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	message := fs.String("message", "", "Prompt to send to the model")
	stream := fs.Bool("stream", true, "Stream tokens as they are generated")
	showStats := fs.Bool("stats", false, "Print token counts and timing after the response")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse flags: %v\n", err)
		return 1
	}

	remaining := fs.Args()
	if *message == "" && len(remaining) > 0 {
		*message = strings.Join(remaining, " ")
	}
	if strings.TrimSpace(*message) == "" {
		fmt.Fprintln(os.Stderr, "chat requires a message (--message) or positional argument")
		return 1
	}

	return RunChat(ctx, cfg, strings.TrimSpace(*message), ChatOptions{Stream: *stream, ShowStats: *showStats})
}

func runRepl(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	tui := fs.Bool("tui", false, "Use the full-screen Bubble Tea interface instead of the plain REPL")
	showStats := fs.Bool("stats", false, "Print token counts and timing after each turn")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse flags: %v\n", err)
		return 1
	}

	opts := ReplOptions{ShowStats: *showStats}
	if *tui {
		return RunTui(ctx, cfg, opts)
	}
	return RunRepl(ctx, cfg, opts)
}

func runCache(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	message := fs.String("message", "", "Prompt to feed and cache")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse flags: %v\n", err)
		return 1
	}

	remaining := fs.Args()
	if *message == "" && len(remaining) > 0 {
		*message = strings.Join(remaining, " ")
	}
	if strings.TrimSpace(*message) == "" {
		fmt.Fprintln(os.Stderr, "cache requires a message (--message) or positional argument")
		return 1
	}

	return RunCache(ctx, cfg, strings.TrimSpace(*message))
}

func printHelp() {
	fmt.Println(`wizgo - CPU ggml inference engine for MPT/Replit-Code models

Usage:
  wizgo [command] [flags]

Commands:
  chat     Run a single prompt against the configured model
  repl     Interactive conversation loop (add --tui for the full-screen UI)
  cache    Feed a prompt once and persist its KV-cache snapshot for reuse
  serve    Start the HTTP/SSE server
  config   Print the resolved configuration
  help     Show this message

Use "wizgo [command] --help" for more information about a command.`)
}
