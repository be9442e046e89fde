package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xavierarpa/openwork/internal/engine"
)

// runPrompt submits a one-shot text prompt to a session. The effects
// arrive over the event stream; use 'openwork attach' to watch them.
func runPrompt(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("prompt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf commonFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() < 2 {
		fmt.Fprintln(stderr, "Usage: openwork prompt <session-id> <text...>")
		return 1
	}
	sessionID := fs.Arg(0)
	text := strings.Join(fs.Args()[1:], " ")

	cfg, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	client := engine.NewClient(cfg.Engine)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.SendPrompt(ctx, sessionID, text); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Prompt submitted to %s\n", sessionID)
	return 0
}
