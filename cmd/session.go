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

const sessionUsage = `Usage: openwork session <command> [options]

Commands:
  list    List the engine's sessions
  new     Create a session (--title <title>)

Options:
  --config <path>     Config file path
  --engine <addr>     Engine address (overrides config)
`

func runSession(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stdout, sessionUsage)
		return 1
	}

	switch args[0] {
	case "list":
		return runSessionList(args[1:], stdout, stderr)
	case "new":
		return runSessionNew(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown session command: %s\n", args[0])
		fmt.Fprint(stdout, sessionUsage)
		return 1
	}
}

func runSessionList(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("session list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf commonFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	client := engine.NewClient(cfg.Engine)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sessions, err := client.ListSessions(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "No sessions.")
		return 0
	}
	for _, sess := range sessions {
		title := sess.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(stdout, "  %-28s %s\n", sess.ID, title)
		if sess.Directory != "" {
			fmt.Fprintf(stdout, "  %-28s   in %s\n", "", sess.Directory)
		}
	}
	return 0
}

func runSessionNew(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("session new", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf commonFlags
	cf.register(fs)
	title := fs.String("title", "", "Session title")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	// Allow a bare positional title: openwork session new "fix the tests"
	if *title == "" && fs.NArg() > 0 {
		*title = strings.Join(fs.Args(), " ")
	}

	cfg, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	client := engine.NewClient(cfg.Engine)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sess, err := client.CreateSession(ctx, *title)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Created session %s\n", sess.ID)
	return 0
}
