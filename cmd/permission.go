package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/xavierarpa/openwork/internal/engine"
	apperrors "github.com/xavierarpa/openwork/internal/errors"
	"github.com/xavierarpa/openwork/internal/mirror"
	"github.com/xavierarpa/openwork/internal/storage"
)

const permissionUsage = `Usage: openwork permission <command> [options]

Commands:
  list                       List pending permission requests
  respond <id> <decision>    Reply with once, always or reject

Options:
  --config <path>     Config file path
  --engine <addr>     Engine address (overrides config)
`

func runPermission(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stdout, permissionUsage)
		return 1
	}

	switch args[0] {
	case "list":
		return runPermissionList(args[1:], stdout, stderr)
	case "respond":
		return runPermissionRespond(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown permission command: %s\n", args[0])
		fmt.Fprint(stdout, permissionUsage)
		return 1
	}
}

func runPermissionList(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("permission list", flag.ContinueOnError)
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
	pending, err := client.PendingPermissions(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if len(pending) == 0 {
		fmt.Fprintln(stdout, "No pending permission requests.")
		return 0
	}
	for _, perm := range pending {
		fmt.Fprintf(stdout, "  %-28s session %-24s %s %v\n",
			perm.ID, perm.SessionID, perm.Permission, perm.Patterns)
	}
	fmt.Fprintln(stdout, "\nRespond with: openwork permission respond <id> <once|always|reject>")
	return 0
}

func runPermissionRespond(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("permission respond", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf commonFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "Usage: openwork permission respond <id> <once|always|reject>")
		return 1
	}
	requestID := fs.Arg(0)
	decision := engine.Decision(fs.Arg(1))
	if !decision.Valid() {
		fmt.Fprintf(stderr, "Error: %v\n", apperrors.BadDecision(fs.Arg(1)))
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
	replyErr := client.RespondPermission(ctx, requestID, decision)

	// Record the attempt either way; the audit trail is best-effort.
	if cfg.AuditDB != "" {
		if store, err := storage.NewSQLiteStore(cfg.AuditDB); err == nil {
			rec := mirror.DecisionRecord{
				RequestID: requestID,
				Decision:  decision,
				Outcome:   "ok",
				DecidedAt: time.Now(),
			}
			if replyErr != nil {
				rec.Outcome = replyErr.Error()
			}
			if err := store.RecordDecision(rec); err != nil {
				fmt.Fprintf(stderr, "Warning: audit write failed: %v\n", err)
			}
			store.Close()
		}
	}

	if replyErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", replyErr)
		return 1
	}
	fmt.Fprintf(stdout, "Replied %s to %s\n", decision, requestID)
	return 0
}
