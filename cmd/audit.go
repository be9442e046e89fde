package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/xavierarpa/openwork/internal/storage"
)

// runAudit lists recorded permission decisions, newest first.
func runAudit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf commonFlags
	cf.register(fs)
	limit := fs.Int("limit", 20, "Maximum decisions to show (0 for all)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.AuditDB == "" {
		fmt.Fprintln(stderr, "Error: no audit database configured")
		return 1
	}

	store, err := storage.NewSQLiteStore(cfg.AuditDB)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	records, err := store.ListDecisions(*limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if len(records) == 0 {
		fmt.Fprintln(stdout, "No recorded decisions.")
		return 0
	}
	for _, rec := range records {
		outcome := rec.Outcome
		if outcome == "ok" {
			outcome = ""
		} else {
			outcome = "  (" + outcome + ")"
		}
		fmt.Fprintf(stdout, "  %s  %-7s %-10s request %s%s\n",
			rec.DecidedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Decision, rec.Permission, rec.RequestID, outcome)
	}
	return 0
}
