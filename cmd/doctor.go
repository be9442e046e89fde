package main

// doctor.go implements the `openwork doctor` diagnostic command.
//
// Doctor runs a sequence of preflight checks against the configuration
// and the configured engine and reports actionable remediation guidance
// for any issues. It supports both human-readable (default) and
// machine-readable (--json) output.

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/xavierarpa/openwork/internal/config"
	"github.com/xavierarpa/openwork/internal/engine"
	"github.com/xavierarpa/openwork/internal/storage"
)

// DoctorResult is the top-level JSON output for `openwork doctor --json`.
type DoctorResult struct {
	// Version is the doctor output schema version. Always "1".
	Version string `json:"version"`

	// Checks is the ordered list of diagnostic checks that were evaluated.
	Checks []DoctorCheck `json:"checks"`

	// Summary contains aggregate pass/fail counts derived from Checks.
	Summary DoctorSummary `json:"summary"`
}

// DoctorCheck is one diagnostic check in the doctor output.
type DoctorCheck struct {
	// ID is a stable, machine-readable identifier for the check.
	ID string `json:"id"`

	// Status is the check result: "pass", "warn", or "fail".
	Status string `json:"status"`

	// Message is a human-readable summary of what was found.
	Message string `json:"message"`

	// NextAction is a concrete remediation step the operator should take.
	NextAction string `json:"next_action,omitempty"`
}

// DoctorSummary holds aggregate counts of check outcomes.
type DoctorSummary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Stable check IDs. These are part of the CLI contract and must not change.
const (
	checkIDConfig      = "config.file"
	checkIDEngineReach = "engine.reachability"
	checkIDStream      = "stream.subscription"
	checkIDAudit       = "audit.store"
)

const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

// Function-variable seams for testability. Tests override these to
// inject deterministic behavior without network access.
var (
	doctorProbe = func(ctx context.Context, target string) (engine.Health, error) {
		client := engine.NewClient(target)
		defer client.Close()
		return client.Health(ctx)
	}

	doctorDialStream = func(ctx context.Context, target string) error {
		client := engine.NewClient(target)
		defer client.Close()
		sub, err := client.Subscribe(ctx)
		if err != nil {
			return err
		}
		return sub.Close()
	}
)

func runDoctor(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cf commonFlags
	cf.register(fs)
	jsonMode := fs.Bool("json", false, "Output in JSON format")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	result := DoctorResult{Version: "1"}

	// config.file
	cfg, err := cf.resolve()
	if err != nil {
		result.Checks = append(result.Checks, DoctorCheck{
			ID:         checkIDConfig,
			Status:     statusFail,
			Message:    err.Error(),
			NextAction: "Fix the config file or pass --config with a valid path",
		})
		// Fall back to defaults so the remaining checks still run.
		cfg = &config.Config{Engine: config.DefaultEngineAddr, ProbeTimeoutMs: config.DefaultProbeTimeoutMs}
		if cf.engineAddr != "" {
			cfg.Engine = cf.engineAddr
		}
	} else {
		result.Checks = append(result.Checks, DoctorCheck{
			ID:      checkIDConfig,
			Status:  statusPass,
			Message: fmt.Sprintf("config loaded, engine %s", cfg.Engine),
		})
	}

	probeTimeout := time.Duration(cfg.ProbeTimeoutMs) * time.Millisecond

	// engine.reachability
	probeCtx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	health, err := doctorProbe(probeCtx, cfg.Engine)
	cancel()
	if err != nil {
		result.Checks = append(result.Checks, DoctorCheck{
			ID:         checkIDEngineReach,
			Status:     statusFail,
			Message:    err.Error(),
			NextAction: "Check that the engine is running and reachable at " + cfg.Engine,
		})
	} else {
		result.Checks = append(result.Checks, DoctorCheck{
			ID:      checkIDEngineReach,
			Status:  statusPass,
			Message: fmt.Sprintf("engine %s healthy (version %s)", cfg.Engine, health.Version),
		})

		// stream.subscription only makes sense against a healthy engine.
		dialCtx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		err := doctorDialStream(dialCtx, cfg.Engine)
		cancel()
		if err != nil {
			result.Checks = append(result.Checks, DoctorCheck{
				ID:         checkIDStream,
				Status:     statusFail,
				Message:    err.Error(),
				NextAction: "Check that the engine's websocket endpoint is not blocked",
			})
		} else {
			result.Checks = append(result.Checks, DoctorCheck{
				ID:      checkIDStream,
				Status:  statusPass,
				Message: "event stream subscription succeeded",
			})
		}
	}

	// audit.store
	if cfg.AuditDB == "" {
		result.Checks = append(result.Checks, DoctorCheck{
			ID:      checkIDAudit,
			Status:  statusWarn,
			Message: "no audit database configured; permission decisions will not be recorded",
		})
	} else if store, err := storage.NewSQLiteStore(cfg.AuditDB); err != nil {
		result.Checks = append(result.Checks, DoctorCheck{
			ID:         checkIDAudit,
			Status:     statusFail,
			Message:    err.Error(),
			NextAction: "Check permissions on " + cfg.AuditDB,
		})
	} else {
		store.Close()
		result.Checks = append(result.Checks, DoctorCheck{
			ID:      checkIDAudit,
			Status:  statusPass,
			Message: "audit database writable at " + cfg.AuditDB,
		})
	}

	for _, c := range result.Checks {
		switch c.Status {
		case statusPass:
			result.Summary.Pass++
		case statusWarn:
			result.Summary.Warn++
		case statusFail:
			result.Summary.Fail++
		}
	}

	if *jsonMode {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(result)
	} else {
		for _, c := range result.Checks {
			fmt.Fprintf(stdout, "[%s] %s: %s\n", c.Status, c.ID, c.Message)
			if c.NextAction != "" {
				fmt.Fprintf(stdout, "       next: %s\n", c.NextAction)
			}
		}
		fmt.Fprintf(stdout, "\n%d passed, %d warnings, %d failed\n",
			result.Summary.Pass, result.Summary.Warn, result.Summary.Fail)
	}

	if result.Summary.Fail > 0 {
		return 1
	}
	return 0
}
