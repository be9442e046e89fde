package main

import (
	"flag"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/xavierarpa/openwork/internal/config"
	"github.com/xavierarpa/openwork/internal/engine"
	"github.com/xavierarpa/openwork/internal/mirror"
	"github.com/xavierarpa/openwork/internal/storage"
)

// commonFlags are the flags every command that talks to an engine
// accepts. Flag values override the config file.
type commonFlags struct {
	configPath string
	engineAddr string
}

// register wires the shared flags into a command's flag set.
func (cf *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&cf.configPath, "config", "", "Config file path (default ~/.openwork/config.toml)")
	fs.StringVar(&cf.engineAddr, "engine", "", "Engine address as host:port (overrides config)")
}

// resolve loads the config file and applies flag overrides.
func (cf *commonFlags) resolve() (*config.Config, error) {
	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cf.engineAddr != "" {
		cfg.Engine = cf.engineAddr
	}
	return cfg, nil
}

// engineFactory adapts engine.NewClient to the supervisor's factory
// signature.
func engineFactory(target string) (mirror.Client, error) {
	return engine.NewClient(target), nil
}

// buildSupervisor assembles a store and supervisor from the config.
// The audit store is best-effort: if it cannot be opened, decisions go
// unrecorded and a warning lands on stderr.
func buildSupervisor(cfg *config.Config, stderr io.Writer) (*mirror.Supervisor, func()) {
	store := mirror.NewStore()

	opts := []mirror.Option{
		mirror.WithProbeTimeout(time.Duration(cfg.ProbeTimeoutMs) * time.Millisecond),
		mirror.WithPromptLimit(rate.Limit(cfg.PromptRatePerSec), cfg.PromptBurst),
	}

	cleanup := func() {}
	if cfg.AuditDB != "" {
		if auditor, err := storage.NewSQLiteStore(cfg.AuditDB); err == nil {
			opts = append(opts, mirror.WithAuditor(auditor))
			cleanup = func() { auditor.Close() }
		} else {
			io.WriteString(stderr, "Warning: audit store unavailable: "+err.Error()+"\n")
		}
	}

	return mirror.NewSupervisor(store, engineFactory, opts...), cleanup
}
