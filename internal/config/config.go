// Package config provides TOML configuration file loading for the
// openwork client. The configuration file lives at
// ~/.openwork/config.toml by default, but can be overridden with the
// --config flag. CLI flags always take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	apperrors "github.com/xavierarpa/openwork/internal/errors"
)

// Config represents the client configuration file structure.
// Field names use Go camelCase internally but map to snake_case in
// TOML files via struct tags.
type Config struct {
	// Engine is the host:port of the engine to attach to.
	// Default: 127.0.0.1:4096
	Engine string `toml:"engine"`

	// ProbeTimeoutMs bounds the health probe during connect, in
	// milliseconds. Default: 12000
	ProbeTimeoutMs int `toml:"probe_timeout_ms"`

	// LogLevel controls logging verbosity: debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level"`

	// AuditDB is the path to the SQLite database recording permission
	// decisions. Default: ~/.openwork/openwork.db
	AuditDB string `toml:"audit_db"`

	// MdnsEnabled enables mDNS browsing when the engine address is not
	// given explicitly. Discovery only reveals presence on the local
	// network. Default: false
	MdnsEnabled bool `toml:"mdns_enabled"`

	// EngineCmd is the command used by 'openwork launch' to start a
	// local engine. If empty, launch requires an explicit command.
	EngineCmd string `toml:"engine_cmd"`

	// PromptRatePerSec caps prompt submissions per second.
	// Default: 1
	PromptRatePerSec float64 `toml:"prompt_rate_per_sec"`

	// PromptBurst is the prompt rate limiter's burst allowance.
	// Default: 5
	PromptBurst int `toml:"prompt_burst"`
}

// DefaultConfigPath returns the default config file location:
// ~/.openwork/config.toml. Returns an error only if the user's home
// directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".openwork", "config.toml"), nil
}

// DefaultAuditDBPath returns the default decision audit database
// location: ~/.openwork/openwork.db.
func DefaultAuditDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".openwork", "openwork.db"), nil
}

// WriteDefault creates a config file with commented defaults at the
// given path.
//
// Behavior:
//   - If the file already exists, returns without error (does not overwrite).
//   - Creates the parent directory if it doesn't exist.
//   - Returns an error if the file cannot be written.
func WriteDefault(path string, engine string) error {
	// Never overwrite an existing config.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return apperrors.Wrap(apperrors.CodeConfigReadFailed, "create config directory", err)
	}

	content := fmt.Sprintf(`# Openwork configuration

# Engine to attach to
engine = %q

# Bound on the connect-time health probe, in milliseconds
probe_timeout_ms = 12000

# debug, info, warn, error
log_level = "info"
`, engine)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return apperrors.Wrap(apperrors.CodeConfigReadFailed, "write config file", err)
	}
	return nil
}

// Load reads a TOML config file from the given path and returns a
// Config with defaults applied on top of missing fields.
//
// Behavior:
//   - If path is empty, attempts to load from the default location and
//     returns defaults without error if the file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			cfg.applyDefaults()
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		path = defaultPath
	} else {
		// An explicitly named config file must exist.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, apperrors.New(apperrors.CodeConfigReadFailed,
				fmt.Sprintf("config file not found: %s", path))
		}
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigParseFailed,
			fmt.Sprintf("parse config file %s", path), err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Validate checks field values that defaults cannot repair. Zero
// values mean "use default" and are always valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return apperrors.New(apperrors.CodeConfigParseFailed,
			fmt.Sprintf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.ProbeTimeoutMs < 0 {
		return apperrors.New(apperrors.CodeConfigParseFailed,
			fmt.Sprintf("probe_timeout_ms must not be negative, got %d", c.ProbeTimeoutMs))
	}
	if c.PromptBurst < 0 {
		return apperrors.New(apperrors.CodeConfigParseFailed,
			fmt.Sprintf("prompt_burst must not be negative, got %d", c.PromptBurst))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Engine == "" {
		c.Engine = DefaultEngineAddr
	}
	if c.ProbeTimeoutMs <= 0 {
		c.ProbeTimeoutMs = DefaultProbeTimeoutMs
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.AuditDB == "" {
		if p, err := DefaultAuditDBPath(); err == nil {
			c.AuditDB = p
		}
	}
	if c.PromptRatePerSec <= 0 {
		c.PromptRatePerSec = DefaultPromptRatePerSec
	}
	if c.PromptBurst <= 0 {
		c.PromptBurst = DefaultPromptBurst
	}
}
