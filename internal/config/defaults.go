package config

// DefaultEngineAddr is the engine address assumed when none is given.
const DefaultEngineAddr = "127.0.0.1:4096"

// DefaultProbeTimeoutMs bounds the connect-time health probe.
const DefaultProbeTimeoutMs = 12000

// DefaultLogLevel is the logging verbosity when unconfigured.
const DefaultLogLevel = "info"

// DefaultPromptRatePerSec and DefaultPromptBurst shape the prompt
// submission rate limiter.
const (
	DefaultPromptRatePerSec = 1.0
	DefaultPromptBurst      = 5
)
