// Package errors provides standardized error codes for the openwork client.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (engine, stream, sync, session, permission)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by the CLI shell (and any future
// surfaces) for programmatic error handling. Human-readable messages are
// provided alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
// These are stable identifiers the shell can rely on for error handling.
const (
	// Engine domain - request/response calls against the collaborator engine
	CodeEngineUnreachable   = "engine.unreachable"    // Engine did not answer at all
	CodeEngineProbeFailed   = "engine.probe_failed"   // Health probe failed or timed out
	CodeEngineBadStatus     = "engine.bad_status"     // Engine answered with a non-2xx status
	CodeEngineBadResponse   = "engine.bad_response"   // Engine response body could not be decoded
	CodeEngineCreateFailed  = "engine.create_failed"  // Session creation call failed
	CodeEnginePromptFailed  = "engine.prompt_failed"  // Prompt submission call failed
	CodeEngineHistoryFailed = "engine.history_failed" // Message history pull failed
	CodeEnginePlanFailed    = "engine.plan_failed"    // Plan pull failed

	// Stream domain - websocket event subscription
	CodeStreamDialFailed = "stream.dial_failed" // Could not open the event subscription
	CodeStreamClosed     = "stream.closed"      // Subscription closed unexpectedly
	CodeStreamActive     = "stream.active"      // A subscription is already active

	// Sync domain - mirror state and supervisor lifecycle
	CodeSyncNotConnected     = "sync.not_connected"     // Operation requires a connected supervisor
	CodeSyncAlreadyConnected = "sync.already_connected" // Connect while a connection is live
	CodeSyncRateLimited      = "sync.rate_limited"      // Prompt submission rate limit hit

	// Session domain - session-scoped operations
	CodeSessionNotFound    = "session.not_found"    // Session id unknown to the mirror
	CodeSessionNotSelected = "session.not_selected" // Operation requires a foreground session

	// Permission domain - pending permission requests and replies
	CodePermissionNotFound      = "permission.not_found"      // Request id not in the queue
	CodePermissionReplyFailed   = "permission.reply_failed"   // Decision call failed
	CodePermissionRefreshFailed = "permission.refresh_failed" // Pending-list pull failed
	CodePermissionBadDecision   = "permission.bad_decision"   // Decision outside {once, always, reject}

	// Config domain - configuration loading
	CodeConfigReadFailed  = "config.read_failed"  // Config file could not be read
	CodeConfigParseFailed = "config.parse_failed" // Config file could not be parsed

	// Audit domain - local decision audit store
	CodeAuditOpenFailed  = "audit.open_failed"  // Audit database open failed
	CodeAuditWriteFailed = "audit.write_failed" // Failed to record a decision
	CodeAuditQueryFailed = "audit.query_failed" // Failed to read recorded decisions

	// Discover domain - mDNS engine discovery
	CodeDiscoverFailed = "discover.failed" // mDNS browse failed

	// Launch domain - local engine process supervision
	CodeLaunchSpawnFailed = "launch.spawn_failed" // Failed to spawn the engine process
	CodeLaunchNotReady    = "launch.not_ready"    // Engine never became healthy

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal client error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "engine.probe_failed")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// If the error is a CodedError, returns its code.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// ProbeFailed creates an "engine.probe_failed" error.
// The cause is preserved verbatim so the shell can show exactly why the
// probe failed (the supervisor never retries on its own).
func ProbeFailed(target string, cause error) *CodedError {
	return Wrap(CodeEngineProbeFailed, fmt.Sprintf("health probe of %s failed", target), cause)
}

// BadStatus creates an "engine.bad_status" error for a non-2xx response.
func BadStatus(call string, status int) *CodedError {
	return New(CodeEngineBadStatus, fmt.Sprintf("%s returned HTTP %d", call, status))
}

// BadDecision creates a "permission.bad_decision" error.
func BadDecision(decision string) *CodedError {
	return New(CodePermissionBadDecision,
		fmt.Sprintf("invalid decision: %s (must be 'once', 'always' or 'reject')", decision))
}

// NotConnected creates a "sync.not_connected" error.
func NotConnected(operation string) *CodedError {
	return New(CodeSyncNotConnected, fmt.Sprintf("%s requires an active connection", operation))
}

// SessionNotFound creates a "session.not_found" error.
func SessionNotFound(id string) *CodedError {
	return New(CodeSessionNotFound, fmt.Sprintf("session %s not found", id))
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}
