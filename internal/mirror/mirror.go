// Package mirror keeps a client-side mirror of the collaborator engine's
// state: sessions, the foreground session's messages and parts, its plan,
// per-session activity status, and the pending permission queue.
//
// Two update paths feed the mirror and must never observe each other
// half-applied: asynchronous push events from the engine's stream
// (reconciled one frame at a time, in transport order) and synchronous
// pull calls (cold loads that replace a collection wholesale). Every
// mutation is an atomic whole-collection swap, so readers always see a
// consistent snapshot and no locks are needed on the read path beyond
// the store's own.
package mirror

import (
	"time"

	"github.com/xavierarpa/openwork/internal/engine"
)

// ConnState is the supervisor's connection lifecycle state.
// There is no automatic retry transition: every re-entry into
// StateConnecting is user-initiated.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Status is a session's activity state as the client tracks it. It is a
// derived side-value keyed by session id, stored independently of the
// session object. A session with no recorded status is idle; absence is
// a valid, meaningful state, not an error.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusRetry   Status = "retry"
)

// NormalizeStatus lossily maps whatever status string the engine sent
// onto the closed client-side set. Anything unrecognized, including the
// empty string, maps to idle. Downstream surfaces only need the three
// states, so losing the engine's finer distinctions here is intentional.
func NormalizeStatus(s string) Status {
	switch s {
	case "running", "busy", "working", "streaming":
		return StatusRunning
	case "retry", "retrying":
		return StatusRetry
	default:
		return StatusIdle
	}
}

// MessageView is one message of the foreground session together with its
// parts in stream order. Part order is fixed at first sight: new parts
// append, existing parts update in place, positions are never revised.
type MessageView struct {
	Info  engine.Message
	Parts []engine.Part
}

// PermissionRequest is a pending permission request plus the one field
// the engine does not supply: when this client first learned of it.
// ReceivedAt survives queue refreshes for ids seen before.
type PermissionRequest struct {
	engine.PermissionRequest

	// ReceivedAt is stamped locally when the request first appears in a
	// refresh, and carried over on every later refresh.
	ReceivedAt time.Time
}
