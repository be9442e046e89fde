package engine

// This file defines the wire-level entity shapes the collaborator engine
// exchanges over its HTTP API and event channel. The engine replaces
// whole objects on update, so every type here is treated as an opaque
// value: the client never patches individual fields.

// SessionTime carries the engine's timestamps for a session, in Unix
// milliseconds as sent on the wire.
type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// Session is a work session held by the engine.
// The ID is server-assigned and unique.
type Session struct {
	// ID is the unique session identifier.
	ID string `json:"id"`

	// Title is the display title, usually derived from the first prompt.
	Title string `json:"title,omitempty"`

	// Slug is a short human-friendly handle for the session.
	Slug string `json:"slug,omitempty"`

	// Directory is the working directory the session operates in.
	Directory string `json:"directory,omitempty"`

	// Version is the engine version that created the session.
	Version string `json:"version,omitempty"`

	// Time holds creation and last-update timestamps.
	Time SessionTime `json:"time"`
}

// Message is one chat-style message within a session.
type Message struct {
	// ID is the unique message identifier.
	ID string `json:"id"`

	// SessionID is the session this message belongs to.
	SessionID string `json:"sessionID"`

	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Time holds creation and completion timestamps (Unix milliseconds).
	Time MessageTime `json:"time"`
}

// MessageTime carries a message's timestamps.
type MessageTime struct {
	Created   int64 `json:"created"`
	Completed int64 `json:"completed,omitempty"`
}

// Part is one incrementally-streamed piece of a message. The Type
// determines how a shell renders it; it has no influence on how the
// client reconciles it.
type Part struct {
	// ID is the unique part identifier.
	ID string `json:"id"`

	// SessionID is the session this part belongs to.
	SessionID string `json:"sessionID"`

	// MessageID is the message this part belongs to.
	MessageID string `json:"messageID"`

	// Type is the part kind: "text", "reasoning", "tool",
	// "step-start", "step-finish".
	Type string `json:"type"`

	// Text is the content for text and reasoning parts.
	Text string `json:"text,omitempty"`

	// Tool is the tool name for tool invocation parts.
	Tool string `json:"tool,omitempty"`

	// State is the tool invocation state ("pending", "running",
	// "completed", "error") for tool parts.
	State string `json:"state,omitempty"`
}

// MessageRecord is how the engine returns history: each message's info
// paired with its parts in stream order.
type MessageRecord struct {
	Info  Message `json:"info"`
	Parts []Part  `json:"parts"`
}

// PlanItem is one entry of a session's execution plan.
type PlanItem struct {
	// ID is the unique plan item identifier.
	ID string `json:"id"`

	// Content is the item's description.
	Content string `json:"content"`

	// Status is "pending", "in_progress", "completed" or "cancelled".
	Status string `json:"status"`

	// Priority is "high", "medium" or "low".
	Priority string `json:"priority,omitempty"`
}

// PermissionRequest is a pending permission decision held by the engine.
// The engine is the sole source of truth for which requests are pending;
// the client only remembers when it first learned of each one.
type PermissionRequest struct {
	// ID is the unique request identifier.
	ID string `json:"id"`

	// SessionID is the session that raised the request.
	SessionID string `json:"sessionID"`

	// Permission is the requested capability (e.g., "bash", "edit").
	Permission string `json:"permission"`

	// Patterns are the scope patterns the capability would apply to.
	Patterns []string `json:"patterns,omitempty"`

	// Metadata carries request-specific details for display.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Decision is a reply to a permission request.
type Decision string

const (
	// DecisionOnce grants the capability for this request only.
	DecisionOnce Decision = "once"

	// DecisionAlways grants the capability for the rest of the session.
	DecisionAlways Decision = "always"

	// DecisionReject denies the request.
	DecisionReject Decision = "reject"
)

// Valid reports whether d is one of the three accepted decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionOnce, DecisionAlways, DecisionReject:
		return true
	}
	return false
}

// Health is the engine's health probe response.
type Health struct {
	// Version is the engine version string.
	Version string `json:"version"`
}
