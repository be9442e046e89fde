// Package event defines the normalized event envelope the sync engine
// consumes, and the closed set of event types it understands.
//
// The engine's push channel delivers frames whose wrapping depth varies:
// some transports deliver `{type, properties}` directly, others wrap that
// pair inside a `payload` field. Normalize gives the rest of the client a
// single stable parsing contract regardless of wrapping. Anything that
// fails normalization is filtered out upstream and never reaches the
// reconciler.
package event

import "encoding/json"

// Type identifies what kind of event a frame carries.
type Type string

const (
	// TypeSessionCreated announces a new session.
	// Properties: SessionPayload
	TypeSessionCreated Type = "session.created"

	// TypeSessionUpdated replaces an existing session wholesale.
	// Properties: SessionPayload
	TypeSessionUpdated Type = "session.updated"

	// TypeSessionDeleted removes a session.
	// Properties: SessionDeletedPayload
	TypeSessionDeleted Type = "session.deleted"

	// TypeSessionStatus reports a session's activity state.
	// Properties: StatusPayload
	TypeSessionStatus Type = "session.status"

	// TypeMessageUpdated creates or replaces a message's info.
	// The message's parts list is untouched by this event.
	// Properties: MessagePayload
	TypeMessageUpdated Type = "message.updated"

	// TypeMessageRemoved removes a message.
	// Properties: MessageRemovedPayload
	TypeMessageRemoved Type = "message.removed"

	// TypePartUpdated creates or replaces a single message part.
	// Properties: PartPayload
	TypePartUpdated Type = "message.part.updated"

	// TypeTodoUpdated replaces the plan of a session wholesale.
	// Properties: TodoPayload
	TypeTodoUpdated Type = "todo.updated"

	// TypePermissionUpdated signals that the pending permission set
	// changed. The payload carries no authoritative data; the client
	// re-polls the pending list instead.
	TypePermissionUpdated Type = "permission.updated"
)

// Envelope is the normalized `{type, properties}` shape all downstream
// logic consumes. Envelopes are transient: the reconciler applies them
// and they are never retained.
type Envelope struct {
	// Type identifies which handler the reconciler dispatches to.
	Type Type `json:"type"`

	// Properties is the event-specific data, left opaque until a
	// handler decodes it against its expected payload shape.
	Properties json.RawMessage `json:"properties"`
}

// frame mirrors the two wire shapes we accept. Type is decoded as a
// RawMessage first so a non-string `type` (a number, an object) fails
// the string check instead of poisoning the whole unmarshal.
type frame struct {
	Type       json.RawMessage `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Payload    json.RawMessage `json:"payload"`
}

// Normalize converts one raw frame into an Envelope, or nil if the frame
// is not one of the two accepted shapes:
//
//  1. a top-level object with a string `type` field, or
//  2. an object whose `payload` field is itself an object with a
//     string `type` field (the double-wrapped transport case).
//
// Malformed or unrecognized frames are not errors; callers drop them.
func Normalize(raw []byte) *Envelope {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}

	if t, ok := stringType(f.Type); ok {
		return &Envelope{Type: Type(t), Properties: f.Properties}
	}

	// Second tier: unwrap one level of payload nesting.
	if len(f.Payload) == 0 {
		return nil
	}
	var inner frame
	if err := json.Unmarshal(f.Payload, &inner); err != nil {
		return nil
	}
	if t, ok := stringType(inner.Type); ok {
		return &Envelope{Type: Type(t), Properties: inner.Properties}
	}

	return nil
}

// stringType reports whether the raw JSON value is a non-empty string.
func stringType(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	if s == "" {
		return "", false
	}
	return s, true
}
