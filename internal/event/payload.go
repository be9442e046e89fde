package event

import (
	"encoding/json"

	"github.com/xavierarpa/openwork/internal/engine"
)

// Payload shapes for the event types the reconciler handles. Each decode
// helper validates at the boundary: a payload that does not match its
// expected shape yields ok=false and the event becomes a no-op. No
// partially-decoded value ever reaches the reconciler.

// SessionPayload carries a full session object for created/updated events.
type SessionPayload struct {
	// Info is the complete session; updates replace the stored object.
	Info engine.Session `json:"info"`
}

// SessionDeletedPayload identifies the removed session.
type SessionDeletedPayload struct {
	Info engine.Session `json:"info"`
}

// StatusPayload reports a session's activity state. The Status string is
// whatever the engine sent; the reconciler maps it onto the closed
// client-side set.
type StatusPayload struct {
	SessionID string `json:"sessionID"`
	Status    string `json:"status"`
}

// MessagePayload carries a full message info object. Parts are streamed
// separately via part events and are untouched by message updates.
type MessagePayload struct {
	Info engine.Message `json:"info"`
}

// MessageRemovedPayload identifies the removed message.
type MessageRemovedPayload struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
}

// PartPayload carries a full message part.
type PartPayload struct {
	Part engine.Part `json:"part"`
}

// TodoPayload carries the wholesale replacement plan for a session.
type TodoPayload struct {
	SessionID string            `json:"sessionID"`
	Todos     []engine.PlanItem `json:"todos"`
}

// DecodeSession decodes a SessionPayload, requiring a session id.
func DecodeSession(props json.RawMessage) (SessionPayload, bool) {
	var p SessionPayload
	if err := json.Unmarshal(props, &p); err != nil || p.Info.ID == "" {
		return SessionPayload{}, false
	}
	return p, true
}

// DecodeSessionDeleted decodes a SessionDeletedPayload.
func DecodeSessionDeleted(props json.RawMessage) (SessionDeletedPayload, bool) {
	var p SessionDeletedPayload
	if err := json.Unmarshal(props, &p); err != nil || p.Info.ID == "" {
		return SessionDeletedPayload{}, false
	}
	return p, true
}

// DecodeStatus decodes a StatusPayload. Only the session id is required;
// a missing or unrecognized status is still a valid payload because the
// reconciler lossily maps it to idle.
func DecodeStatus(props json.RawMessage) (StatusPayload, bool) {
	var p StatusPayload
	if err := json.Unmarshal(props, &p); err != nil || p.SessionID == "" {
		return StatusPayload{}, false
	}
	return p, true
}

// DecodeMessage decodes a MessagePayload, requiring message and session ids.
func DecodeMessage(props json.RawMessage) (MessagePayload, bool) {
	var p MessagePayload
	if err := json.Unmarshal(props, &p); err != nil || p.Info.ID == "" || p.Info.SessionID == "" {
		return MessagePayload{}, false
	}
	return p, true
}

// DecodeMessageRemoved decodes a MessageRemovedPayload.
func DecodeMessageRemoved(props json.RawMessage) (MessageRemovedPayload, bool) {
	var p MessageRemovedPayload
	if err := json.Unmarshal(props, &p); err != nil || p.MessageID == "" {
		return MessageRemovedPayload{}, false
	}
	return p, true
}

// DecodePart decodes a PartPayload, requiring part and message ids.
func DecodePart(props json.RawMessage) (PartPayload, bool) {
	var p PartPayload
	if err := json.Unmarshal(props, &p); err != nil || p.Part.ID == "" || p.Part.MessageID == "" {
		return PartPayload{}, false
	}
	return p, true
}

// DecodeTodo decodes a TodoPayload, requiring a session id. An empty
// todo list is valid: it clears the plan.
func DecodeTodo(props json.RawMessage) (TodoPayload, bool) {
	var p TodoPayload
	if err := json.Unmarshal(props, &p); err != nil || p.SessionID == "" {
		return TodoPayload{}, false
	}
	return p, true
}
