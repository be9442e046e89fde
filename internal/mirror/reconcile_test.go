package mirror

import (
	"encoding/json"
	"testing"

	"github.com/xavierarpa/openwork/internal/engine"
	"github.com/xavierarpa/openwork/internal/event"
)

// env builds a normalized envelope from a type and a JSON properties
// literal, the way the pump would after Normalize.
func env(t *testing.T, typ event.Type, props string) *event.Envelope {
	t.Helper()
	return &event.Envelope{Type: typ, Properties: json.RawMessage(props)}
}

func TestApply_SessionThenMessageThenPart(t *testing.T) {
	// Scenario: session.created, then message.updated for it, then a
	// part for that message. Final state: one session, one message with
	// exactly one part.
	s := NewStore()
	r := NewReconciler(s)

	r.Apply(env(t, event.TypeSessionCreated, `{"info":{"id":"s1","title":"refactor"}}`))
	s.SelectSession("s1")
	s.ReplaceMessages("s1", nil)
	r.Apply(env(t, event.TypeMessageUpdated, `{"info":{"id":"m1","sessionID":"s1","role":"assistant"}}`))
	r.Apply(env(t, event.TypePartUpdated, `{"part":{"id":"p1","sessionID":"s1","messageID":"m1","type":"text","text":"hi"}}`))

	if got := len(s.Sessions()); got != 1 {
		t.Fatalf("sessions = %d, want 1", got)
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Info.ID != "m1" {
		t.Fatalf("messages = %+v, want exactly m1", msgs)
	}
	if len(msgs[0].Parts) != 1 || msgs[0].Parts[0].ID != "p1" {
		t.Errorf("parts = %+v, want exactly p1", msgs[0].Parts)
	}
}

func TestApply_PartBeforeMessageIsDropped(t *testing.T) {
	// Scenario: a part arrives before any message.updated for its
	// message. No message or part is created; state is unchanged.
	s := NewStore()
	r := NewReconciler(s)
	s.SelectSession("s1")

	r.Apply(env(t, event.TypePartUpdated, `{"part":{"id":"p1","sessionID":"s1","messageID":"m1","type":"text","text":"early"}}`))

	if got := len(s.Messages()); got != 0 {
		t.Errorf("messages = %d, want 0: an early part must not materialize anything", got)
	}
}

func TestApply_SessionUpdatedSharesCreatedHandler(t *testing.T) {
	s := NewStore()
	r := NewReconciler(s)

	// updated for an unseen id inserts, created for a seen id replaces.
	r.Apply(env(t, event.TypeSessionUpdated, `{"info":{"id":"s1","title":"v1"}}`))
	r.Apply(env(t, event.TypeSessionCreated, `{"info":{"id":"s1","title":"v2"}}`))

	sessions := s.Sessions()
	if len(sessions) != 1 || sessions[0].Title != "v2" {
		t.Errorf("sessions = %+v, want one entry titled v2", sessions)
	}
}

func TestApply_SessionDeleted(t *testing.T) {
	s := NewStore()
	r := NewReconciler(s)
	r.Apply(env(t, event.TypeSessionCreated, `{"info":{"id":"s1"}}`))
	r.Apply(env(t, event.TypeSessionCreated, `{"info":{"id":"s2"}}`))

	r.Apply(env(t, event.TypeSessionDeleted, `{"info":{"id":"s1"}}`))

	sessions := s.Sessions()
	if len(sessions) != 1 || sessions[0].ID != "s2" {
		t.Errorf("sessions = %+v, want only s2", sessions)
	}
}

func TestApply_StatusNormalized(t *testing.T) {
	s := NewStore()
	r := NewReconciler(s)

	r.Apply(env(t, event.TypeSessionStatus, `{"sessionID":"s1","status":"busy"}`))
	if st := s.Status("s1"); st != StatusRunning {
		t.Errorf("status = %s, want running", st)
	}

	// Unrecognized shape maps to idle.
	r.Apply(env(t, event.TypeSessionStatus, `{"sessionID":"s1","status":"hibernating"}`))
	if st := s.Status("s1"); st != StatusIdle {
		t.Errorf("status = %s, want idle", st)
	}
}

func TestApply_TodoForOtherSessionIgnored(t *testing.T) {
	s := NewStore()
	r := NewReconciler(s)
	s.SelectSession("mine")
	s.ReplacePlan("mine", []engine.PlanItem{{ID: "t1", Content: "keep", Status: "pending"}})

	r.Apply(env(t, event.TypeTodoUpdated, `{"sessionID":"theirs","todos":[{"id":"tx","content":"drop me","status":"pending"}]}`))

	plan := s.Plan()
	if len(plan) != 1 || plan[0].ID != "t1" {
		t.Errorf("plan = %+v, a todo event for another session must be dropped", plan)
	}
}

func TestApply_TodoReplacesWholesale(t *testing.T) {
	s := NewStore()
	r := NewReconciler(s)
	s.SelectSession("s1")
	s.ReplacePlan("s1", []engine.PlanItem{
		{ID: "t1", Content: "old", Status: "in_progress"},
		{ID: "t2", Content: "older", Status: "pending"},
	})

	r.Apply(env(t, event.TypeTodoUpdated, `{"sessionID":"s1","todos":[{"id":"t3","content":"new","status":"pending"}]}`))

	plan := s.Plan()
	if len(plan) != 1 || plan[0].ID != "t3" {
		t.Errorf("plan = %+v, want wholesale replacement, not per-item patching", plan)
	}
}

func TestApply_PermissionSignalsRefresh(t *testing.T) {
	s := NewStore()
	r := NewReconciler(s)

	effect := r.Apply(env(t, event.TypePermissionUpdated, `{"anything":"goes"}`))
	if !effect.RefreshPermissions {
		t.Error("a permission event must request a re-poll")
	}
	// The payload itself must not have touched the queue.
	if got := len(s.Permissions()); got != 0 {
		t.Errorf("permissions = %d, want 0: the event payload is not authoritative", got)
	}
}

func TestApply_UnknownTypeIsNoOp(t *testing.T) {
	s := NewStore()
	r := NewReconciler(s)
	s.UpsertSession(engine.Session{ID: "s1"})

	effect := r.Apply(env(t, "installation.updated", `{"version":"9.9.9"}`))

	if effect.RefreshPermissions {
		t.Error("unknown types must not produce effects")
	}
	if got := len(s.Sessions()); got != 1 {
		t.Errorf("unknown event mutated state: %d sessions", got)
	}
}

func TestApply_MalformedPayloadIsNoOp(t *testing.T) {
	s := NewStore()
	r := NewReconciler(s)

	tests := []struct {
		name  string
		typ   event.Type
		props string
	}{
		{"session without id", event.TypeSessionCreated, `{"info":{"title":"no id"}}`},
		{"session garbage", event.TypeSessionCreated, `"not an object"`},
		{"message without session", event.TypeMessageUpdated, `{"info":{"id":"m1"}}`},
		{"part without message", event.TypePartUpdated, `{"part":{"id":"p1"}}`},
		{"status without session", event.TypeSessionStatus, `{"status":"running"}`},
		{"todo without session", event.TypeTodoUpdated, `{"todos":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r.Apply(env(t, tt.typ, tt.props))
		})
	}

	if len(s.Sessions()) != 0 || len(s.Messages()) != 0 {
		t.Error("a malformed payload mutated state")
	}
}

func TestApply_NilEnvelope(t *testing.T) {
	r := NewReconciler(NewStore())
	// Normalize returns nil for malformed frames; Apply must tolerate
	// being handed that nil.
	if effect := r.Apply(nil); effect.RefreshPermissions {
		t.Error("nil envelope must be a no-op")
	}
}

func TestApply_PanickingHandlerIsDropped(t *testing.T) {
	// A reconciler over a nil store makes every state-mutating handler
	// dereference nil. The recover boundary must swallow the panic,
	// produce no effect, and keep applying subsequent events.
	r := NewReconciler(nil)

	effect := r.Apply(env(t, event.TypeSessionCreated, `{"info":{"id":"s1"}}`))
	if effect.RefreshPermissions {
		t.Error("a dropped event must not produce effects")
	}

	// The boundary is per event, not per reconciler: the next envelope
	// still goes through its handler.
	if effect := r.Apply(env(t, event.TypePermissionUpdated, `{}`)); !effect.RefreshPermissions {
		t.Error("reconciler stopped applying events after a dropped one")
	}
}

func TestApply_IdempotentEvents(t *testing.T) {
	s := NewStore()
	r := NewReconciler(s)
	s.SelectSession("s1")
	s.ReplaceMessages("s1", []engine.MessageRecord{{Info: engine.Message{ID: "m1", SessionID: "s1"}}})

	part := env(t, event.TypePartUpdated, `{"part":{"id":"p1","messageID":"m1","type":"text","text":"x"}}`)
	r.Apply(part)
	r.Apply(part)

	if got := len(s.Messages()[0].Parts); got != 1 {
		t.Errorf("parts = %d after duplicate event, want 1", got)
	}
}
