package mirror

import (
	"log"

	"github.com/xavierarpa/openwork/internal/event"
)

// Effect is what a single reconciled event asks the supervisor to do
// beyond the state mutation itself. Permission events are the one case:
// their payload is just a change signal, the authoritative pending list
// comes from a re-poll.
type Effect struct {
	// RefreshPermissions asks for a pending-permission re-poll.
	RefreshPermissions bool
}

// Reconciler applies normalized events to the store. It is a dispatch
// table keyed by event type: unknown types are no-ops, and each handler
// is an idempotent replace-or-insert or remove over the one collection
// it owns.
type Reconciler struct {
	store *Store
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store *Store) *Reconciler {
	return &Reconciler{store: store}
}

// Apply reconciles one event. It is total over (state, event): a
// malformed payload, an unknown type, or even a panicking handler all
// degrade to a no-op so one bad event can never halt the stream.
func (r *Reconciler) Apply(env *event.Envelope) (effect Effect) {
	if env == nil {
		return Effect{}
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("mirror: dropped event %s after handler panic: %v", env.Type, rec)
			effect = Effect{}
		}
	}()

	switch env.Type {
	case event.TypeSessionCreated, event.TypeSessionUpdated:
		// Same handler for both: the engine replaces whole objects on
		// update, so created vs. updated only differs in whether the id
		// was seen before, which upsert already covers.
		if p, ok := event.DecodeSession(env.Properties); ok {
			r.store.UpsertSession(p.Info)
		}

	case event.TypeSessionDeleted:
		if p, ok := event.DecodeSessionDeleted(env.Properties); ok {
			r.store.RemoveSession(p.Info.ID)
		}

	case event.TypeSessionStatus:
		if p, ok := event.DecodeStatus(env.Properties); ok {
			r.store.SetStatus(p.SessionID, NormalizeStatus(p.Status))
		}

	case event.TypeMessageUpdated:
		// Only the foreground session's messages are mirrored; the store
		// drops updates for any other session.
		if p, ok := event.DecodeMessage(env.Properties); ok {
			r.store.UpsertMessageInfo(p.Info)
		}

	case event.TypeMessageRemoved:
		if p, ok := event.DecodeMessageRemoved(env.Properties); ok {
			r.store.RemoveMessage(p.MessageID)
		}

	case event.TypePartUpdated:
		// A part for a message the assembly has not materialized is
		// dropped, never synthesized into an orphan message.
		if p, ok := event.DecodePart(env.Properties); ok {
			r.store.UpsertPart(p.Part)
		}

	case event.TypeTodoUpdated:
		// The plan is tracked only for the foreground session.
		if p, ok := event.DecodeTodo(env.Properties); ok {
			if p.SessionID == r.store.SelectedSession() {
				r.store.ReplacePlan(p.SessionID, p.Todos)
			}
		}

	case event.TypePermissionUpdated:
		// The payload only signals "something changed"; the supervisor
		// re-polls the authoritative pending list.
		return Effect{RefreshPermissions: true}

	default:
		// Unknown event types are a no-op, not an error.
	}

	return Effect{}
}
