package mirror

import (
	"sync"
	"time"

	"github.com/xavierarpa/openwork/internal/engine"
)

// Topic identifies a derived view consumers can subscribe to. The store
// notifies the matching topic after each atomic collection swap.
type Topic string

const (
	TopicConnection  Topic = "connection"
	TopicSessions    Topic = "sessions"
	TopicStatus      Topic = "status"
	TopicMessages    Topic = "messages"
	TopicPlan        Topic = "plan"
	TopicPermissions Topic = "permissions"
	TopicError       Topic = "error"
)

// listenerBuffer is the capacity of each subscriber's notification
// channel. Notifications are coalescable (a topic tells you to re-read
// the snapshot, not what changed), so dropping one when the buffer is
// full loses nothing as long as a later one lands.
const listenerBuffer = 16

// listener is one registered subscriber.
type listener struct {
	topics map[Topic]bool // nil means all topics
	ch     chan Topic
}

// Store owns every mutable collection of the mirror. All writes happen
// through its methods and replace whole collection values; snapshots
// handed to readers are never mutated afterwards, so a snapshot taken
// before a write stays internally consistent.
type Store struct {
	mu sync.RWMutex

	connState ConnState
	target    string

	sessions   []engine.Session
	statuses   map[string]Status
	selectedID string

	messages []MessageView
	plan     []engine.PlanItem

	permissions []PermissionRequest

	lastErr error

	listeners  map[int]*listener
	nextListen int
}

// NewStore creates an empty, disconnected store.
func NewStore() *Store {
	return &Store{
		connState: StateDisconnected,
		statuses:  map[string]Status{},
		listeners: map[int]*listener{},
	}
}

// Subscribe registers interest in the given topics (all topics when none
// are given) and returns a notification channel plus a cancel function.
// Notifications may be coalesced; treat each one as "re-read the
// snapshot for this topic".
func (s *Store) Subscribe(topics ...Topic) (<-chan Topic, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := &listener{ch: make(chan Topic, listenerBuffer)}
	if len(topics) > 0 {
		l.topics = make(map[Topic]bool, len(topics))
		for _, t := range topics {
			l.topics[t] = true
		}
	}

	id := s.nextListen
	s.nextListen++
	s.listeners[id] = l

	cancel := func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
	return l.ch, cancel
}

// notify fans a topic out to interested listeners. Callers must not hold
// s.mu; sends never block (a full buffer drops the notification).
func (s *Store) notify(topics ...Topic) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.listeners {
		for _, t := range topics {
			if l.topics != nil && !l.topics[t] {
				continue
			}
			select {
			case l.ch <- t:
			default:
			}
		}
	}
}

// --- connection ---

// ConnState returns the current connection state and target.
func (s *Store) ConnState() (ConnState, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connState, s.target
}

// SetConnState records a connection lifecycle transition.
func (s *Store) SetConnState(state ConnState, target string) {
	s.mu.Lock()
	s.connState = state
	s.target = target
	s.mu.Unlock()
	s.notify(TopicConnection)
}

// --- error slot ---

// LastError returns the shared error slot, or nil.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SetError fills the shared error slot. One slot is enough: it reflects
// the most recent failed call or stream error, and never blocks retrying
// any other operation.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.notify(TopicError)
}

// ClearError empties the error slot after a successful operation.
func (s *Store) ClearError() {
	s.mu.Lock()
	cleared := s.lastErr != nil
	s.lastErr = nil
	s.mu.Unlock()
	if cleared {
		s.notify(TopicError)
	}
}

// --- session registry ---

// Sessions returns the current session snapshot in registry order.
func (s *Store) Sessions() []engine.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions
}

// ReplaceSessions installs a cold-loaded session list wholesale.
// Last cold load wins.
func (s *Store) ReplaceSessions(sessions []engine.Session) {
	next := make([]engine.Session, len(sessions))
	copy(next, sessions)

	s.mu.Lock()
	s.sessions = next
	s.mu.Unlock()
	s.notify(TopicSessions)
}

// UpsertSession replaces the session with the same id in place, or
// appends it when unseen. Position of an existing entry never changes.
func (s *Store) UpsertSession(sess engine.Session) {
	s.mu.Lock()
	next := upsert(s.sessions, sess, func(e engine.Session) string { return e.ID })
	s.sessions = next
	s.mu.Unlock()
	s.notify(TopicSessions)
}

// RemoveSession deletes exactly the session with the given id, keeping
// the relative order of the rest. The session's status entry goes with
// it, and if the session was in the foreground its message and plan
// caches are cleared so no stale state can bleed into a later selection.
func (s *Store) RemoveSession(id string) {
	s.mu.Lock()
	s.sessions = removeByID(s.sessions, id, func(e engine.Session) string { return e.ID })

	statuses := cloneStatuses(s.statuses)
	delete(statuses, id)
	s.statuses = statuses

	topics := []Topic{TopicSessions, TopicStatus}
	if s.selectedID == id {
		s.selectedID = ""
		s.messages = nil
		s.plan = nil
		topics = append(topics, TopicMessages, TopicPlan)
	}
	s.mu.Unlock()
	s.notify(topics...)
}

// --- status map ---

// Status returns the recorded status for a session, defaulting to idle
// when none is recorded.
func (s *Store) Status(sessionID string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.statuses[sessionID]; ok {
		return st
	}
	return StatusIdle
}

// SetStatus records a session's normalized status. Setting idle removes
// the entry: absence already means idle, and dropping the key keeps the
// map from accumulating entries for finished sessions.
func (s *Store) SetStatus(sessionID string, st Status) {
	s.mu.Lock()
	statuses := cloneStatuses(s.statuses)
	if st == StatusIdle {
		delete(statuses, sessionID)
	} else {
		statuses[sessionID] = st
	}
	s.statuses = statuses
	s.mu.Unlock()
	s.notify(TopicStatus)
}

// --- foreground selection, message assembly, plan ---

// SelectedSession returns the foreground session id, or "" when none.
func (s *Store) SelectedSession() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// SelectSession switches the foreground session and purges the message
// and plan caches in the same atomic step. This is the only point where
// stale cross-session state is guaranteed to be gone: the caches stay
// empty until the cold loads for the new session land.
func (s *Store) SelectSession(id string) {
	s.mu.Lock()
	s.selectedID = id
	s.messages = nil
	s.plan = nil
	s.mu.Unlock()
	s.notify(TopicMessages, TopicPlan)
}

// Messages returns the foreground session's message snapshot.
func (s *Store) Messages() []MessageView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages
}

// ReplaceMessages installs a cold-loaded history wholesale, but only if
// sessionID is still the foreground session. A load that raced with a
// later SelectSession call is discarded: the cold load for the newer
// selection wins.
func (s *Store) ReplaceMessages(sessionID string, records []engine.MessageRecord) {
	next := make([]MessageView, 0, len(records))
	for _, r := range records {
		parts := make([]engine.Part, len(r.Parts))
		copy(parts, r.Parts)
		next = append(next, MessageView{Info: r.Info, Parts: parts})
	}

	s.mu.Lock()
	if s.selectedID != sessionID {
		s.mu.Unlock()
		return
	}
	s.messages = next
	s.mu.Unlock()
	s.notify(TopicMessages)
}

// UpsertMessageInfo replaces a known message's info in place, or appends
// an unseen message at the end. The parts list of an existing message is
// untouched: parts arrive on their own events.
func (s *Store) UpsertMessageInfo(info engine.Message) {
	s.mu.Lock()
	if s.selectedID != info.SessionID {
		s.mu.Unlock()
		return
	}

	next := make([]MessageView, len(s.messages))
	copy(next, s.messages)
	found := false
	for i := range next {
		if next[i].Info.ID == info.ID {
			next[i] = MessageView{Info: info, Parts: next[i].Parts}
			found = true
			break
		}
	}
	if !found {
		next = append(next, MessageView{Info: info})
	}
	s.messages = next
	s.mu.Unlock()
	s.notify(TopicMessages)
}

// RemoveMessage deletes a message from the assembly, preserving the
// order of the rest. Unknown ids are a no-op.
func (s *Store) RemoveMessage(id string) {
	s.mu.Lock()
	next := make([]MessageView, 0, len(s.messages))
	changed := false
	for _, m := range s.messages {
		if m.Info.ID == id {
			changed = true
			continue
		}
		next = append(next, m)
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	s.messages = next
	s.mu.Unlock()
	s.notify(TopicMessages)
}

// UpsertPart inserts or replaces one part of an assembled message. A
// part whose owning message is not in the assembly is dropped silently:
// the server gives no cross-entity ordering guarantee, so a part can
// legitimately arrive before its message, and synthesizing an orphan
// message here would invent state the engine never confirmed.
//
// Returns true when the part was applied.
func (s *Store) UpsertPart(part engine.Part) bool {
	s.mu.Lock()

	idx := -1
	for i := range s.messages {
		if s.messages[i].Info.ID == part.MessageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	next := make([]MessageView, len(s.messages))
	copy(next, s.messages)

	msg := next[idx]
	parts := upsert(msg.Parts, part, func(p engine.Part) string { return p.ID })
	next[idx] = MessageView{Info: msg.Info, Parts: parts}

	s.messages = next
	s.mu.Unlock()
	s.notify(TopicMessages)
	return true
}

// Plan returns the foreground session's plan snapshot.
func (s *Store) Plan() []engine.PlanItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan
}

// ReplacePlan installs a plan wholesale for the foreground session.
// Plans are never patched per item. A plan for any other session id is
// dropped by the caller before reaching here; the sessionID guard also
// discards a cold load that raced with a later selection.
func (s *Store) ReplacePlan(sessionID string, items []engine.PlanItem) {
	next := make([]engine.PlanItem, len(items))
	copy(next, items)

	s.mu.Lock()
	if s.selectedID != sessionID {
		s.mu.Unlock()
		return
	}
	s.plan = next
	s.mu.Unlock()
	s.notify(TopicPlan)
}

// --- permission queue ---

// Permissions returns the pending permission snapshot in server order.
func (s *Store) Permissions() []PermissionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions
}

// MergePermissions reconciles a fresh pending-list pull against the
// queue. The engine is the sole source of truth for which requests are
// pending: entries absent from the pull are dropped, new ones get
// ReceivedAt stamped now, and ids seen before keep their original
// ReceivedAt so the shell can show a stable age. Server list order is
// kept as-is.
func (s *Store) MergePermissions(fresh []engine.PermissionRequest, now time.Time) {
	s.mu.Lock()
	known := make(map[string]time.Time, len(s.permissions))
	for _, p := range s.permissions {
		known[p.ID] = p.ReceivedAt
	}

	next := make([]PermissionRequest, 0, len(fresh))
	for _, req := range fresh {
		receivedAt := now
		if at, ok := known[req.ID]; ok {
			receivedAt = at
		}
		next = append(next, PermissionRequest{PermissionRequest: req, ReceivedAt: receivedAt})
	}
	s.permissions = next
	s.mu.Unlock()
	s.notify(TopicPermissions)
}

// ActivePermission picks the request a shell should surface first: the
// first queued request scoped to the foreground session, falling back to
// the first entry in server-given list order. The fallback is not
// re-sorted locally and is not necessarily the oldest by ReceivedAt.
func (s *Store) ActivePermission() (PermissionRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.permissions {
		if p.SessionID == s.selectedID && s.selectedID != "" {
			return p, true
		}
	}
	if len(s.permissions) > 0 {
		return s.permissions[0], true
	}
	return PermissionRequest{}, false
}

// --- reset ---

// Reset clears every collection as one atomic step. Used by disconnect:
// the mirror is never torn down piecemeal, so a reader can never observe
// a half-cleared mirror.
func (s *Store) Reset() {
	s.mu.Lock()
	s.sessions = nil
	s.statuses = map[string]Status{}
	s.selectedID = ""
	s.messages = nil
	s.plan = nil
	s.permissions = nil
	s.lastErr = nil
	s.mu.Unlock()
	s.notify(TopicSessions, TopicStatus, TopicMessages, TopicPlan, TopicPermissions, TopicError)
}

// --- helpers ---

// upsert replaces the entry with the same id in place, or appends the
// new entry. The returned slice is always freshly allocated so previous
// snapshots stay untouched. Linear scan is fine at the expected
// cardinalities (hundreds of entries, not millions).
func upsert[T any](list []T, next T, id func(T) string) []T {
	out := make([]T, len(list))
	copy(out, list)
	key := id(next)
	for i := range out {
		if id(out[i]) == key {
			out[i] = next
			return out
		}
	}
	return append(out, next)
}

// removeByID filters out the entry with the given id, preserving the
// relative order of the rest.
func removeByID[T any](list []T, key string, id func(T) string) []T {
	out := make([]T, 0, len(list))
	for _, e := range list {
		if id(e) == key {
			continue
		}
		out = append(out, e)
	}
	return out
}

func cloneStatuses(in map[string]Status) map[string]Status {
	out := make(map[string]Status, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
