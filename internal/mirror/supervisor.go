package mirror

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xavierarpa/openwork/internal/engine"
	apperrors "github.com/xavierarpa/openwork/internal/errors"
	"github.com/xavierarpa/openwork/internal/event"
)

// DefaultProbeTimeout bounds the initial health probe. The steady-state
// event stream has no timeout; it runs until explicitly cancelled.
const DefaultProbeTimeout = 12 * time.Second

// refreshTimeout bounds the permission re-polls the pump triggers on
// permission events. These run outside any user call, so they need
// their own bound.
const refreshTimeout = 10 * time.Second

// Client is the request/response surface of the collaborator engine.
// Implemented by engine.Client; an interface here so supervisor tests
// can run against a fake engine.
type Client interface {
	Health(ctx context.Context) (engine.Health, error)
	ListSessions(ctx context.Context) ([]engine.Session, error)
	CreateSession(ctx context.Context, title string) (engine.Session, error)
	Messages(ctx context.Context, sessionID string) ([]engine.MessageRecord, error)
	Plan(ctx context.Context, sessionID string) ([]engine.PlanItem, error)
	PendingPermissions(ctx context.Context) ([]engine.PermissionRequest, error)
	SendPrompt(ctx context.Context, sessionID, text string) error
	RespondPermission(ctx context.Context, requestID string, decision engine.Decision) error
	Subscribe(ctx context.Context) (engine.Subscription, error)
	Close() error
}

// ClientFactory builds a client for a connect target.
type ClientFactory func(target string) (Client, error)

// DecisionRecord is one permission reply as recorded to the local audit
// trail.
type DecisionRecord struct {
	RequestID  string
	SessionID  string
	Permission string
	Decision   engine.Decision
	Outcome    string // "ok" or the error message of a failed reply
	DecidedAt  time.Time
}

// DecisionAuditor persists permission decisions. Audit failures are
// logged, never surfaced: the audit trail is best-effort and must not
// interfere with the reply flow.
type DecisionAuditor interface {
	RecordDecision(rec DecisionRecord) error
}

// Supervisor owns the connection lifecycle and is the single writer path
// for pull-derived state. It runs at most one subscription at a time;
// starting a new connection tears down and awaits any prior one first.
type Supervisor struct {
	store   *Store
	factory ClientFactory

	// probeTimeout bounds Connect's health probe.
	probeTimeout time.Duration

	// limiter throttles prompt submissions so a misbehaving shell
	// cannot flood the engine.
	limiter *rate.Limiter

	// auditor records permission decisions; may be nil.
	auditor DecisionAuditor

	// mu serializes connection lifecycle transitions (Connect,
	// Disconnect). Steady-state operations do not take it.
	mu       sync.Mutex
	client   Client
	cancel   context.CancelFunc
	pumpDone chan struct{}
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithProbeTimeout overrides the health probe bound.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.probeTimeout = d }
}

// WithPromptLimit overrides the prompt rate limit.
func WithPromptLimit(limit rate.Limit, burst int) Option {
	return func(s *Supervisor) { s.limiter = rate.NewLimiter(limit, burst) }
}

// WithAuditor attaches a permission decision audit trail.
func WithAuditor(a DecisionAuditor) Option {
	return func(s *Supervisor) { s.auditor = a }
}

// NewSupervisor creates a supervisor over the given store, building
// engine clients with factory on each connect.
func NewSupervisor(store *Store, factory ClientFactory, opts ...Option) *Supervisor {
	s := &Supervisor{
		store:        store,
		factory:      factory,
		probeTimeout: DefaultProbeTimeout,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the store this supervisor writes to. Shells read
// snapshots from it and subscribe to its topics.
func (s *Supervisor) Store() *Store {
	return s.store
}

// Connect builds a client for target, probes it, and on success performs
// the cold loads and starts the event subscription. A probe failure is
// reported verbatim and leaves the supervisor Disconnected; it is never
// silently retried, so a local engine that is still starting up is not
// hammered.
func (s *Supervisor) Connect(ctx context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Overlapping subscriptions are never permitted: tear down and
	// await any prior connection before opening a new one.
	s.teardownLocked()

	s.store.SetConnState(StateConnecting, target)

	client, err := s.factory(target)
	if err != nil {
		s.store.SetConnState(StateDisconnected, "")
		s.store.SetError(err)
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	health, err := client.Health(probeCtx)
	cancel()
	if err != nil {
		client.Close()
		probeErr := apperrors.ProbeFailed(target, err)
		s.store.SetConnState(StateDisconnected, "")
		s.store.SetError(probeErr)
		return probeErr
	}
	log.Printf("mirror: engine %s reachable (version %s)", target, health.Version)

	// Cold loads. A failed load is a recoverable, individually-reported
	// issue: the push stream still covers future changes, so we connect
	// anyway and leave the failure in the error slot.
	if sessions, err := client.ListSessions(ctx); err != nil {
		log.Printf("mirror: session cold load failed: %v", err)
		s.store.SetError(err)
	} else {
		s.store.ReplaceSessions(sessions)
	}
	if pending, err := client.PendingPermissions(ctx); err != nil {
		log.Printf("mirror: permission cold load failed: %v", err)
		s.store.SetError(err)
	} else {
		s.store.MergePermissions(pending, time.Now())
	}

	pumpCtx, pumpCancel := context.WithCancel(context.Background())
	sub, err := client.Subscribe(pumpCtx)
	if err != nil {
		pumpCancel()
		client.Close()
		s.store.SetConnState(StateDisconnected, "")
		s.store.SetError(err)
		return err
	}

	s.client = client
	s.cancel = pumpCancel
	s.pumpDone = make(chan struct{})
	go s.pump(pumpCtx, client, sub, s.pumpDone)

	s.store.SetConnState(StateConnected, target)
	return nil
}

// Disconnect cancels the active subscription, awaits its teardown, and
// resets the whole mirror in one atomic step. Calling it while already
// disconnected is a no-op success.
func (s *Supervisor) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	had := s.client != nil
	s.teardownLocked()
	if had {
		s.store.Reset()
	}
	s.store.SetConnState(StateDisconnected, "")
	return nil
}

// teardownLocked cancels and awaits the pump, then closes the client.
// The await matters: a mode switch must never proceed while a stale
// subscription could still apply a late frame. Caller holds s.mu.
func (s *Supervisor) teardownLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.pumpDone != nil {
		<-s.pumpDone
		s.pumpDone = nil
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

// pump is the single logical consumer of the event stream. Frames are
// processed strictly in delivery order; cancellation is checked at each
// iteration boundary so no frame arriving after the cancel signal can
// mutate state.
// The pump holds its own client reference instead of going through
// currentClient: taking s.mu here would deadlock against a Disconnect
// that holds the lock while awaiting pump teardown.
func (s *Supervisor) pump(ctx context.Context, client Client, sub engine.Subscription, done chan struct{}) {
	defer close(done)
	defer sub.Close()

	rec := NewReconciler(s.store)

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-sub.Frames():
			if !ok {
				s.streamEnded(ctx, sub.Err())
				return
			}
			// Both select cases can be ready at once; re-check so a
			// frame racing the cancel signal is never applied.
			if ctx.Err() != nil {
				return
			}

			env := event.Normalize(frame)
			if env == nil {
				continue
			}
			effect := rec.Apply(env)
			if effect.RefreshPermissions {
				s.refreshPermissionsBounded(client)
			}
		}
	}
}

// streamEnded handles the subscription closing underneath the pump. A
// cancellation-driven close is normal shutdown and never surfaced; a
// genuine transport failure fills the error slot and drops the
// supervisor to Disconnected, leaving the last mirror snapshot frozen
// until the user reconnects or disconnects explicitly.
func (s *Supervisor) streamEnded(ctx context.Context, cause error) {
	if ctx.Err() != nil || cause == nil {
		return
	}
	log.Printf("mirror: event stream failed: %v", cause)
	s.store.SetError(apperrors.Wrap(apperrors.CodeStreamClosed, "event stream ended unexpectedly", cause))
	s.store.SetConnState(StateDisconnected, "")
}

// refreshPermissionsBounded re-polls the pending list in response to a
// permission event. A failed background refresh never interrupts the
// stream; the next permission event or user-triggered refresh heals it.
func (s *Supervisor) refreshPermissionsBounded(client Client) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := s.refreshWith(ctx, client); err != nil {
		log.Printf("mirror: permission refresh failed: %v", err)
	}
}

// currentClient returns the connected client or a not-connected error.
func (s *Supervisor) currentClient(operation string) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, apperrors.NotConnected(operation)
	}
	return s.client, nil
}

// SelectSession makes id the foreground session: the message and plan
// caches are purged atomically, then replaced by fresh cold loads, and
// the permission queue is refreshed since a newly opened session's
// pending requests are not otherwise known. No incremental patching is
// attempted across a switch.
func (s *Supervisor) SelectSession(ctx context.Context, id string) error {
	client, err := s.currentClient("select session")
	if err != nil {
		s.store.SetError(err)
		return err
	}

	s.store.SelectSession(id)

	history, err := client.Messages(ctx, id)
	if err != nil {
		wrapped := apperrors.Wrap(apperrors.CodeEngineHistoryFailed, "load message history", err)
		s.store.SetError(wrapped)
		return wrapped
	}
	s.store.ReplaceMessages(id, history)

	plan, err := client.Plan(ctx, id)
	if err != nil {
		wrapped := apperrors.Wrap(apperrors.CodeEnginePlanFailed, "load plan", err)
		s.store.SetError(wrapped)
		return wrapped
	}
	s.store.ReplacePlan(id, plan)

	if err := s.RefreshPermissions(ctx); err != nil {
		return err
	}

	s.store.ClearError()
	return nil
}

// LoadSessions re-pulls the full session list, replacing the registry
// wholesale. Used on connect and after any operation whose effects the
// push stream does not cover.
func (s *Supervisor) LoadSessions(ctx context.Context) error {
	client, err := s.currentClient("load sessions")
	if err != nil {
		s.store.SetError(err)
		return err
	}

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		s.store.SetError(err)
		return err
	}
	s.store.ReplaceSessions(sessions)
	s.store.ClearError()
	return nil
}

// CreateSession creates a session on the engine, then re-pulls the
// session list: creation effects are not guaranteed to arrive on the
// push stream before the caller wants to use the session.
func (s *Supervisor) CreateSession(ctx context.Context, title string) (engine.Session, error) {
	client, err := s.currentClient("create session")
	if err != nil {
		s.store.SetError(err)
		return engine.Session{}, err
	}

	sess, err := client.CreateSession(ctx, title)
	if err != nil {
		wrapped := apperrors.Wrap(apperrors.CodeEngineCreateFailed, "create session", err)
		s.store.SetError(wrapped)
		return engine.Session{}, wrapped
	}

	if err := s.LoadSessions(ctx); err != nil {
		return sess, err
	}
	return sess, nil
}

// SendPrompt submits a prompt to a session, then re-pulls that session's
// history when it is in the foreground: the prompt's own user message
// surfaces via the pull, not the push stream.
func (s *Supervisor) SendPrompt(ctx context.Context, sessionID, text string) error {
	if !s.limiter.Allow() {
		err := apperrors.New(apperrors.CodeSyncRateLimited, "prompt rate limit exceeded, slow down")
		s.store.SetError(err)
		return err
	}

	client, err := s.currentClient("send prompt")
	if err != nil {
		s.store.SetError(err)
		return err
	}

	if err := client.SendPrompt(ctx, sessionID, text); err != nil {
		wrapped := apperrors.Wrap(apperrors.CodeEnginePromptFailed, "send prompt", err)
		s.store.SetError(wrapped)
		return wrapped
	}

	if s.store.SelectedSession() == sessionID {
		history, err := client.Messages(ctx, sessionID)
		if err != nil {
			wrapped := apperrors.Wrap(apperrors.CodeEngineHistoryFailed, "reload history after prompt", err)
			s.store.SetError(wrapped)
			return wrapped
		}
		s.store.ReplaceMessages(sessionID, history)
	}

	s.store.ClearError()
	return nil
}

// RespondPermission replies to a pending request with one of once,
// always or reject. The queue is never speculatively mutated: on a
// failed reply it is left exactly as it was, and in every case a refresh
// afterwards re-pulls the authoritative pending list so the queue
// self-heals.
func (s *Supervisor) RespondPermission(ctx context.Context, requestID string, decision engine.Decision) error {
	if !decision.Valid() {
		err := apperrors.BadDecision(string(decision))
		s.store.SetError(err)
		return err
	}

	client, err := s.currentClient("respond to permission")
	if err != nil {
		s.store.SetError(err)
		return err
	}

	replyErr := client.RespondPermission(ctx, requestID, decision)

	s.recordDecision(requestID, decision, replyErr)

	// Refresh unconditionally, regardless of the reply outcome.
	if err := s.RefreshPermissions(ctx); err != nil && replyErr == nil {
		return err
	}

	if replyErr != nil {
		wrapped := apperrors.Wrap(apperrors.CodePermissionReplyFailed, "permission reply", replyErr)
		s.store.SetError(wrapped)
		return wrapped
	}
	s.store.ClearError()
	return nil
}

// recordDecision writes the decision to the audit trail, best-effort.
func (s *Supervisor) recordDecision(requestID string, decision engine.Decision, replyErr error) {
	if s.auditor == nil {
		return
	}

	rec := DecisionRecord{
		RequestID: requestID,
		Decision:  decision,
		Outcome:   "ok",
		DecidedAt: time.Now(),
	}
	if replyErr != nil {
		rec.Outcome = replyErr.Error()
	}
	for _, p := range s.store.Permissions() {
		if p.ID == requestID {
			rec.SessionID = p.SessionID
			rec.Permission = p.Permission
			break
		}
	}

	if err := s.auditor.RecordDecision(rec); err != nil {
		log.Printf("mirror: audit write failed: %v", err)
	}
}

// RefreshPermissions pulls the current pending list and merges it into
// the queue, preserving ReceivedAt for known ids. On failure the queue
// is left untouched.
func (s *Supervisor) RefreshPermissions(ctx context.Context) error {
	client, err := s.currentClient("refresh permissions")
	if err != nil {
		s.store.SetError(err)
		return err
	}

	return s.refreshWith(ctx, client)
}

// refreshWith performs the pull-and-merge against a specific client. On
// failure the queue is left untouched.
func (s *Supervisor) refreshWith(ctx context.Context, client Client) error {
	pending, err := client.PendingPermissions(ctx)
	if err != nil {
		wrapped := apperrors.Wrap(apperrors.CodePermissionRefreshFailed, "refresh pending permissions", err)
		s.store.SetError(wrapped)
		return wrapped
	}
	s.store.MergePermissions(pending, time.Now())
	s.store.ClearError()
	return nil
}
