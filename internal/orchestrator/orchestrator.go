package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evttree/eventstore/internal/event"
	"github.com/evttree/eventstore/internal/eventstore"
	"github.com/evttree/eventstore/internal/logging"
	"github.com/evttree/eventstore/internal/sessioncontext"
)

// Orchestrator is the Orchestrator (component D): it holds the
// active-session map, instantiates/tears down Session Contexts, and
// dispatches committed events to the broadcast bus.
type Orchestrator struct {
	store *eventstore.Store
	bus   *event.Bus

	mu     sync.RWMutex
	active map[string]*ActiveSession
}

// New wires an Orchestrator on top of an already-open Event Store and
// broadcast bus.
func New(store *eventstore.Store, bus *event.Bus) *Orchestrator {
	return &Orchestrator{
		store:  store,
		bus:    bus,
		active: make(map[string]*ActiveSession),
	}
}

// CreateSession instantiates a Session Context, creates the session in
// the Event Store, and installs it in the active map.
func (o *Orchestrator) CreateSession(ctx context.Context, opts CreateOptions) (*SessionInfo, error) {
	sess, root, err := o.store.CreateSession(ctx, opts.WorkspacePath, opts.WorkingDirectory, opts.Model, opts.Title, opts.Tags)
	if err != nil {
		return nil, err
	}

	o.install(sess.ID, sess.HeadEventID)

	logging.Component("orchestrator").Info().Str("session_id", sess.ID).Str("workspace", opts.WorkspacePath).Msg("session created")
	return &SessionInfo{Session: sess, Root: root}, nil
}

// ResumeSession loads a session from the Event Store and installs a
// fresh Session Context with the pending head initialized to the
// stored head. Resolves Open Question (i): resuming an ended session
// returns SessionEnded rather than silently permitting it.
func (o *Orchestrator) ResumeSession(ctx context.Context, sessionID string) (*eventstore.Session, error) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, &eventstore.SessionNotFoundError{SessionID: sessionID}
	}
	if sess.Ended {
		return nil, &eventstore.SessionEndedError{SessionID: sessionID}
	}

	o.mu.Lock()
	if existing, ok := o.active[sessionID]; ok {
		o.mu.Unlock()
		existing.LastActivity = time.Now()
		return sess, nil
	}
	o.mu.Unlock()

	o.install(sessionID, sess.HeadEventID)
	return sess, nil
}

func (o *Orchestrator) install(sessionID, headEventID string) {
	cc := sessioncontext.New(sessionID, headEventID, o.store, o.bus)
	now := time.Now()

	o.mu.Lock()
	o.active[sessionID] = &ActiveSession{
		SessionID: sessionID, Context: cc, StartedAt: now, LastActivity: now,
	}
	o.mu.Unlock()
}

// EndSession flushes pending events, ends the session in the Event
// Store, and removes it from the active map. mergeTo/commitMessage are
// accepted for an external worktree collaborator to act on; the core
// itself does nothing with them (worktree management is out of scope).
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string, opts EndOptions) error {
	o.mu.Lock()
	as, ok := o.active[sessionID]
	if ok {
		delete(o.active, sessionID)
	}
	o.mu.Unlock()

	if ok {
		if err := as.Context.Flush(ctx); err != nil {
			return err
		}
		as.Context.Close()
	}

	if err := o.store.EndSession(ctx, sessionID); err != nil {
		return err
	}

	logging.Component("orchestrator").Info().Str("session_id", sessionID).Str("reason", opts.Reason).Msg("session ended")
	return nil
}

// ForkSession creates a new session branching off fromEventID (the
// current head if empty). The new session is not automatically
// activated; a subsequent ResumeSession installs its Session Context.
func (o *Orchestrator) ForkSession(ctx context.Context, sessionID, fromEventID string, name *string) (*SessionInfo, error) {
	if fromEventID == "" {
		if as := o.activeSession(sessionID); as != nil {
			if err := as.Context.Flush(ctx); err != nil {
				return nil, err
			}
		}
		sess, err := o.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		fromEventID = sess.HeadEventID
	}

	newSess, root, err := o.store.Fork(ctx, fromEventID, name)
	if err != nil {
		return nil, err
	}
	return &SessionInfo{Session: newSess, Root: root}, nil
}

// AppendEvent appends one event, routing through the session's active
// Session Context when one exists, or directly through the Event Store
// otherwise. The committed event is broadcast on event_new either way.
func (o *Orchestrator) AppendEvent(ctx context.Context, opts AppendOptions) (*eventstore.Event, error) {
	if as := o.activeSession(opts.SessionID); as != nil {
		as.LastActivity = time.Now()
		return as.Context.Append(ctx, opts.Kind, opts.Payload)
	}

	evt, err := o.store.Append(ctx, eventstore.AppendInput{
		SessionID: opts.SessionID, Kind: opts.Kind, Payload: opts.Payload,
	})
	if err != nil {
		o.bus.Publish(event.Notification{
			Topic: event.ErrorPersistence,
			Data:  event.ErrorPersistenceData{SessionID: opts.SessionID, Error: err.Error()},
		})
		return nil, err
	}

	o.bus.Publish(event.Notification{
		Topic: event.EventNew,
		Data:  event.EventNewData{SessionID: opts.SessionID, EventID: evt.ID, Kind: opts.Kind},
	})
	return evt, nil
}

// GetSessionState reads the folded state at the session's current
// head, flushing any pending events first so the read sees them.
func (o *Orchestrator) GetSessionState(ctx context.Context, sessionID string) (*eventstore.SessionState, error) {
	if err := o.flushIfActive(ctx, sessionID); err != nil {
		return nil, err
	}
	return o.store.GetStateAtHead(ctx, sessionID)
}

// GetSessionMessages reads the message list at the session's current
// head, flushing any pending events first.
func (o *Orchestrator) GetSessionMessages(ctx context.Context, sessionID string) ([]eventstore.Message, error) {
	if err := o.flushIfActive(ctx, sessionID); err != nil {
		return nil, err
	}
	return o.store.GetMessagesAtHead(ctx, sessionID)
}

// GetSessionEvents lists a session's immediate children from its root,
// flushing any pending events first. Callers needing the full event
// tree should walk GetChildren recursively from the root event id.
func (o *Orchestrator) GetSessionEvents(ctx context.Context, sessionID string) ([]*eventstore.Event, error) {
	if err := o.flushIfActive(ctx, sessionID); err != nil {
		return nil, err
	}
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return o.store.GetChildren(ctx, sess.RootEventID)
}

// GetAncestors returns the root-to-eventID ancestor chain, crossing
// fork boundaries, flushing the owning session's pending events first.
func (o *Orchestrator) GetAncestors(ctx context.Context, sessionID, eventID string) ([]*eventstore.Event, error) {
	if err := o.flushIfActive(ctx, sessionID); err != nil {
		return nil, err
	}
	return o.store.GetAncestors(ctx, eventID)
}

// SetSessionTitle persists a title directly. Title *generation* (an LLM
// call) is out of core scope; this is the hook point an external agent
// runner calls once it has produced one, grounded on the teacher's
// ensureTitle/isDefaultTitle pattern of only overwriting a still-default
// title.
func (o *Orchestrator) SetSessionTitle(ctx context.Context, sessionID, title string) error {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Title != nil && !isDefaultTitle(*sess.Title) {
		return nil
	}
	return o.store.SetTitle(ctx, sessionID, title)
}

func isDefaultTitle(title string) bool {
	return title == "" || title == defaultTitle
}

const defaultTitle = "New Session"

func (o *Orchestrator) activeSession(sessionID string) *ActiveSession {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active[sessionID]
}

func (o *Orchestrator) flushIfActive(ctx context.Context, sessionID string) error {
	if as := o.activeSession(sessionID); as != nil {
		return as.Context.Flush(ctx)
	}
	return nil
}

// Interrupt triggers the interruption pathway for an active session:
// the abort signal itself belongs to the external agent runner, but
// once it unwinds, the orchestrator composes accumulated partial
// content through the Session Context.
func (o *Orchestrator) Interrupt(ctx context.Context, sessionID, model string) error {
	as := o.activeSession(sessionID)
	if as == nil {
		return fmt.Errorf("orchestrator: session %s is not active", sessionID)
	}
	return as.Context.Interrupt(ctx, model, o.store, sessionID)
}

// ActiveSessionIDs returns the ids of every currently active session,
// for the idle sweep and for diagnostics.
func (o *Orchestrator) ActiveSessionIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

// IdleSince reports how long sessionID has gone since it was installed
// or last touched by AppendEvent or ResumeSession, and whether it is
// currently active at all.
func (o *Orchestrator) IdleSince(sessionID string) (time.Duration, bool) {
	as := o.activeSession(sessionID)
	if as == nil {
		return 0, false
	}
	return time.Since(as.LastActivity), true
}
