package orchestrator

import (
	"time"

	"github.com/evttree/eventstore/internal/eventkind"
	"github.com/evttree/eventstore/internal/eventstore"
	"github.com/evttree/eventstore/internal/sessioncontext"
)

// CreateOptions configures createSession.
type CreateOptions struct {
	WorkspacePath    string
	WorkingDirectory string
	Model            string
	Title            *string
	Tags             []string
}

// EndOptions configures endSession. MergeTo/CommitMessage describe how
// an external worktree collaborator should reconcile the session's
// isolated working directory; the orchestrator only threads them
// through, since worktree management is out of core scope.
type EndOptions struct {
	Reason        string
	Summary       *string
	MergeTo       *string
	CommitMessage *string
}

// ActiveSession tracks one live Session Context plus the bookkeeping
// the idle sweep needs.
type ActiveSession struct {
	SessionID    string
	Context      *sessioncontext.Context
	StartedAt    time.Time
	LastActivity time.Time
}

// AppendOptions describes one appendEvent call.
type AppendOptions struct {
	SessionID string
	Kind      eventkind.Kind
	Payload   []byte
}

// SessionInfo is what createSession/forkSession return: the stored
// session header plus its root event.
type SessionInfo struct {
	Session *eventstore.Session
	Root    *eventstore.Event
}
