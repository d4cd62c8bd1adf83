package eventstore

import (
	"encoding/json"
	"time"

	"github.com/evttree/eventstore/internal/eventkind"
)

// Workspace is a canonicalized filesystem path sessions are grouped
// under.
type Workspace struct {
	ID        string
	Path      string
	CreatedAt time.Time
}

// Session is the mutable header of one conversation branch.
type Session struct {
	ID                   string
	WorkspaceID          string
	RootEventID          string
	HeadEventID          string
	LatestModel          string
	LatestReasoningLevel string
	Ended                bool
	EventCount           int
	MessageCount         int
	Title                *string
	Tags                 []string
	ForkedFromSessionID  *string
	ForkedFromEventID    *string
	WasInterrupted       bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Event is one immutable row in the append-only log.
type Event struct {
	ID        string
	SessionID string
	ParentID  *string
	Sequence  int
	Kind      eventkind.Kind
	Payload   json.RawMessage
	Timestamp time.Time
	Tombstone bool
}

// AppendInput describes a new event to record.
type AppendInput struct {
	SessionID string
	Kind      eventkind.Kind
	Payload   json.RawMessage
	// ParentID, if nil, defaults to the session's current head.
	ParentID *string
}

// ListFilter narrows listSessions.
type ListFilter struct {
	WorkspaceID string
	IncludeEnded bool
}

// SearchOptions narrows search.
type SearchOptions struct {
	WorkspaceID string
	SessionID   string
	Kinds       []eventkind.Kind
	Limit       int
}

// SearchResult is one full-text match.
type SearchResult struct {
	EventID   string
	SessionID string
	Kind      eventkind.Kind
	Timestamp time.Time
	Snippet   string
	Score     float64
}

// Message is a reconstructed, LLM-shaped conversation turn.
type Message struct {
	EventID   string
	Role      string // "user" | "assistant"
	Blocks    []eventkind.Block
	TokenUsage *eventkind.TokenUsage
}

// SessionState is the folded result of getStateAt/getStateAtHead.
type SessionState struct {
	Model            string
	WorkingDirectory string
	ReasoningLevel   string
	Messages         []Message
	PlanMode         bool
	BlockedTools     []string
	Skills           []string
	Todos            []eventkind.TodoItem
}
