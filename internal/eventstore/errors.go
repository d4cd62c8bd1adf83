package eventstore

import "fmt"

// SessionNotFoundError is returned when a session id has no matching row.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("eventstore: session %q not found", e.SessionID)
}

// SessionEndedError is returned when append (or resume) targets an ended
// session.
type SessionEndedError struct {
	SessionID string
}

func (e *SessionEndedError) Error() string {
	return fmt.Sprintf("eventstore: session %q has ended", e.SessionID)
}

// ParentNotFoundError is returned when an explicit parentId does not
// exist or does not belong to the target session.
type ParentNotFoundError struct {
	SessionID string
	ParentID  string
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("eventstore: parent %q not found in session %q", e.ParentID, e.SessionID)
}

// WorkspaceMissingError is returned by GetWorkspaceByPath when the
// canonicalized path has no matching row.
type WorkspaceMissingError struct {
	Path string
}

func (e *WorkspaceMissingError) Error() string {
	return fmt.Sprintf("eventstore: workspace %q not found", e.Path)
}

// EventNotFoundError is returned by GetEvent, GetAncestors and Fork
// when the starting event id does not exist. GetChildren returns an
// empty list for an unknown id instead.
type EventNotFoundError struct {
	EventID string
}

func (e *EventNotFoundError) Error() string {
	return fmt.Sprintf("eventstore: event %q not found", e.EventID)
}
