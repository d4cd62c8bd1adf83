// Package eventstore implements the Event Store: append, fetch,
// ancestors/children navigation, head tracking, forking, deletion
// tombstones, state reconstruction, and full-text search, all built on
// top of the Persistent Store (internal/store).
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evttree/eventstore/internal/eventkind"
	"github.com/evttree/eventstore/internal/logging"
	"github.com/evttree/eventstore/internal/store"
	"github.com/evttree/eventstore/internal/workspace"
)

// Store is the Event Store. It holds no in-memory session state of its
// own; linearization across concurrent appends to one session is the
// Session Context's job (internal/sessioncontext), not this package's.
type Store struct {
	db *store.DB
}

// New wraps an already-open Persistent Store handle.
func New(db *store.DB) *Store {
	return &Store{db: db}
}

// CreateSession upserts the workspace by canonical path, then inserts a
// new session plus its session.start root event in one transaction.
func (s *Store) CreateSession(ctx context.Context, workspacePath, workingDirectory, model string, title *string, tags []string) (*Session, *Event, error) {
	info, err := workspace.Canonicalize(workspacePath)
	if err != nil {
		return nil, nil, fmt.Errorf("eventstore: canonicalize workspace: %w", err)
	}

	var session *Session
	var rootEvent *Event

	err = s.withTx(ctx, "createSession", func(tx *sql.Tx) error {
		wsID, err := s.upsertWorkspace(ctx, tx, info.Path)
		if err != nil {
			return err
		}

		now := s.db.Now()
		sessID := newSessionID()
		rootID := newEventID()

		payload, err := eventkind.Encode(eventkind.SessionStartPayload{
			WorkingDirectory: workingDirectory,
			Model:            model,
			Title:            title,
		})
		if err != nil {
			return err
		}

		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, workspace_id, root_event_id, head_event_id,
				latest_model, event_count, message_count, title, tags,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, 0, ?, ?, ?, ?)`,
			sessID, wsID, rootID, rootID, model, nullableString(title), string(tagsJSON),
			now.UnixNano(), now.UnixNano()); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, session_id, parent_id, sequence, kind, payload, timestamp, tombstone)
			VALUES (?, ?, NULL, 0, ?, ?, ?, 0)`,
			rootID, sessID, string(eventkind.SessionStart), []byte(payload), now.UnixNano()); err != nil {
			return err
		}

		session = &Session{
			ID: sessID, WorkspaceID: wsID, RootEventID: rootID, HeadEventID: rootID,
			LatestModel: model, EventCount: 1, MessageCount: 0, Title: title, Tags: tags,
			CreatedAt: now, UpdatedAt: now,
		}
		rootEvent = &Event{
			ID: rootID, SessionID: sessID, Sequence: 0, Kind: eventkind.SessionStart,
			Payload: payload, Timestamp: now,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logging.Component("eventstore").Debug().Str("session_id", session.ID).Str("workspace", info.Path).Msg("session created")
	return session, rootEvent, nil
}

func (s *Store) upsertWorkspace(ctx context.Context, tx *sql.Tx, path string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM workspaces WHERE path = ?`, path).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}
	id = newWorkspaceID()
	_, err = tx.ExecContext(ctx, `INSERT INTO workspaces (id, path, created_at) VALUES (?, ?, ?)`,
		id, path, s.db.Now().UnixNano())
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetWorkspaceByPath canonicalizes path and looks up its workspace row.
func (s *Store) GetWorkspaceByPath(ctx context.Context, path string) (*Workspace, error) {
	info, err := workspace.Canonicalize(path)
	if err != nil {
		return nil, err
	}
	row := s.db.Conn().QueryRowContext(ctx, `SELECT id, path, created_at FROM workspaces WHERE path = ?`, info.Path)
	var ws Workspace
	var createdAt int64
	if err := row.Scan(&ws.ID, &ws.Path, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &WorkspaceMissingError{Path: info.Path}
		}
		return nil, err
	}
	ws.CreatedAt = time.Unix(0, createdAt).UTC()
	return &ws, nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	return s.getSession(ctx, s.db.Conn(), id)
}

func (s *Store) getSession(ctx context.Context, q querier, id string) (*Session, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, workspace_id, root_event_id, head_event_id, latest_model,
			latest_reasoning_level, ended, event_count, message_count, title, tags,
			forked_from_session_id, forked_from_event_id, was_interrupted,
			created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	var reasoningLevel, title, tagsJSON, forkedSession, forkedEvent sql.NullString
	var ended, wasInterrupted int
	var createdAt, updatedAt int64

	err := row.Scan(&sess.ID, &sess.WorkspaceID, &sess.RootEventID, &sess.HeadEventID,
		&sess.LatestModel, &reasoningLevel, &ended, &sess.EventCount, &sess.MessageCount,
		&title, &tagsJSON, &forkedSession, &forkedEvent, &wasInterrupted, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	sess.LatestReasoningLevel = reasoningLevel.String
	sess.Ended = ended != 0
	sess.WasInterrupted = wasInterrupted != 0
	sess.CreatedAt = time.Unix(0, createdAt).UTC()
	sess.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if title.Valid {
		sess.Title = &title.String
	}
	if forkedSession.Valid {
		sess.ForkedFromSessionID = &forkedSession.String
	}
	if forkedEvent.Valid {
		sess.ForkedFromEventID = &forkedEvent.String
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON.String), &tags); err == nil {
			sess.Tags = tags
		}
	}
	return &sess, nil
}

// ListSessions returns sessions matching filter, most recently created first.
func (s *Store) ListSessions(ctx context.Context, filter ListFilter) ([]*Session, error) {
	query := `
		SELECT id, workspace_id, root_event_id, head_event_id, latest_model,
			latest_reasoning_level, ended, event_count, message_count, title, tags,
			forked_from_session_id, forked_from_event_id, was_interrupted,
			created_at, updated_at
		FROM sessions WHERE 1=1`
	var args []any
	if filter.WorkspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, filter.WorkspaceID)
	}
	if !filter.IncludeEnded {
		query += ` AND ended = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var reasoningLevel, title, tagsJSON, forkedSession, forkedEvent sql.NullString
		var ended, wasInterrupted int
		var createdAt, updatedAt int64
		if err := rows.Scan(&sess.ID, &sess.WorkspaceID, &sess.RootEventID, &sess.HeadEventID,
			&sess.LatestModel, &reasoningLevel, &ended, &sess.EventCount, &sess.MessageCount,
			&title, &tagsJSON, &forkedSession, &forkedEvent, &wasInterrupted, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		sess.LatestReasoningLevel = reasoningLevel.String
		sess.Ended = ended != 0
		sess.WasInterrupted = wasInterrupted != 0
		sess.CreatedAt = time.Unix(0, createdAt).UTC()
		sess.UpdatedAt = time.Unix(0, updatedAt).UTC()
		if title.Valid {
			sess.Title = &title.String
		}
		if forkedSession.Valid {
			sess.ForkedFromSessionID = &forkedSession.String
		}
		if forkedEvent.Valid {
			sess.ForkedFromEventID = &forkedEvent.String
		}
		if tagsJSON.Valid && tagsJSON.String != "" {
			var tags []string
			if err := json.Unmarshal([]byte(tagsJSON.String), &tags); err == nil {
				sess.Tags = tags
			}
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// EndSession sets the ended flag. Re-calling on an already-ended session
// is a no-op.
func (s *Store) EndSession(ctx context.Context, id string) error {
	_, err := s.db.Conn().ExecContext(ctx, `UPDATE sessions SET ended = 1, updated_at = ? WHERE id = ?`,
		s.db.Now().UnixNano(), id)
	return err
}

// SetTitle updates a session's title.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	_, err := s.db.Conn().ExecContext(ctx, `UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, s.db.Now().UnixNano(), id)
	return err
}

// SetWasInterrupted persists the session's interruption flag alongside
// the notification.interrupted event the Session Context appends.
func (s *Store) SetWasInterrupted(ctx context.Context, id string) error {
	_, err := s.db.Conn().ExecContext(ctx, `UPDATE sessions SET was_interrupted = 1, updated_at = ? WHERE id = ?`,
		s.db.Now().UnixNano(), id)
	return err
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// withTx runs fn inside a transaction, retrying the whole
// begin/fn/commit attempt through store.WithRetry when sqlite reports
// transient contention (SQLITE_BUSY/SQLITE_LOCKED) — the idle sweep
// ending a session can race an active session's own append chain
// against the same file. Domain errors (SessionNotFound, SessionEnded,
// ParentNotFound, WorkspaceMissing, EventNotFound) short-circuit the
// retry and pass through unwrapped so callers can type-switch on them
// directly; anything else is a genuine storage failure and comes back
// wrapped as a PersistenceError by WithRetry itself.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	var domainErr error
	err := store.WithRetry(ctx, op, func() error {
		domainErr = nil
		tx, err := s.db.Conn().BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			if isDomainError(err) {
				domainErr = err
				return nil
			}
			return err
		}
		return tx.Commit()
	})
	if domainErr != nil {
		return domainErr
	}
	return err
}

func isDomainError(err error) bool {
	switch err.(type) {
	case *SessionNotFoundError, *SessionEndedError, *ParentNotFoundError,
		*WorkspaceMissingError, *EventNotFoundError:
		return true
	default:
		return false
	}
}
