package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/evttree/eventstore/internal/eventkind"
)

// Fork creates a new session rooted at a session.fork event whose parent
// is fromEventID, which lives in the source session. The new session is
// not installed anywhere active; the Orchestrator decides whether to
// activate it.
func (s *Store) Fork(ctx context.Context, fromEventID string, name *string) (*Session, *Event, error) {
	var newSession *Session
	var rootEvent *Event

	err := s.withTx(ctx, "fork", func(tx *sql.Tx) error {
		var sourceSessionID string
		row := tx.QueryRowContext(ctx, `SELECT session_id FROM events WHERE id = ?`, fromEventID)
		if err := row.Scan(&sourceSessionID); err != nil {
			if err == sql.ErrNoRows {
				return &EventNotFoundError{EventID: fromEventID}
			}
			return err
		}

		sourceSession, err := s.getSession(ctx, tx, sourceSessionID)
		if err != nil {
			return err
		}

		now := s.db.Now()
		newID := newSessionID()
		rootID := newEventID()

		payload, err := eventkind.Encode(eventkind.SessionForkPayload{
			ForkedFromSessionID: sourceSessionID,
			ForkedFromEventID:   fromEventID,
			Name:                name,
		})
		if err != nil {
			return err
		}

		tagsJSON, err := json.Marshal([]string{})
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, workspace_id, root_event_id, head_event_id,
				latest_model, latest_reasoning_level, event_count, message_count,
				title, tags, forked_from_session_id, forked_from_event_id,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, 0, ?, ?, ?, ?, ?, ?)`,
			newID, sourceSession.WorkspaceID, rootID, rootID,
			sourceSession.LatestModel, sourceSession.LatestReasoningLevel,
			nullableString(name), string(tagsJSON), sourceSessionID, fromEventID,
			now.UnixNano(), now.UnixNano()); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, session_id, parent_id, sequence, kind, payload, timestamp, tombstone)
			VALUES (?, ?, ?, 0, ?, ?, ?, 0)`,
			rootID, newID, fromEventID, string(eventkind.SessionFork), []byte(payload), now.UnixNano()); err != nil {
			return err
		}

		if err := upsertFTSRow(ctx, tx, rootID, newID, sourceSession.WorkspaceID, eventkind.SessionFork, payload); err != nil {
			return err
		}

		forkedSessionID, forkedEventID := sourceSessionID, fromEventID
		newSession = &Session{
			ID: newID, WorkspaceID: sourceSession.WorkspaceID, RootEventID: rootID, HeadEventID: rootID,
			LatestModel: sourceSession.LatestModel, LatestReasoningLevel: sourceSession.LatestReasoningLevel,
			EventCount: 1, MessageCount: 0, Title: name,
			ForkedFromSessionID: &forkedSessionID, ForkedFromEventID: &forkedEventID,
			CreatedAt: now, UpdatedAt: now,
		}
		rootEvent = &Event{
			ID: rootID, SessionID: newID, ParentID: &forkedEventID, Sequence: 0,
			Kind: eventkind.SessionFork, Payload: payload, Timestamp: now,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return newSession, rootEvent, nil
}
