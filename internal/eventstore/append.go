package eventstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/evttree/eventstore/internal/eventkind"
)

// Append inserts a new event and, when it chains from the session's
// current head, advances the head and counters — all in one
// transaction. Concurrent callers racing the same session's head may
// both succeed and create a branch; preventing that is the Session
// Context's responsibility, not this method's (spec'd concurrency
// note: the store performs an optimistic check, nothing more).
func (s *Store) Append(ctx context.Context, in AppendInput) (*Event, error) {
	var result *Event

	err := s.withTx(ctx, "append", func(tx *sql.Tx) error {
		sess, err := s.getSession(ctx, tx, in.SessionID)
		if err == sql.ErrNoRows {
			return &SessionNotFoundError{SessionID: in.SessionID}
		}
		if err != nil {
			return err
		}
		if sess.Ended {
			return &SessionEndedError{SessionID: in.SessionID}
		}

		parentID := in.ParentID
		advancesHead := parentID == nil
		if parentID == nil {
			head := sess.HeadEventID
			parentID = &head
		} else if in.Kind != eventkind.SessionFork {
			var belongsTo string
			row := tx.QueryRowContext(ctx, `SELECT session_id FROM events WHERE id = ?`, *parentID)
			if scanErr := row.Scan(&belongsTo); scanErr != nil || belongsTo != in.SessionID {
				return &ParentNotFoundError{SessionID: in.SessionID, ParentID: *parentID}
			}
			advancesHead = *parentID == sess.HeadEventID
		} else {
			advancesHead = false
		}

		id := newEventID()
		now := s.db.Now()
		sequence := sess.EventCount

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, session_id, parent_id, sequence, kind, payload, timestamp, tombstone)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
			id, in.SessionID, *parentID, sequence, string(in.Kind), []byte(in.Payload), now.UnixNano()); err != nil {
			return err
		}

		messageDelta := 0
		if eventkind.IsMessageKind(in.Kind) {
			messageDelta = 1
		} else if in.Kind == eventkind.MessageDeleted && advancesHead {
			// The first tombstone for a message in this session flags the
			// target and drops it from message_count; repeats change nothing.
			var p eventkind.MessageDeletedPayload
			if eventkind.Decode(in.Payload, &p) == nil {
				res, err := tx.ExecContext(ctx, `
					UPDATE events SET tombstone = 1
					WHERE id = ? AND session_id = ? AND kind IN (?, ?) AND tombstone = 0`,
					p.TargetEventID, in.SessionID, string(eventkind.MessageUser), string(eventkind.MessageAssistant))
				if err != nil {
					return err
				}
				if n, _ := res.RowsAffected(); n > 0 {
					messageDelta = -1
				}
			}
		}

		if advancesHead {
			if _, err := tx.ExecContext(ctx, `
				UPDATE sessions SET head_event_id = ?, event_count = event_count + 1,
					message_count = message_count + ?, updated_at = ? WHERE id = ?`,
				id, messageDelta, now.UnixNano(), in.SessionID); err != nil {
				return err
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				UPDATE sessions SET event_count = event_count + 1, updated_at = ? WHERE id = ?`,
				now.UnixNano(), in.SessionID); err != nil {
				return err
			}
		}

		if err := upsertFTSRow(ctx, tx, id, in.SessionID, sess.WorkspaceID, in.Kind, in.Payload); err != nil {
			return err
		}

		result = &Event{
			ID: id, SessionID: in.SessionID, ParentID: parentID, Sequence: sequence,
			Kind: in.Kind, Payload: in.Payload, Timestamp: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteMessage appends a message.deleted tombstone targeting
// targetEventID. The target row is never removed; reconstruction hides
// it.
func (s *Store) DeleteMessage(ctx context.Context, sessionID, targetEventID string, reason *string) (*Event, error) {
	payload, err := eventkind.Encode(eventkind.MessageDeletedPayload{
		TargetEventID: targetEventID,
		Reason:        reason,
	})
	if err != nil {
		return nil, err
	}
	return s.Append(ctx, AppendInput{
		SessionID: sessionID,
		Kind:      eventkind.MessageDeleted,
		Payload:   payload,
	})
}

// GetEvent loads a single event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (*Event, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, session_id, parent_id, sequence, kind, payload, timestamp, tombstone
		FROM events WHERE id = ?`, id)
	evt, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, &EventNotFoundError{EventID: id}
	}
	return evt, err
}

// GetChildren returns all events whose parent is id, ordered by
// timestamp.
func (s *Store) GetChildren(ctx context.Context, id string) ([]*Event, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, session_id, parent_id, sequence, kind, payload, timestamp, tombstone
		FROM events WHERE parent_id = ? ORDER BY timestamp ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetAncestors returns the chain from id back to the root of its
// session, crossing into the parent session when a session.fork event
// is reached, in root-to-descendant order inclusive of id.
func (s *Store) GetAncestors(ctx context.Context, id string) ([]*Event, error) {
	var chain []*Event
	currentID := id
	for {
		evt, err := s.GetEvent(ctx, currentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, evt)
		if evt.ParentID == nil {
			break
		}
		currentID = *evt.ParentID
	}
	// chain is currently descendant-to-root; reverse it.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func scanEvent(row *sql.Row) (*Event, error) {
	var evt Event
	var parentID sql.NullString
	var kind string
	var tombstone int
	var timestamp int64
	var payload []byte

	if err := row.Scan(&evt.ID, &evt.SessionID, &parentID, &evt.Sequence, &kind, &payload, &timestamp, &tombstone); err != nil {
		return nil, err
	}
	if parentID.Valid {
		evt.ParentID = &parentID.String
	}
	evt.Kind = eventkind.Kind(kind)
	evt.Payload = payload
	evt.Timestamp = time.Unix(0, timestamp).UTC()
	evt.Tombstone = tombstone != 0
	return &evt, nil
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var evt Event
		var parentID sql.NullString
		var kind string
		var tombstone int
		var timestamp int64
		var payload []byte
		if err := rows.Scan(&evt.ID, &evt.SessionID, &parentID, &evt.Sequence, &kind, &payload, &timestamp, &tombstone); err != nil {
			return nil, err
		}
		if parentID.Valid {
			evt.ParentID = &parentID.String
		}
		evt.Kind = eventkind.Kind(kind)
		evt.Payload = payload
		evt.Timestamp = time.Unix(0, timestamp).UTC()
		evt.Tombstone = tombstone != 0
		events = append(events, &evt)
	}
	return events, rows.Err()
}
