package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/evttree/eventstore/internal/eventkind"
)

// upsertFTSRow projects an event's payload into the events_fts table's
// free-text `body` column at append time, so search never has to parse
// payload blobs at query time.
func upsertFTSRow(ctx context.Context, tx *sql.Tx, eventID, sessionID, workspaceID string, kind eventkind.Kind, payload json.RawMessage) error {
	body := projectBody(kind, payload)
	if body == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events_fts (event_id, session_id, workspace_id, kind, body)
		VALUES (?, ?, ?, ?, ?)`,
		eventID, sessionID, workspaceID, string(kind), body)
	return err
}

// projectBody extracts the searchable text for one event kind. Kinds
// with no meaningful text (lifecycle markers, config toggles) return "".
func projectBody(kind eventkind.Kind, payload json.RawMessage) string {
	switch kind {
	case eventkind.MessageUser:
		var p eventkind.MessageUserPayload
		if eventkind.Decode(payload, &p) != nil {
			return ""
		}
		var parts []string
		for _, b := range p.ContentBlocks() {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	case eventkind.MessageAssistant:
		var p eventkind.MessageAssistantPayload
		if eventkind.Decode(payload, &p) != nil {
			return ""
		}
		var parts []string
		for _, b := range p.Content {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
			if b.Thinking != "" {
				parts = append(parts, b.Thinking)
			}
		}
		return strings.Join(parts, "\n")
	case eventkind.ToolCall:
		var p eventkind.ToolCallPayload
		if eventkind.Decode(payload, &p) != nil {
			return ""
		}
		return p.Name
	case eventkind.ToolResult:
		var p eventkind.ToolResultPayload
		if eventkind.Decode(payload, &p) != nil {
			return ""
		}
		return p.Content
	case eventkind.ErrorAgent:
		var p eventkind.ErrorAgentPayload
		if eventkind.Decode(payload, &p) != nil {
			return ""
		}
		return p.Error
	case eventkind.ErrorProvider:
		var p eventkind.ErrorProviderPayload
		if eventkind.Decode(payload, &p) != nil {
			return ""
		}
		return p.Error
	case eventkind.CompactSummary:
		var p eventkind.CompactSummaryPayload
		if eventkind.Decode(payload, &p) != nil {
			return ""
		}
		return p.Summary
	default:
		return ""
	}
}

// Search queries the full-text index, ordered by descending score then
// descending timestamp.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	sqlQuery := `
		SELECT f.event_id, f.session_id, f.kind, e.timestamp,
			snippet(events_fts, 4, '[', ']', '...', 10) AS snippet,
			-bm25(events_fts) AS score
		FROM events_fts f
		JOIN events e ON e.id = f.event_id
		WHERE events_fts MATCH ?`
	args := []any{query}

	if opts.WorkspaceID != "" {
		sqlQuery += ` AND f.workspace_id = ?`
		args = append(args, opts.WorkspaceID)
	}
	if opts.SessionID != "" {
		sqlQuery += ` AND f.session_id = ?`
		args = append(args, opts.SessionID)
	}
	if len(opts.Kinds) > 0 {
		placeholders := make([]string, len(opts.Kinds))
		for i, k := range opts.Kinds {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		sqlQuery += ` AND f.kind IN (` + strings.Join(placeholders, ",") + `)`
	}

	sqlQuery += ` ORDER BY score DESC, e.timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Conn().QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var r SearchResult
		var kind string
		var timestamp int64
		if err := rows.Scan(&r.EventID, &r.SessionID, &kind, &timestamp, &r.Snippet, &r.Score); err != nil {
			return nil, err
		}
		r.Kind = eventkind.Kind(kind)
		r.Timestamp = time.Unix(0, timestamp).UTC()
		results = append(results, &r)
	}
	return results, rows.Err()
}
