package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/lenote/internal/note"
)

// TagHistory returns the audit rows recorded for tag, newest first.
// Only explicit status updates are logged; note creation is not.
func (s *Store) TagHistory(ctx context.Context, tag string) ([]note.TagMapHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tag, note_id, status, timestamp
		FROM tag_map_history
		WHERE tag = ?
		ORDER BY id DESC`, tag)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	history := make([]note.TagMapHistory, 0)
	for rows.Next() {
		var (
			h         note.TagMapHistory
			status    int64
			timestamp sql.NullInt64
		)
		if err := rows.Scan(&h.ID, &h.Tag, &h.NoteID, &status, &timestamp); err != nil {
			return nil, classify(err)
		}
		if h.Status, err = note.ParseTagMapStatus(status); err != nil {
			return nil, err
		}
		h.Timestamp = timestamp.Int64
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return history, nil
}
