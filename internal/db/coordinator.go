package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/lenote/internal/note"
)

// SaveNoteWithTags extracts the hashtags from n.Text and writes the note,
// its tags, and one Active tag_map row per tag as a single transaction.
// Any failure rolls back the note insert too. n.Text, n.Timestamp and
// n.Type are stored as given; the caller stamps the time and resolves
// image bodies beforehand.
func (s *Store) SaveNoteWithTags(ctx context.Context, n note.Note) (*note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.Tags = note.ExtractTags(n.Text)

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		id, err := insertNote(ctx, tx, &n)
		if err != nil {
			return err
		}
		n.ID = id

		return insertTags(ctx, tx, note.BuildTags(&n, s.pickColor))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("saved note", "id", n.ID, "type", n.Type.String(), "tags", len(n.Tags))
	return &n, nil
}
