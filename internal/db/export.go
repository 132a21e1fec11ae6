package db

import (
	"context"

	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/note"
)

// ForEachNote calls fn for every note in ascending id order, with the
// note's current tag pairings attached. It holds the store lock for the
// whole walk. Returns the number of records passed to fn.
func (s *Store) ForEachNote(ctx context.Context, fn func(note.ExportRecord) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Pairings are loaded up front: the notes cursor below occupies the
	// only connection until it is closed.
	tagsByNote, err := loadExportTags(ctx, s)
	if err != nil {
		return 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, timestamp, note_type FROM notes ORDER BY id ASC`)
	if err != nil {
		return 0, classify(err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		if ctx.Err() != nil {
			return count, errors.NewCancelled("export")
		}

		n, err := scanNote(rows)
		if err != nil {
			return count, classify(err)
		}

		tags := tagsByNote[n.ID]
		if tags == nil {
			tags = []note.ExportTagMap{}
		}
		record := note.ExportRecord{
			ID:        n.ID,
			Text:      n.Text,
			Timestamp: n.Timestamp,
			Type:      n.Type,
			Tags:      tags,
		}
		if err := fn(record); err != nil {
			return count, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, classify(err)
	}
	return count, nil
}

// loadExportTags reads every pairing grouped by note id.
func loadExportTags(ctx context.Context, s *Store) (map[int64][]note.ExportTagMap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.note_id, m.tag, t.color, m.status
		FROM tag_map m
			INNER JOIN tags t ON m.tag = t.tag
		ORDER BY m.note_id ASC, m.tag ASC`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	byNote := make(map[int64][]note.ExportTagMap)
	for rows.Next() {
		var (
			noteID int64
			m      note.ExportTagMap
			status int64
		)
		if err := rows.Scan(&noteID, &m.Tag, &m.Color, &status); err != nil {
			return nil, classify(err)
		}
		if m.Status, err = note.ParseTagMapStatus(status); err != nil {
			return nil, err
		}
		byNote[noteID] = append(byNote[noteID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return byNote, nil
}
