package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/note"
)

// MaxTagRows caps the tag_map join rows GetTags reads. The cap counts
// pairings, not distinct tags.
const MaxTagRows = 500

// SaveTags persists tags and their maps in one transaction.
// An existing tag keeps its color. A (tag, note_id) pair that already
// exists fails the whole call with CONSTRAINT_VIOLATION.
func (s *Store) SaveTags(ctx context.Context, tags []note.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return insertTags(ctx, tx, tags)
	})
}

// insertTags inserts each tag row (ignored if the name exists) followed by
// each of its tag_map rows.
func insertTags(ctx context.Context, q querier, tags []note.Tag) error {
	for _, t := range tags {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags(tag, color) VALUES(?, ?)`, t.Name, t.Color); err != nil {
			return err
		}

		for _, m := range t.Maps {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO tag_map(tag, note_id, status) VALUES(?, ?, ?)`,
				t.Name, m.NoteID, int64(m.Status)); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetTags groups the newest MaxTagRows pairings by tag and returns the
// groups sorted by tag name. Each map's timestamp is its note's timestamp.
func (s *Store) GetTags(ctx context.Context) ([]note.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.tag, t.color, m.note_id, m.status, n.timestamp
		FROM tag_map m
			INNER JOIN tags t ON m.tag = t.tag
			INNER JOIN notes n ON m.note_id = n.id
		ORDER BY m.note_id DESC
		LIMIT ?`, MaxTagRows)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	result := make([]note.Tag, 0)
	tagToIndex := make(map[string]int)
	for rows.Next() {
		var (
			name, color string
			m           note.TagMap
			status      int64
			timestamp   sql.NullInt64
		)
		if err := rows.Scan(&name, &color, &m.NoteID, &status, &timestamp); err != nil {
			return nil, classify(err)
		}
		if m.Status, err = note.ParseTagMapStatus(status); err != nil {
			return nil, err
		}
		m.Timestamp = timestamp.Int64

		i, ok := tagToIndex[name]
		if !ok {
			result = append(result, note.Tag{Name: name, Color: color, Maps: []note.TagMap{}})
			i = len(result) - 1
			tagToIndex[name] = i
		}
		result[i].Maps = append(result[i].Maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// GetTagMap returns every pairing for tag, newest note first. Unknown tags
// yield an empty slice.
func (s *Store) GetTagMap(ctx context.Context, tag string) ([]note.TagMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.note_id, m.status, n.timestamp
		FROM tag_map m
			INNER JOIN tags t ON m.tag = t.tag
			INNER JOIN notes n ON m.note_id = n.id
		WHERE m.tag = ?
		ORDER BY m.note_id DESC`, tag)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	maps := make([]note.TagMap, 0)
	for rows.Next() {
		var (
			m         note.TagMap
			status    int64
			timestamp sql.NullInt64
		)
		if err := rows.Scan(&m.NoteID, &status, &timestamp); err != nil {
			return nil, classify(err)
		}
		if m.Status, err = note.ParseTagMapStatus(status); err != nil {
			return nil, err
		}
		m.Timestamp = timestamp.Int64
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return maps, nil
}

// UpdateTagMapStatus sets the status of the (tag, m.NoteID) pairing and
// appends one history row stamped with the current time, atomically.
// An unknown pairing returns NOT_FOUND and writes nothing.
// The returned map carries the new status and the transition time.
func (s *Store) UpdateTagMapStatus(ctx context.Context, tag string, m note.TagMap) (*note.TagMap, error) {
	if !m.Status.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid status %d", int(m.Status)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE tag_map SET status = ? WHERE tag = ? AND note_id = ?`,
			int64(m.Status), tag, m.NoteID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return errors.NewNotFound("tag map", fmt.Sprintf("%s/%d", tag, m.NoteID))
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO tag_map_history(tag, note_id, status, timestamp) VALUES(?, ?, ?, ?)`,
			tag, m.NoteID, int64(m.Status), now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("updated tag map status", "tag", tag, "note_id", m.NoteID, "status", m.Status.String())
	return &note.TagMap{NoteID: m.NoteID, Status: m.Status, Timestamp: now}, nil
}
