package db

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/hpungsan/lenote/internal/note"
)

// MaxNotesPage caps how many notes one GetNotes call returns.
const MaxNotesPage = 500

// GetNotes returns the newest MaxNotesPage notes with minID <= id <= maxID,
// in ascending id order, each with its current tags attached.
// An empty or inverted range yields an empty slice, not an error.
func (s *Store) GetNotes(ctx context.Context, minID, maxID int64) ([]note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := selectNotes(ctx, s.db, minID, maxID)
	if err != nil {
		return nil, classify(err)
	}
	return notes, nil
}

// insertNote appends one row and returns the id SQLite assigned to it.
// Text and timestamp are stored as given.
func insertNote(ctx context.Context, q querier, n *note.Note) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO notes(text, timestamp, note_type) VALUES(?, ?, ?)`,
		n.Text, n.Timestamp, int64(n.Type),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// selectNotes fetches the page in two queries: the note rows, then every
// tag_map row for those ids at once.
func selectNotes(ctx context.Context, q querier, minID, maxID int64) ([]note.Note, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, text, timestamp, note_type FROM notes
		WHERE id BETWEEN ? AND ?
		ORDER BY id DESC LIMIT ?`,
		minID, maxID, MaxNotesPage,
	)
	if err != nil {
		return nil, err
	}

	notes := make([]note.Note, 0)
	idToIndex := make(map[int64]int)
	ids := make([]int64, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		idToIndex[n.ID] = len(notes)
		ids = append(ids, n.ID)
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the cursor before the second query; there is only one connection.
	rows.Close()

	if len(ids) == 0 {
		return notes, nil
	}

	pairs, err := selectTagsForNotes(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		i, ok := idToIndex[p.noteID]
		if !ok {
			continue
		}
		notes[i].Tags = append(notes[i].Tags, p.tag)
	}

	for i := range notes {
		sort.Strings(notes[i].Tags)
	}

	// Selected newest-first so the cap keeps the most recent; hand back oldest-first.
	for i, j := 0, len(notes)-1; i < j; i, j = i+1, j-1 {
		notes[i], notes[j] = notes[j], notes[i]
	}

	return notes, nil
}

// noteTag is one (note_id, tag) pair from tag_map.
type noteTag struct {
	noteID int64
	tag    string
}

// selectTagsForNotes returns every tag_map pairing for the given note ids.
func selectTagsForNotes(ctx context.Context, q querier, ids []int64) ([]noteTag, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		`SELECT note_id, tag FROM tag_map WHERE note_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []noteTag
	for rows.Next() {
		var p noteTag
		if err := rows.Scan(&p.noteID, &p.tag); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// scanNote scans one notes row. Tags starts empty, never nil.
func scanNote(scanner interface{ Scan(dest ...any) error }) (*note.Note, error) {
	var (
		n         note.Note
		timestamp sql.NullInt64
		noteType  int64
	)

	if err := scanner.Scan(&n.ID, &n.Text, &timestamp, &noteType); err != nil {
		return nil, err
	}

	t, err := note.ParseNoteType(noteType)
	if err != nil {
		return nil, err
	}
	n.Type = t
	n.Timestamp = timestamp.Int64
	n.Tags = []string{}

	return &n, nil
}
