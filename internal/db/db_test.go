package db

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/lenote/internal/errors"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a fresh store in a temp dir with a deterministic color.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	s.pickColor = func() string { return "#3498db" }
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := Open(tmpDir, nil)
	require.NoError(t, err)
	defer s.Close()

	dbPath := filepath.Join(tmpDir, FileName)
	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file not created")

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys;").Scan(&foreignKeys))
	require.Equal(t, 1, foreignKeys)

	for _, table := range []string{"db_version", "notes", "tags", "tag_map", "tag_map_history"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s not found", table)
	}
}

func TestOpen_CreatesDirectories(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "nested", "path", ".lenote")

	s, err := Open(baseDir, nil)
	require.NoError(t, err)
	defer s.Close()

	info, err := os.Stat(baseDir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := newTestStore(t)

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, version)

	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM db_version").Scan(&rows))
	require.Equal(t, 1, rows, "version table must hold exactly one row")
}

func TestOpen_Reopen(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	s, err := Open(tmpDir, nil)
	require.NoError(t, err)
	_, err = s.SaveNoteWithTags(ctx, textNote("first #keep", 100))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(tmpDir, nil)
	require.NoError(t, err)
	defer s.Close()

	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, version)

	notes, err := s.GetNotes(ctx, 1, 100)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, []string{"#keep"}, notes[0].Tags)
}

func TestClassify(t *testing.T) {
	require.NoError(t, classify(nil))

	err := classify(stderrors.New("UNIQUE constraint failed: tag_map.tag, tag_map.note_id"))
	require.True(t, errors.Is(err, errors.ErrConstraintViolation))

	err = classify(stderrors.New("FOREIGN KEY constraint failed"))
	require.True(t, errors.Is(err, errors.ErrConstraintViolation))

	err = classify(stderrors.New("disk I/O error"))
	require.True(t, errors.Is(err, errors.ErrInternal))

	err = classify(context.Canceled)
	require.True(t, errors.Is(err, errors.ErrCancelled))

	err = classify(context.DeadlineExceeded)
	require.True(t, errors.Is(err, errors.ErrCancelled))

	nf := errors.NewNotFound("tag map", "#x/1")
	require.Same(t, nf, classify(nf))
}
