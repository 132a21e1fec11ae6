package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/note"
	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "lenote.db"

// Store owns the single SQLite connection. Every operation takes mu for its
// whole duration, so there is never more than one reader or writer.
type Store struct {
	mu        sync.Mutex
	db        *sql.DB
	logger    *slog.Logger
	pickColor note.ColorPicker
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the note and tag
// statements run unchanged inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (creating if needed) baseDir/lenote.db and brings its schema
// to CurrentSchemaVersion. A migration failure closes the database and is
// returned; the store is never handed out half-migrated.
// The baseDir parameter allows tests to use t.TempDir().
func Open(baseDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Pragmas in the connection string apply to every connection the pool opens
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One physical connection; Store.mu serializes access to it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:        db,
		logger:    logger,
		pickColor: note.RandomColor,
	}

	logger.Info("opening database", "path", dbPath)
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// classify maps a driver error to a structured error. Errors that are
// already structured pass through unchanged, and context errors become
// CANCELLED.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewCancelled("database operation")
	}
	if isConstraintError(err) {
		return errors.NewConstraintViolation(err)
	}
	return errors.NewInternal(err)
}

// isConstraintError checks for SQLite UNIQUE / PRIMARY KEY / FOREIGN KEY violations.
func isConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed")
}
