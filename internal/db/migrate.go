package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hpungsan/lenote/internal/errors"
)

// migration is one irreversible schema step and the version it produces.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered schema history. Versions are sequential from 1.
// Append new steps at the end; never edit or reorder existing ones.
var migrations = []migration{
	{
		version: 1,
		sql: `CREATE TABLE notes(
			id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			text VARCHAR NOT NULL,
			timestamp BIGINT
		)`,
	},
	{
		version: 2,
		sql: `CREATE TABLE tags(
			tag VARCHAR NOT NULL PRIMARY KEY,
			color VARCHAR NOT NULL
		)`,
	},
	{
		version: 3,
		sql: `CREATE TABLE tag_map(
			tag VARCHAR NOT NULL,
			note_id BIGINT NOT NULL,
			status INT NOT NULL,
			PRIMARY KEY (tag, note_id),
			FOREIGN KEY(note_id) REFERENCES notes(id),
			FOREIGN KEY(tag) REFERENCES tags(tag)
		)`,
	},
	{
		version: 4,
		sql: `CREATE TABLE tag_map_history(
			id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			tag VARCHAR NOT NULL,
			note_id BIGINT NOT NULL,
			status INT NOT NULL,
			timestamp BIGINT,
			FOREIGN KEY(note_id) REFERENCES notes(id),
			FOREIGN KEY(tag) REFERENCES tags(tag)
		)`,
	},
	{
		version: 5,
		sql:     `ALTER TABLE notes ADD COLUMN note_type INTEGER NOT NULL DEFAULT 0`,
	},
}

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 5

// InitSchema brings the database to CurrentSchemaVersion. Safe to call on
// an up-to-date database: no step is applied twice.
func (s *Store) InitSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return migrate(ctx, s.db, s.logger, migrations)
}

// SchemaVersion returns the value of the version cell.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getVersion(ctx, s.db)
}

// migrate applies every step in steps whose version is above the stored one,
// in order, each in its own transaction.
func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger, steps []migration) error {
	for i, m := range steps {
		if m.version != i+1 {
			return fmt.Errorf("migration %d declares version %d; versions must be sequential", i, m.version)
		}
	}

	if err := initVersionTable(ctx, db); err != nil {
		return err
	}

	version, err := getVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range steps {
		if m.version <= version {
			continue
		}
		if err := evolve(ctx, db, m); err != nil {
			return err
		}
		logger.Info("evolved database", "version", m.version)
	}

	return nil
}

// initVersionTable creates the version cell with value 0 if it does not exist.
func initVersionTable(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS db_version(v INT)`); err != nil {
		return fmt.Errorf("failed to create version table: %w", err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO db_version(v) SELECT 0 WHERE NOT EXISTS(SELECT 1 FROM db_version)`)
	if err != nil {
		return fmt.Errorf("failed to seed version table: %w", err)
	}
	return nil
}

// getVersion reads the version cell.
func getVersion(ctx context.Context, q querier) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, `SELECT v FROM db_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// evolve applies one step. The version cell moves from m.version-1 to
// m.version only if it still holds m.version-1; otherwise the step's DDL
// is rolled back along with everything else in the transaction.
func evolve(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewMigrationFailed(m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return errors.NewMigrationFailed(m.version, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE db_version SET v = ? WHERE v = ?`, m.version, m.version-1)
	if err != nil {
		return errors.NewMigrationFailed(m.version, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewMigrationFailed(m.version, err)
	}
	if affected != 1 {
		return errors.NewMigrationFailed(m.version, nil)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewMigrationFailed(m.version, err)
	}
	return nil
}
