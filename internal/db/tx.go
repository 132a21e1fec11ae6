package db

import (
	"context"
	"database/sql"
)

// withTx runs fn inside one transaction. The transaction commits only when
// fn returns nil; every other exit path rolls it back. Callers hold s.mu.
// Transactions never nest: fn must issue all statements through tx.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}
