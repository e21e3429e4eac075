package repository

import (
	"context"
	"database/sql"
)

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error, including a panic re-raised after rollback. Lifecycle
// uses this to wrap every state transition in a single round trip with its
// row lock.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
