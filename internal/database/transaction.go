package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// WithTransaction runs fn inside a transaction on conn, committing on a nil
// return and rolling back otherwise. A panic inside fn is recovered, rolled
// back, and re-reported as an error so callers never lose the failure.
func WithTransaction(conn *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	if conn == nil {
		return errors.New("database: nil database connection")
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("database: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("database: transaction panic: %v", p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("database: transaction rolled back: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("database: transaction commit failed: %w", err)
	}

	return nil
}
