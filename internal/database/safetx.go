package database

import (
	"context"
	"fmt"
	"regexp"

	"github.com/uptrace/bun"
)

// SafeTx wraps a bun.Tx to make Rollback safe to call after Commit, and adds
// named savepoint helpers for per-row isolation inside a batch.
//
// Calling ROLLBACK TO SAVEPOINT after RELEASE SAVEPOINT aborts the outer
// transaction in PostgreSQL; the wrapper tracks Commit so a deferred Rollback
// is a no-op afterwards.
//
// Usage:
//
//	tx, err := BeginSafeTx(ctx, db)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // safe even after Commit
//
//	// ... do work ...
//
//	return tx.Commit()
type SafeTx struct {
	bun.Tx
	committed bool
}

// BeginSafeTx starts a new transaction and returns a SafeTx wrapper.
func BeginSafeTx(ctx context.Context, db bun.IDB) (*SafeTx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &SafeTx{Tx: tx}, nil
}

// Commit commits the transaction and marks it as committed.
func (tx *SafeTx) Commit() error {
	if tx.committed {
		return nil
	}
	err := tx.Tx.Commit()
	if err == nil {
		tx.committed = true
	}
	return err
}

// Rollback rolls back the transaction only if it hasn't been committed.
func (tx *SafeTx) Rollback() error {
	if tx.committed {
		return nil
	}
	return tx.Tx.Rollback()
}

// savepointName restricts names to identifier characters; savepoint names
// cannot be bound as query parameters.
var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Savepoint creates a named savepoint within the transaction.
func (tx *SafeTx) Savepoint(ctx context.Context, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	_, err := tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

// ReleaseSavepoint releases a named savepoint, keeping its effects.
func (tx *SafeTx) ReleaseSavepoint(ctx context.Context, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

// RollbackToSavepoint discards work done since the named savepoint without
// aborting the outer transaction.
func (tx *SafeTx) RollbackToSavepoint(ctx context.Context, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	_, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}
