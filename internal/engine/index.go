package engine

import (
	"context"
	"fmt"
)

// IndexName returns the name EnsureIndex gives the index on table(column).
func IndexName(table, column string) string {
	return "idx_" + table + "_" + column
}

// EnsureIndex creates a secondary index on table(column) if it does not exist,
// then commits. Large tables need this on their lookup columns for sync to
// stay fast.
func (e *Engine) EnsureIndex(ctx context.Context, table, column string) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if err := validateColumn(column); err != nil {
		return err
	}

	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
		quote(IndexName(table, column)), quote(table), quote(column))

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.txLocked(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure index on %s(%s): %w", table, column, err)
	}
	return e.commitLocked()
}
