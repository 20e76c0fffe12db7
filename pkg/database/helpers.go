package database

import (
	"context"
	"errors"
	"fmt"
)

// SelectCtx runs SelectContext under the per-query timeout.
func (db *DB) SelectCtx(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, cancel := db.QueryCtx(ctx)
	defer cancel()
	return timedOut(ctx, db.SelectContext(ctx, dest, query, args...))
}

// timedOut keeps context.DeadlineExceeded in the chain when ctx expired,
// since the driver reports a cancelled statement as its own error.
func timedOut(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
	}
	return err
}

// ColumnExists reports whether table.column exists in the public schema.
// Used to detect which downtime linkage a deployment's schema supports.
func (db *DB) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	ctx, cancel := db.QueryCtx(ctx)
	defer cancel()

	var exists bool
	err := db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)`, table, column)
	if err := timedOut(ctx, err); err != nil {
		return false, fmt.Errorf("failed to inspect %s.%s: %w", table, column, err)
	}
	return exists, nil
}
