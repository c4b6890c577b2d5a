package store

import (
	"context"
	"database/sql"
	"time"
)

// DB bundles a connection so the scheduler can consume the store through
// small interfaces instead of package-level functions.
type DB struct{ DB *sql.DB }

func (d *DB) RecordCatch(ctx context.Context, c Catch) error {
	return RecordCatch(ctx, d.DB, c)
}

func (d *DB) ActiveEffects(ctx context.Context, playerID string, now time.Time) ([]ActiveEffect, error) {
	return ActiveEffects(ctx, d.DB, playerID, now)
}

func (d *DB) MarkEffectsUsed(ctx context.Context, ids []int64) error {
	return MarkEffectsUsed(ctx, d.DB, ids)
}
