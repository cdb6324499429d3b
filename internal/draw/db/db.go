package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-lottery/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// GetResult returns the committed draw result for a round, if one exists.
func (d *DB) GetResult(ctx context.Context, roundID string) (*models.DrawResult, error) {
	var result models.DrawResult
	err := d.Bun.NewSelect().
		Model(&result).
		Where("round_id = ?", roundID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateResult persists a draw result, succeeding only if none exists for the
// round yet. The primary key on round_id makes this the commit point that
// elects a single draw among concurrent invocations.
func (d *DB) CreateResult(ctx context.Context, result models.DrawResult) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(&result).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
