package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-lottery/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateRound(ctx context.Context, round models.Round) error {
	_, err := d.Bun.NewInsert().Model(&round).Exec(ctx)
	return err
}

func (d *DB) GetRound(ctx context.Context, id string) (*models.Round, error) {
	var round models.Round
	err := d.Bun.NewSelect().
		Model(&round).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRoundNotFound
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// UpdateConfig rewrites round parameters, but only while the round is still
// configuring. The status guard in the WHERE clause keeps a concurrent open
// from racing the update.
func (d *DB) UpdateConfig(ctx context.Context, round models.Round) (bool, error) {
	round.UpdatedAt = time.Now().UTC()
	res, err := d.Bun.NewUpdate().
		Model(&round).
		Column("total_tickets", "max_tickets_per_user", "number_of_winners",
			"ticket_price", "prize", "draw_policy", "on_exhausted",
			"start_time", "end_time", "updated_at").
		Where("id = ?", round.ID).
		Where("status = ?", models.RoundConfiguring).
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

// TransitionStatus moves a round from one status to another as a single
// compare-and-set. It reports false when the round was not in the expected
// predecessor state, which is how concurrent double-transitions are resolved:
// exactly one caller sees true.
func (d *DB) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Round)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", from).
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
