package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-lottery/internal/models"
)

// DB is the SQL-backed ticket store. A sold ticket is a row keyed by
// (round_id, number); the primary key makes the reservation insert a
// conditional write, so two concurrent purchasers can never both own a number.
type DB struct {
	Bun *bun.DB
}

// Reserve inserts the sold ticket row, succeeding only if no row holds the
// (round, number) slot yet. ON CONFLICT DO NOTHING turns a lost race into a
// zero-row result instead of an error.
func (d *DB) Reserve(ctx context.Context, ticket models.Ticket) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(&ticket).
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

// Release deletes ticket rows, returning the numbers to the available set.
func (d *DB) Release(ctx context.Context, roundID string, numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}
	_, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("round_id = ?", roundID).
		Where("number IN (?)", bun.In(numbers)).
		Exec(ctx)
	return err
}

// SoldNumbers returns every sold ticket number of a round.
func (d *DB) SoldNumbers(ctx context.Context, roundID string) ([]int, error) {
	var numbers []int
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("number").
		Where("round_id = ?", roundID).
		Where("status = ?", models.TicketSold).
		Order("number").
		Scan(ctx, &numbers)
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (d *DB) SoldCount(ctx context.Context, roundID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("round_id = ?", roundID).
		Where("status = ?", models.TicketSold).
		Count(ctx)
}

func (d *DB) OwnedCount(ctx context.Context, roundID, userID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("round_id = ?", roundID).
		Where("owner_id = ?", userID).
		Count(ctx)
}

// PerUserCounts aggregates owned-ticket counts per user for a round.
func (d *DB) PerUserCounts(ctx context.Context, roundID string) (map[string]int, error) {
	var rows []struct {
		OwnerID string `bun:"owner_id"`
		Count   int    `bun:"count"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("owner_id").
		ColumnExpr("count(*) AS count").
		Where("round_id = ?", roundID).
		Where("owner_id IS NOT NULL").
		Group("owner_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.OwnerID] = row.Count
	}
	return counts, nil
}

// TicketByNumber fetches one ticket row, for receipts and ownership checks.
func (d *DB) TicketByNumber(ctx context.Context, roundID string, number int) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("round_id = ?", roundID).
		Where("number = ?", number).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}
