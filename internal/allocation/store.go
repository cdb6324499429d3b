package allocation

import (
	"context"

	"ms-lottery/internal/models"
)

// TicketStore is the durable keyed storage the pool reserves numbers against.
// Reserve is the single serialization point: it must atomically assign the
// (round, number) slot to the ticket's owner only if the slot is currently
// unowned, and report false when another purchaser got there first.
type TicketStore interface {
	Reserve(ctx context.Context, ticket models.Ticket) (bool, error)
	Release(ctx context.Context, roundID string, numbers []int) error
	SoldNumbers(ctx context.Context, roundID string) ([]int, error)
	SoldCount(ctx context.Context, roundID string) (int, error)
	OwnedCount(ctx context.Context, roundID, userID string) (int, error)
	PerUserCounts(ctx context.Context, roundID string) (map[string]int, error)
}
