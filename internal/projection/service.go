package projection

import (
	"context"
	"fmt"

	"ms-lottery/internal/models"
)

type RoundGetter interface {
	GetRound(ctx context.Context, roundID string) (*models.Round, error)
}

type TicketReader interface {
	SoldCount(ctx context.Context, roundID string) (int, error)
	PerUserCounts(ctx context.Context, roundID string) (map[string]int, error)
}

// Service computes read-only views over ticket records. Counts are derived
// from ground truth on every call; nothing here is a mutable counter that a
// purchase could leave stale.
type Service struct {
	Rounds  RoundGetter
	Tickets TicketReader
}

func NewService(rounds RoundGetter, tickets TicketReader) *Service {
	return &Service{Rounds: rounds, Tickets: tickets}
}

func (s *Service) GetProjection(ctx context.Context, roundID string) (*models.RoundProjection, error) {
	round, err := s.Rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	sold, err := s.Tickets.SoldCount(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	perUser, err := s.Tickets.PerUserCounts(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return &models.RoundProjection{
		RoundID:       round.ID,
		Status:        round.Status,
		TotalTickets:  round.TotalTickets,
		SoldCount:     sold,
		UnsoldCount:   round.TotalTickets - sold,
		PerUserCounts: perUser,
	}, nil
}

// OwnedCount reports how many tickets a user holds in a round.
func (s *Service) OwnedCount(ctx context.Context, roundID, userID string) (int, error) {
	perUser, err := s.Tickets.PerUserCounts(ctx, roundID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return perUser[userID], nil
}
