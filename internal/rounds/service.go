package rounds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
)

type DBLayer interface {
	CreateRound(ctx context.Context, round models.Round) error
	GetRound(ctx context.Context, id string) (*models.Round, error)
	UpdateConfig(ctx context.Context, round models.Round) (bool, error)
	TransitionStatus(ctx context.Context, id, from, to string) (bool, error)
}

// TicketReleaser frees a round's sold tickets on cancellation.
type TicketReleaser interface {
	ReleaseAll(ctx context.Context, roundID string) error
}

type EventPublisher interface {
	PublishRoundEvent(event string, round models.Round) error
}

// Service is the round state machine: configuring -> open -> closed -> drawn
// -> archived, with cancellation to archived from configuring or closed.
// Every transition goes through the store's compare-and-set, so concurrent
// duplicate transitions resolve to one winner and silent no-ops.
type Service struct {
	DB      DBLayer
	Tickets TicketReleaser
	Kafka   EventPublisher
	Logger  *logger.Logger

	// Now is the clock used for end-time checks. Overridable in tests.
	Now func() time.Time
}

func NewService(db DBLayer, tickets TicketReleaser, kafka EventPublisher, log *logger.Logger) *Service {
	return &Service{
		DB:      db,
		Tickets: tickets,
		Kafka:   kafka,
		Logger:  log,
		Now:     time.Now,
	}
}

func validateParams(req models.RoundRequest) error {
	if req.TotalTickets <= 0 {
		return fmt.Errorf("%w: total_tickets must be positive", models.ErrValidation)
	}
	if req.MaxTicketsPerUser <= 0 {
		return fmt.Errorf("%w: max_tickets_per_user must be positive", models.ErrValidation)
	}
	if req.NumberOfWinners <= 0 || req.NumberOfWinners > req.TotalTickets {
		return fmt.Errorf("%w: number_of_winners must be in 1..total_tickets", models.ErrValidation)
	}
	// The draw policy is a deliberate choice the operator must make; there is
	// no default because sold-only and full-range draws pay out differently.
	if req.DrawPolicy != models.DrawFromSold && req.DrawPolicy != models.DrawFromAll {
		return fmt.Errorf("%w: draw_policy must be %q or %q", models.ErrValidation, models.DrawFromSold, models.DrawFromAll)
	}
	if req.OnExhausted != "" && req.OnExhausted != models.ExhaustedKeep && req.OnExhausted != models.ExhaustedRollback {
		return fmt.Errorf("%w: on_exhausted must be %q or %q", models.ErrValidation, models.ExhaustedKeep, models.ExhaustedRollback)
	}
	if !req.EndTime.IsZero() && !req.StartTime.IsZero() && req.EndTime.Before(req.StartTime) {
		return fmt.Errorf("%w: end_time before start_time", models.ErrValidation)
	}
	return nil
}

// ConfigureRound creates a round in the configuring state. Capacity and rules
// are fixed here; purchases are not yet allowed.
func (s *Service) ConfigureRound(ctx context.Context, req models.RoundRequest) (*models.Round, error) {
	if err := validateParams(req); err != nil {
		return nil, err
	}

	round := models.Round{
		ID:                uuid.NewString(),
		Status:            models.RoundConfiguring,
		TotalTickets:      req.TotalTickets,
		MaxTicketsPerUser: req.MaxTicketsPerUser,
		NumberOfWinners:   req.NumberOfWinners,
		TicketPrice:       req.TicketPrice,
		Prize:             req.Prize,
		DrawPolicy:        req.DrawPolicy,
		OnExhausted:       req.OnExhausted,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		CreatedAt:         s.Now().UTC(),
	}
	if round.OnExhausted == "" {
		round.OnExhausted = models.ExhaustedKeep
	}

	if err := s.DB.CreateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if s.Logger != nil {
		s.Logger.LogRound("CONFIGURE", round.ID, fmt.Sprintf("capacity=%d cap=%d winners=%d policy=%s", round.TotalTickets, round.MaxTicketsPerUser, round.NumberOfWinners, round.DrawPolicy))
	}
	return &round, nil
}

// UpdateRound rewrites the parameters of a round that is still configuring.
func (s *Service) UpdateRound(ctx context.Context, roundID string, req models.RoundRequest) (*models.Round, error) {
	if err := validateParams(req); err != nil {
		return nil, err
	}
	round, err := s.DB.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.Status != models.RoundConfiguring {
		return nil, fmt.Errorf("%w: round %s is %s, parameters are frozen", models.ErrValidation, roundID, round.Status)
	}

	round.TotalTickets = req.TotalTickets
	round.MaxTicketsPerUser = req.MaxTicketsPerUser
	round.NumberOfWinners = req.NumberOfWinners
	round.TicketPrice = req.TicketPrice
	round.Prize = req.Prize
	round.DrawPolicy = req.DrawPolicy
	round.StartTime = req.StartTime
	round.EndTime = req.EndTime
	if req.OnExhausted != "" {
		round.OnExhausted = req.OnExhausted
	}

	updated, err := s.DB.UpdateConfig(ctx, *round)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if !updated {
		// Lost a race with an open transition.
		return nil, fmt.Errorf("%w: round %s left configuring during update", models.ErrValidation, roundID)
	}
	return round, nil
}

// GetRound returns the round, applying the automatic end-time close first:
// an open round whose window has elapsed is transitioned to closed before
// being returned, so callers never act on a stale open state.
func (s *Service) GetRound(ctx context.Context, roundID string) (*models.Round, error) {
	round, err := s.DB.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.Status == models.RoundOpen && round.PastEnd(s.Now()) {
		if err := s.CloseRound(ctx, roundID); err != nil {
			return nil, err
		}
		round.Status = models.RoundClosed
	}
	return round, nil
}

// transition performs a guarded status move. When the CAS loses, the round is
// re-read: if it already reached the target state the call is a no-op, any
// other state is an error.
func (s *Service) transition(ctx context.Context, roundID, from, to string) error {
	changed, err := s.DB.TransitionStatus(ctx, roundID, from, to)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if changed {
		if s.Logger != nil {
			s.Logger.LogRound("TRANSITION", roundID, from+" -> "+to)
		}
		if s.Kafka != nil {
			round, err := s.DB.GetRound(ctx, roundID)
			if err == nil {
				if err := s.Kafka.PublishRoundEvent(to, *round); err != nil && s.Logger != nil {
					s.Logger.Error("KAFKA", fmt.Sprintf("round event %q publish failed for %s: %v", to, roundID, err))
				}
			}
		}
		return nil
	}

	round, err := s.DB.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	if round.Status == to {
		// Another caller already made this transition.
		return nil
	}
	return fmt.Errorf("%w: round %s is %s, expected %s", models.ErrValidation, roundID, round.Status, from)
}

func (s *Service) OpenRound(ctx context.Context, roundID string) error {
	return s.transition(ctx, roundID, models.RoundConfiguring, models.RoundOpen)
}

// CloseRound freezes the sold/unsold snapshot. Purchases after this fail with
// ErrRoundClosed. Concurrent closes resolve to one winner; the rest no-op.
func (s *Service) CloseRound(ctx context.Context, roundID string) error {
	return s.transition(ctx, roundID, models.RoundOpen, models.RoundClosed)
}

// ArchiveRound moves a drawn round to its terminal read-only state.
func (s *Service) ArchiveRound(ctx context.Context, roundID string) error {
	return s.transition(ctx, roundID, models.RoundDrawn, models.RoundArchived)
}

// CancelRound archives a round before its draw and releases every sold
// ticket. Cancellation after a draw is not permitted; committed draws are
// immutable.
func (s *Service) CancelRound(ctx context.Context, roundID string) error {
	round, err := s.DB.GetRound(ctx, roundID)
	if err != nil {
		return err
	}

	switch round.Status {
	case models.RoundConfiguring, models.RoundClosed:
		if err := s.transition(ctx, roundID, round.Status, models.RoundArchived); err != nil {
			return err
		}
	case models.RoundArchived:
		return nil
	default:
		return fmt.Errorf("%w: cannot cancel a round in state %s", models.ErrValidation, round.Status)
	}

	if s.Tickets != nil {
		if err := s.Tickets.ReleaseAll(ctx, roundID); err != nil {
			return err
		}
	}
	if s.Logger != nil {
		s.Logger.LogRound("CANCEL", roundID, "round archived, tickets released")
	}
	return nil
}
