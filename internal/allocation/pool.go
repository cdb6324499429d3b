package allocation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
)

// RoundGetter resolves the current state of a round. Implementations apply
// the automatic end-time close before returning, so the pool never sees an
// open round whose window has elapsed.
type RoundGetter interface {
	GetRound(ctx context.Context, roundID string) (*models.Round, error)
}

// EventPublisher streams allocation events downstream.
type EventPublisher interface {
	PublishTicketsSold(roundID, userID string, numbers []int) error
}

// Pool assigns unique ticket numbers to purchasers. Counting and candidate
// sampling run unsynchronized; correctness comes from the store's per-number
// conditional write, retried within a bounded budget.
type Pool struct {
	Store  TicketStore
	Rounds RoundGetter
	Kafka  EventPublisher
	Logger *logger.Logger

	// RetryFactor bounds reservation retries at factor * available-pool-size.
	RetryFactor int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPool(store TicketStore, rounds RoundGetter, kafka EventPublisher, log *logger.Logger, retryFactor int) *Pool {
	if retryFactor < 1 {
		retryFactor = 1
	}
	return &Pool{
		Store:       store,
		Rounds:      rounds,
		Kafka:       kafka,
		Logger:      log,
		RetryFactor: retryFactor,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Purchase reserves up to requested ticket numbers for userID. It grants
// min(requested, cap headroom, remaining capacity) and reports fewer-than-
// requested as success. The headroom pre-read is advisory only: the per-user
// cap is re-validated against the store after every reservation, so
// concurrent purchases by the same user cannot combine past the cap.
// ErrPoolExhausted is returned only when the pool runs dry mid-reservation;
// what happens to tickets already reserved in that call is the round's
// OnExhausted policy.
func (p *Pool) Purchase(ctx context.Context, roundID, userID string, requested int, walletAddress string) ([]int, error) {
	if requested < 1 {
		return nil, fmt.Errorf("%w: requested count must be >= 1", models.ErrValidation)
	}

	round, err := p.Rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.Closed() {
		return nil, models.ErrRoundClosed
	}

	owned, err := p.Store.OwnedCount(ctx, roundID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	allowed := requested
	if headroom := round.MaxTicketsPerUser - owned; headroom < allowed {
		allowed = headroom
	}
	if allowed <= 0 {
		return nil, models.ErrCapacityExceeded
	}

	assigned, err := p.reserve(ctx, round, userID, walletAddress, allowed)
	if err != nil {
		return assigned, err
	}

	if p.Logger != nil {
		p.Logger.LogAllocation(roundID, userID, fmt.Sprintf("assigned %d of %d requested", len(assigned), requested))
	}
	if p.Kafka != nil && len(assigned) > 0 {
		if err := p.Kafka.PublishTicketsSold(roundID, userID, assigned); err != nil && p.Logger != nil {
			p.Logger.Error("KAFKA", fmt.Sprintf("tickets-sold publish failed for round %s: %v", roundID, err))
		}
	}
	return assigned, nil
}

// reserve samples available numbers and claims them one by one through the
// store's conditional write. Each pass re-reads the sold set, so numbers lost
// to concurrent purchasers are replaced by freshly sampled ones until the
// want count is met, the pool is empty, or the retry budget runs out.
func (p *Pool) reserve(ctx context.Context, round *models.Round, userID, walletAddress string, want int) ([]int, error) {
	assigned := make([]int, 0, want)
	budget := -1

	for len(assigned) < want {
		available, err := p.availableNumbers(ctx, round)
		if err != nil {
			return p.failReservation(ctx, round, assigned, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err))
		}
		if len(available) == 0 {
			return p.exhausted(ctx, round, assigned)
		}
		if budget < 0 {
			budget = p.RetryFactor * len(available)
		}

		p.shuffle(available)

		progressed := false
		for _, number := range available {
			if len(assigned) == want {
				break
			}
			ok, err := p.Store.Reserve(ctx, models.Ticket{
				RoundID:       round.ID,
				Number:        number,
				Status:        models.TicketSold,
				OwnerID:       userID,
				WalletAddress: walletAddress,
				PurchasedAt:   time.Now().UTC(),
			})
			if err != nil {
				return p.failReservation(ctx, round, assigned, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err))
			}
			if !ok {
				// Lost the race for this number; spend budget, resample later.
				budget--
				if budget <= 0 {
					return p.exhausted(ctx, round, assigned)
				}
				continue
			}
			assigned = append(assigned, number)
			progressed = true

			owned, err := p.Store.OwnedCount(ctx, round.ID, userID)
			if err != nil {
				return p.failReservation(ctx, round, assigned, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err))
			}
			if owned > round.MaxTicketsPerUser {
				// A concurrent purchase by the same user claimed the headroom
				// between the pre-read and this write. Give the number back
				// and stop; the cap holds at the store, not the pre-read.
				if err := p.Store.Release(ctx, round.ID, []int{number}); err != nil {
					return p.failReservation(ctx, round, assigned[:len(assigned)-1], fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err))
				}
				assigned = assigned[:len(assigned)-1]
				if len(assigned) == 0 {
					return nil, models.ErrCapacityExceeded
				}
				return assigned, nil
			}
		}

		if !progressed && len(assigned) < want {
			return p.exhausted(ctx, round, assigned)
		}
	}

	return assigned, nil
}

func (p *Pool) availableNumbers(ctx context.Context, round *models.Round) ([]int, error) {
	sold, err := p.Store.SoldNumbers(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	taken := make(map[int]bool, len(sold))
	for _, n := range sold {
		taken[n] = true
	}
	available := make([]int, 0, round.TotalTickets-len(sold))
	for n := 1; n <= round.TotalTickets; n++ {
		if !taken[n] {
			available = append(available, n)
		}
	}
	return available, nil
}

// exhausted applies the round's OnExhausted policy to tickets reserved so far.
func (p *Pool) exhausted(ctx context.Context, round *models.Round, assigned []int) ([]int, error) {
	if len(assigned) == 0 {
		return nil, models.ErrPoolExhausted
	}
	if round.OnExhausted == models.ExhaustedRollback {
		if err := p.Store.Release(ctx, round.ID, assigned); err != nil {
			return nil, fmt.Errorf("%w: rollback failed: %v", models.ErrStoreUnavailable, err)
		}
		return nil, models.ErrPoolExhausted
	}
	return assigned, models.ErrPoolExhausted
}

// failReservation rolls back partial reservations on store failure. A store
// error is never treated as a presumed success.
func (p *Pool) failReservation(ctx context.Context, round *models.Round, assigned []int, cause error) ([]int, error) {
	if len(assigned) > 0 {
		if err := p.Store.Release(ctx, round.ID, assigned); err != nil && p.Logger != nil {
			p.Logger.Error("ALLOCATION", fmt.Sprintf("release after store failure left %d tickets reserved in round %s: %v", len(assigned), round.ID, err))
		}
	}
	return nil, cause
}

func (p *Pool) shuffle(numbers []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rng.Shuffle(len(numbers), func(i, j int) {
		numbers[i], numbers[j] = numbers[j], numbers[i]
	})
}

// Release unconditionally frees tickets back to available. Administrative
// correction path, used outside the open-purchase window.
func (p *Pool) Release(ctx context.Context, roundID string, numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}
	if err := p.Store.Release(ctx, roundID, numbers); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if p.Logger != nil {
		p.Logger.Info("ALLOCATION", fmt.Sprintf("released %d tickets in round %s", len(numbers), roundID))
	}
	return nil
}

// ReleaseAll frees every sold ticket in a round. Used by round cancellation.
func (p *Pool) ReleaseAll(ctx context.Context, roundID string) error {
	sold, err := p.Store.SoldNumbers(ctx, roundID)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return p.Release(ctx, roundID, sold)
}
