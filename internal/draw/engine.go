package draw

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"time"

	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
)

type ResultStore interface {
	GetResult(ctx context.Context, roundID string) (*models.DrawResult, error)
	CreateResult(ctx context.Context, result models.DrawResult) (bool, error)
}

type RoundStore interface {
	GetRound(ctx context.Context, id string) (*models.Round, error)
	TransitionStatus(ctx context.Context, id, from, to string) (bool, error)
}

type TicketReader interface {
	SoldNumbers(ctx context.Context, roundID string) ([]int, error)
}

type EventPublisher interface {
	PublishWinnersDrawn(result models.DrawResult) error
}

// Engine selects a round's winners. Sampling is a seeded partial
// Fisher-Yates shuffle: the recorded seed replays the exact draw, and the
// published SHA-256 commitment lets an auditor verify the seed was not swapped
// after the fact.
type Engine struct {
	Results ResultStore
	Rounds  RoundStore
	Tickets TicketReader
	Kafka   EventPublisher
	Logger  *logger.Logger

	// Now is the clock used for end-time checks. Overridable in tests.
	Now func() time.Time

	// seedFunc produces the draw seed. Defaults to crypto/rand; fixed in tests.
	seedFunc func() ([]byte, error)
}

func NewEngine(results ResultStore, rounds RoundStore, tickets TicketReader, kafka EventPublisher, log *logger.Logger) *Engine {
	return &Engine{
		Results: results,
		Rounds:  rounds,
		Tickets: tickets,
		Kafka:   kafka,
		Logger:  log,
		Now:     time.Now,
		seedFunc: func() ([]byte, error) {
			seed := make([]byte, 32)
			_, err := rand.Read(seed)
			return seed, err
		},
	}
}

// Draw commits the winners of a closed round. Once a result exists it is
// replayed unchanged on every later call; the draw never recomputes.
func (e *Engine) Draw(ctx context.Context, roundID string) (*models.DrawResult, error) {
	existing, err := e.Results.GetResult(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if existing != nil {
		// Repair the status transition if a previous draw crashed between
		// committing the result and marking the round drawn.
		if _, err := e.Rounds.TransitionStatus(ctx, roundID, models.RoundClosed, models.RoundDrawn); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		return existing, nil
	}

	round, err := e.Rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.Status == models.RoundOpen && round.PastEnd(e.Now()) {
		// An open round whose window has elapsed closes on read, the same way
		// round reads through the service apply it. Losing the CAS means
		// another caller closed it first; either way the round is closed.
		if _, err := e.Rounds.TransitionStatus(ctx, roundID, models.RoundOpen, models.RoundClosed); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		round.Status = models.RoundClosed
	}
	if round.Status != models.RoundClosed {
		return nil, fmt.Errorf("%w: round %s is %s", models.ErrRoundNotClosed, roundID, round.Status)
	}

	eligible, err := e.eligibleNumbers(ctx, round)
	if err != nil {
		return nil, err
	}
	if len(eligible) < round.NumberOfWinners {
		return nil, fmt.Errorf("%w: %d eligible, %d winners wanted", models.ErrInsufficientPool, len(eligible), round.NumberOfWinners)
	}

	seed, err := e.seedFunc()
	if err != nil {
		return nil, fmt.Errorf("draw seed: %w", err)
	}
	commitment := sha256.Sum256(seed)

	result := models.DrawResult{
		RoundID:        roundID,
		WinningNumbers: sampleWinners(eligible, round.NumberOfWinners, seed),
		Seed:           hex.EncodeToString(seed),
		SeedCommitment: hex.EncodeToString(commitment[:]),
		DrawnAt:        time.Now().UTC(),
	}

	created, err := e.Results.CreateResult(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if !created {
		// A concurrent draw committed first; its result is the round's result.
		committed, err := e.Results.GetResult(ctx, roundID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		if _, err := e.Rounds.TransitionStatus(ctx, roundID, models.RoundClosed, models.RoundDrawn); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		return committed, nil
	}

	if _, err := e.Rounds.TransitionStatus(ctx, roundID, models.RoundClosed, models.RoundDrawn); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	if e.Logger != nil {
		e.Logger.LogDraw(roundID, fmt.Sprintf("drew %d winners from %d eligible", len(result.WinningNumbers), len(eligible)))
	}
	if e.Kafka != nil {
		if err := e.Kafka.PublishWinnersDrawn(result); err != nil && e.Logger != nil {
			e.Logger.Error("KAFKA", fmt.Sprintf("winners-drawn publish failed for round %s: %v", roundID, err))
		}
	}
	return &result, nil
}

// eligibleNumbers builds the set the draw samples from according to the
// round's fixed policy: sold tickets only, or the full numbering space.
func (e *Engine) eligibleNumbers(ctx context.Context, round *models.Round) ([]int, error) {
	if round.DrawPolicy == models.DrawFromAll {
		numbers := make([]int, round.TotalTickets)
		for i := range numbers {
			numbers[i] = i + 1
		}
		return numbers, nil
	}
	sold, err := e.Tickets.SoldNumbers(ctx, round.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return sold, nil
}

// sampleWinners draws count distinct elements uniformly from eligible using a
// partial Fisher-Yates shuffle seeded from the first eight seed bytes. The
// same seed and eligible set always reproduce the same winners.
func sampleWinners(eligible []int, count int, seed []byte) []int {
	pool := make([]int, len(eligible))
	copy(pool, eligible)

	rng := mrand.New(mrand.NewSource(int64(binary.BigEndian.Uint64(seed[:8]))))
	for i := 0; i < count; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count]
}
