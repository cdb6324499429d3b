package allocation_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lottery/internal/allocation"
	"ms-lottery/internal/models"
)

// fakeStore is an in-memory TicketStore with the same conditional-write
// semantics as the real backends.
type fakeStore struct {
	mu      sync.Mutex
	owners  map[int]string // number -> owner
	failAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{owners: map[int]string{}}
}

func (f *fakeStore) Reserve(_ context.Context, ticket models.Ticket) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return false, errors.New("store down")
	}
	if _, taken := f.owners[ticket.Number]; taken {
		return false, nil
	}
	f.owners[ticket.Number] = ticket.OwnerID
	return true, nil
}

func (f *fakeStore) Release(_ context.Context, _ string, numbers []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range numbers {
		delete(f.owners, n)
	}
	return nil
}

func (f *fakeStore) SoldNumbers(_ context.Context, _ string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("store down")
	}
	numbers := make([]int, 0, len(f.owners))
	for n := range f.owners {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers, nil
}

func (f *fakeStore) SoldCount(ctx context.Context, roundID string) (int, error) {
	numbers, err := f.SoldNumbers(ctx, roundID)
	if err != nil {
		return 0, err
	}
	return len(numbers), nil
}

func (f *fakeStore) OwnedCount(_ context.Context, _, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, owner := range f.owners {
		if owner == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) PerUserCounts(_ context.Context, _ string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, owner := range f.owners {
		counts[owner]++
	}
	return counts, nil
}

type fakeRounds struct {
	round models.Round
}

func (f *fakeRounds) GetRound(_ context.Context, _ string) (*models.Round, error) {
	r := f.round
	return &r, nil
}

func openRound(total, maxPerUser, winners int) *fakeRounds {
	return &fakeRounds{round: models.Round{
		ID:                "round-1",
		Status:            models.RoundOpen,
		TotalTickets:      total,
		MaxTicketsPerUser: maxPerUser,
		NumberOfWinners:   winners,
		DrawPolicy:        models.DrawFromSold,
		OnExhausted:       models.ExhaustedKeep,
		CreatedAt:         time.Now(),
	}}
}

func newPool(store allocation.TicketStore, rounds allocation.RoundGetter) *allocation.Pool {
	return allocation.NewPool(store, rounds, nil, nil, 2)
}

func TestPurchaseRejectsZeroCount(t *testing.T) {
	pool := newPool(newFakeStore(), openRound(10, 3, 1))

	_, err := pool.Purchase(context.Background(), "round-1", "alice", 0, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestPurchaseRejectsClosedRound(t *testing.T) {
	rounds := openRound(10, 3, 1)
	rounds.round.Status = models.RoundClosed
	store := newFakeStore()
	pool := newPool(store, rounds)

	_, err := pool.Purchase(context.Background(), "round-1", "alice", 1, "")
	assert.ErrorIs(t, err, models.ErrRoundClosed)
	assert.Empty(t, store.owners, "a rejected purchase must not mutate any ticket")
}

func TestPurchaseAssignsUniqueNumbers(t *testing.T) {
	pool := newPool(newFakeStore(), openRound(10, 5, 1))

	assigned, err := pool.Purchase(context.Background(), "round-1", "alice", 4, "0xwallet")
	require.NoError(t, err)
	require.Len(t, assigned, 4)

	seen := map[int]bool{}
	for _, n := range assigned {
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 10)
		assert.False(t, seen[n], "number %d assigned twice", n)
		seen[n] = true
	}
}

func TestPurchaseCapsAtPerUserLimit(t *testing.T) {
	pool := newPool(newFakeStore(), openRound(10, 3, 1))

	// Requesting more than the cap grants only the cap.
	assigned, err := pool.Purchase(context.Background(), "round-1", "alice", 5, "")
	require.NoError(t, err)
	assert.Len(t, assigned, 3)

	// The cap is now used up.
	_, err = pool.Purchase(context.Background(), "round-1", "alice", 1, "")
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
}

// racingStore lands a competing same-user purchase immediately after the
// first successful reservation, after the headroom pre-read has already run.
type racingStore struct {
	*fakeStore
	user     string
	inject   []int
	injected bool
}

func (r *racingStore) Reserve(ctx context.Context, ticket models.Ticket) (bool, error) {
	ok, err := r.fakeStore.Reserve(ctx, ticket)
	if ok && !r.injected {
		r.injected = true
		for _, n := range r.inject {
			r.fakeStore.Reserve(ctx, models.Ticket{
				RoundID: ticket.RoundID,
				Number:  n,
				Status:  models.TicketSold,
				OwnerID: r.user,
			})
		}
	}
	return ok, err
}

func TestPurchaseCapRevalidatedAtWrite(t *testing.T) {
	store := &racingStore{fakeStore: newFakeStore(), user: "alice", inject: []int{101, 102, 103}}
	pool := newPool(store, openRound(10, 3, 1))

	// The pre-read sees zero owned; the competing purchase fills the cap
	// while this one is reserving. The write-time re-check must back off.
	assigned, err := pool.Purchase(context.Background(), "round-1", "alice", 3, "")
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.Empty(t, assigned)

	owned, err := store.OwnedCount(context.Background(), "round-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, owned, "the cap must hold over both purchases combined")
}

func TestPurchaseGrantsWhateverIsLeft(t *testing.T) {
	store := newFakeStore()
	pool := newPool(store, openRound(5, 5, 1))

	first, err := pool.Purchase(context.Background(), "round-1", "alice", 3, "")
	require.NoError(t, err)
	require.Len(t, first, 3)

	// Only 2 remain; requesting 5 is a partial success, not an error.
	second, err := pool.Purchase(context.Background(), "round-1", "bob", 5, "")
	assert.ErrorIs(t, err, models.ErrPoolExhausted)
	assert.Len(t, second, 2)
}

func TestPurchaseEmptyPool(t *testing.T) {
	store := newFakeStore()
	pool := newPool(store, openRound(2, 5, 1))

	_, err := pool.Purchase(context.Background(), "round-1", "alice", 2, "")
	require.NoError(t, err)

	assigned, err := pool.Purchase(context.Background(), "round-1", "bob", 1, "")
	assert.ErrorIs(t, err, models.ErrPoolExhausted)
	assert.Empty(t, assigned)
}

func TestPurchaseExhaustedRollbackPolicy(t *testing.T) {
	store := newFakeStore()
	rounds := openRound(5, 5, 1)
	rounds.round.OnExhausted = models.ExhaustedRollback
	pool := newPool(store, rounds)

	_, err := pool.Purchase(context.Background(), "round-1", "alice", 3, "")
	require.NoError(t, err)

	assigned, err := pool.Purchase(context.Background(), "round-1", "bob", 5, "")
	assert.ErrorIs(t, err, models.ErrPoolExhausted)
	assert.Empty(t, assigned, "rollback policy must release partial reservations")

	counts, err := store.PerUserCounts(context.Background(), "round-1")
	require.NoError(t, err)
	assert.Zero(t, counts["bob"])
	assert.Equal(t, 3, counts["alice"])
}

func TestPurchaseStoreFailureIsNotSuccess(t *testing.T) {
	store := newFakeStore()
	store.failAll = true
	pool := newPool(store, openRound(10, 3, 1))

	_, err := pool.Purchase(context.Background(), "round-1", "alice", 1, "")
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestReleaseFreesNumbers(t *testing.T) {
	store := newFakeStore()
	pool := newPool(store, openRound(5, 5, 1))

	assigned, err := pool.Purchase(context.Background(), "round-1", "alice", 3, "")
	require.NoError(t, err)

	require.NoError(t, pool.Release(context.Background(), "round-1", assigned))

	sold, err := store.SoldCount(context.Background(), "round-1")
	require.NoError(t, err)
	assert.Zero(t, sold)
}

func TestReleaseAllFreesEverything(t *testing.T) {
	store := newFakeStore()
	pool := newPool(store, openRound(5, 5, 1))

	_, err := pool.Purchase(context.Background(), "round-1", "alice", 2, "")
	require.NoError(t, err)
	_, err = pool.Purchase(context.Background(), "round-1", "bob", 2, "")
	require.NoError(t, err)

	require.NoError(t, pool.ReleaseAll(context.Background(), "round-1"))

	sold, err := store.SoldCount(context.Background(), "round-1")
	require.NoError(t, err)
	assert.Zero(t, sold)
}
