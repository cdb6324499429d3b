package projection_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lottery/internal/models"
	"ms-lottery/internal/projection"
)

type fakeRounds struct {
	round *models.Round
}

func (f *fakeRounds) GetRound(_ context.Context, roundID string) (*models.Round, error) {
	if f.round == nil || f.round.ID != roundID {
		return nil, models.ErrRoundNotFound
	}
	return f.round, nil
}

type fakeTickets struct {
	counts map[string]int
	err    error
}

func (f *fakeTickets) SoldCount(_ context.Context, _ string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	total := 0
	for _, n := range f.counts {
		total += n
	}
	return total, nil
}

func (f *fakeTickets) PerUserCounts(_ context.Context, _ string) (map[string]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.counts, nil
}

func TestGetProjection(t *testing.T) {
	svc := projection.NewService(
		&fakeRounds{round: &models.Round{ID: "r1", Status: models.RoundOpen, TotalTickets: 10}},
		&fakeTickets{counts: map[string]int{"alice": 3, "bob": 1}},
	)

	view, err := svc.GetProjection(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, "r1", view.RoundID)
	assert.Equal(t, models.RoundOpen, view.Status)
	assert.Equal(t, 10, view.TotalTickets)
	assert.Equal(t, 4, view.SoldCount)
	assert.Equal(t, 6, view.UnsoldCount)
	assert.Equal(t, map[string]int{"alice": 3, "bob": 1}, view.PerUserCounts)
}

func TestGetProjectionUnknownRound(t *testing.T) {
	svc := projection.NewService(&fakeRounds{}, &fakeTickets{})

	_, err := svc.GetProjection(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrRoundNotFound)
}

func TestGetProjectionStoreFailure(t *testing.T) {
	svc := projection.NewService(
		&fakeRounds{round: &models.Round{ID: "r1", Status: models.RoundOpen, TotalTickets: 10}},
		&fakeTickets{err: errors.New("connection refused")},
	)

	_, err := svc.GetProjection(context.Background(), "r1")
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestOwnedCount(t *testing.T) {
	svc := projection.NewService(
		&fakeRounds{round: &models.Round{ID: "r1"}},
		&fakeTickets{counts: map[string]int{"alice": 2}},
	)

	owned, err := svc.OwnedCount(context.Background(), "r1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, owned)

	none, err := svc.OwnedCount(context.Background(), "r1", "stranger")
	require.NoError(t, err)
	assert.Equal(t, 0, none)
}
