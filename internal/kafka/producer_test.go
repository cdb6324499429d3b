package kafka

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lottery/internal/models"
)

func mockProducerWithBuffer() (*Producer, *bytes.Buffer) {
	var buf bytes.Buffer
	p := NewMockProducer()
	p.Logger = log.New(&buf, "", 0)
	return p, &buf
}

func TestMockProducerLogsRoundEvent(t *testing.T) {
	p, buf := mockProducerWithBuffer()

	round := models.Round{ID: "r1", Status: models.RoundOpen, TotalTickets: 10}
	require.NoError(t, p.PublishRoundEvent("round_opened", round))

	out := buf.String()
	assert.Contains(t, out, TopicRoundEvents)
	assert.Contains(t, out, "round_opened")
	assert.Contains(t, out, `"r1"`)
}

func TestMockProducerLogsTicketsSold(t *testing.T) {
	p, buf := mockProducerWithBuffer()

	require.NoError(t, p.PublishTicketsSold("r1", "alice", []int{3, 7}))

	out := buf.String()
	assert.Contains(t, out, TopicTicketsSold)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "[3,7]")
}

func TestMockProducerLogsWinnersDrawn(t *testing.T) {
	p, buf := mockProducerWithBuffer()

	result := models.DrawResult{
		RoundID:        "r1",
		WinningNumbers: []int{4, 9},
		Seed:           "deadbeef",
		SeedCommitment: "cafef00d",
		DrawnAt:        time.Now().UTC(),
	}
	require.NoError(t, p.PublishWinnersDrawn(result))

	out := buf.String()
	assert.Contains(t, out, TopicWinnersDrawn)
	assert.Contains(t, out, "[4,9]")
	assert.Contains(t, out, "deadbeef")
}

func TestMockProducerCloseIsSafe(t *testing.T) {
	p := NewMockProducer()
	assert.NoError(t, p.Close())
}
