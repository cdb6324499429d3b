package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DrawResult is the committed outcome of a round's draw. At most one exists
// per round; repeat draw calls replay it unchanged.
type DrawResult struct {
	bun.BaseModel `bun:"table:draw_results"`

	RoundID        string    `bun:"round_id,pk" json:"round_id"`
	WinningNumbers []int     `bun:"winning_numbers" json:"winning_numbers"`
	Seed           string    `bun:"seed,notnull" json:"seed"`
	SeedCommitment string    `bun:"seed_commitment,notnull" json:"seed_commitment"`
	DrawnAt        time.Time `bun:"drawn_at,notnull" json:"drawn_at"`
}
