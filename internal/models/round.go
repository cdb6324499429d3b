package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Round statuses. Transitions are monotonic: a closed round never reopens.
const (
	RoundConfiguring = "configuring"
	RoundOpen        = "open"
	RoundClosed      = "closed"
	RoundDrawn       = "drawn"
	RoundArchived    = "archived"
)

// Draw eligibility policies. Which numbers a draw samples from is fixed per
// round at configuration time, never inferred from the sold state.
const (
	DrawFromSold = "sold" // winners come from sold ticket numbers only
	DrawFromAll  = "all"  // winners come from the full 1..TotalTickets range
)

// Policies for tickets already reserved when a purchase runs the pool dry.
const (
	ExhaustedKeep     = "keep"     // partial success: caller keeps what was reserved
	ExhaustedRollback = "rollback" // reserved tickets are released before returning
)

type Round struct {
	bun.BaseModel `bun:"table:rounds"`

	ID                string    `bun:"id,pk" json:"id"`
	Status            string    `bun:"status,notnull" json:"status"`
	TotalTickets      int       `bun:"total_tickets,notnull" json:"total_tickets"`
	MaxTicketsPerUser int       `bun:"max_tickets_per_user,notnull" json:"max_tickets_per_user"`
	NumberOfWinners   int       `bun:"number_of_winners,notnull" json:"number_of_winners"`
	TicketPrice       float64   `bun:"ticket_price" json:"ticket_price"`
	Prize             string    `bun:"prize" json:"prize"`
	DrawPolicy        string    `bun:"draw_policy,notnull" json:"draw_policy"`
	OnExhausted       string    `bun:"on_exhausted,notnull" json:"on_exhausted"`
	StartTime         time.Time `bun:"start_time,nullzero" json:"start_time"`
	EndTime           time.Time `bun:"end_time,nullzero" json:"end_time"`
	CreatedAt         time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

type RoundRequest struct {
	TotalTickets      int       `json:"total_tickets"`
	MaxTicketsPerUser int       `json:"max_tickets_per_user"`
	NumberOfWinners   int       `json:"number_of_winners"`
	TicketPrice       float64   `json:"ticket_price"`
	Prize             string    `json:"prize"`
	DrawPolicy        string    `json:"draw_policy"`
	OnExhausted       string    `json:"on_exhausted"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
}

// Closed reports whether the round no longer accepts purchases.
func (r *Round) Closed() bool {
	return r.Status != RoundOpen
}

// PastEnd reports whether the round's end time has elapsed at the given instant.
func (r *Round) PastEnd(now time.Time) bool {
	return !r.EndTime.IsZero() && now.After(r.EndTime)
}
