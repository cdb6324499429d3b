package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket statuses.
const (
	TicketAvailable = "available"
	TicketSold      = "sold"
)

// Ticket is one numbered slot in a round's 1..TotalTickets capacity. A sold
// ticket has exactly one owner; the (round_id, number) key is what the
// conditional reservation write protects.
type Ticket struct {
	bun.BaseModel `bun:"table:lottery_tickets"`

	RoundID       string    `bun:"round_id,pk" json:"round_id"`
	Number        int       `bun:"number,pk" json:"number"`
	Status        string    `bun:"status,notnull" json:"status"`
	OwnerID       string    `bun:"owner_id,nullzero" json:"owner_id,omitempty"`
	WalletAddress string    `bun:"wallet_address,nullzero" json:"wallet_address,omitempty"`
	PurchasedAt   time.Time `bun:"purchased_at,nullzero" json:"purchased_at,omitempty"`
}

type PurchaseRequest struct {
	Count         int    `json:"count"`
	WalletAddress string `json:"wallet_address"`
}

type PurchaseResponse struct {
	RoundID         string `json:"round_id"`
	UserID          string `json:"user_id"`
	AssignedNumbers []int  `json:"assigned_numbers"`
	Requested       int    `json:"requested"`
}
