package models

// RoundProjection is a read-only view derived from ticket records on demand.
// Counts are never cached as mutable counters.
type RoundProjection struct {
	RoundID       string         `json:"round_id"`
	Status        string         `json:"status"`
	TotalTickets  int            `json:"total_tickets"`
	SoldCount     int            `json:"sold_count"`
	UnsoldCount   int            `json:"unsold_count"`
	PerUserCounts map[string]int `json:"per_user_counts"`
}
