package models

import "errors"

// Stable error kinds surfaced by the lottery core. Handlers map these to HTTP
// statuses with errors.Is; they are never matched by message text.
var (
	ErrValidation       = errors.New("invalid round configuration")
	ErrRoundNotFound    = errors.New("round not found")
	ErrRoundClosed      = errors.New("round is not open for purchases")
	ErrRoundNotClosed   = errors.New("round is not closed")
	ErrCapacityExceeded = errors.New("per-user ticket cap exceeded")
	ErrPoolExhausted    = errors.New("no unsold tickets remain")
	ErrInsufficientPool = errors.New("eligible pool smaller than number of winners")
	ErrStoreUnavailable = errors.New("ticket store unavailable")
)
