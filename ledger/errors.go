package ledger

import "errors"

// Stable error kinds surfaced across the engine boundary. Callers match
// with errors.Is; messages wrapped around them carry the human-readable
// detail.
var (
	ErrValidation           = errors.New("invalid order")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrNotFound             = errors.New("not found")
	ErrAccessDenied         = errors.New("access denied")
	ErrOrderNotPending      = errors.New("order is not pending")
	ErrPersistence          = errors.New("persistence failure")
)
