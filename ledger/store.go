package ledger

import "context"

// Store is the persistence boundary for the paper-trading ledger. The ledger
// keeps no entity state of its own: every operation is read-validate-mutate-
// persist against the store, serialized per account by the ledger's locks.
//
// Implementations report unknown keys by wrapping ErrNotFound and must apply
// a Fill atomically.
type Store interface {
	CreateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, accountID string) (Account, error)
	GetAccountByOwner(ctx context.Context, ownerID string) (Account, error)
	// ResetAccount restores the cash balance and zeroes the statistics,
	// deleting every position and order of the account in the same atomic
	// unit.
	ResetAccount(ctx context.Context, accountID string, balance float64) error

	GetPosition(ctx context.Context, accountID, symbol string) (Position, error)
	ListPositions(ctx context.Context, accountID string) ([]Position, error)

	SaveOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, accountID string) ([]Order, error)
	// ListRestingOrders returns every pending non-market order across all
	// accounts, oldest first. The matcher walks this on each tick.
	ListRestingOrders(ctx context.Context) ([]Order, error)

	ApplyFill(ctx context.Context, f Fill) error
}
