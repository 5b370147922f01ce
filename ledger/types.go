// Package ledger implements the paper-trading account: order submission and
// cancellation, simulated execution against live quotes, position arithmetic,
// and the background matcher that fills resting limit/stop orders.
package ledger

import "time"

// Side is the order direction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderType selects the execution trigger.
type OrderType string

const (
	Market    OrderType = "market"
	Limit     OrderType = "limit"
	Stop      OrderType = "stop"
	StopLimit OrderType = "stop_limit"
)

// OrderStatus is the order state machine: pending -> filled | cancelled.
// Both filled and cancelled are terminal.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled
}

// Account is one owner's paper-trading balance and realized statistics.
// Exactly zero or one Account exists per owner. Mutated only through order
// execution or Reset.
type Account struct {
	ID               string
	OwnerID          string
	CashBalance      float64
	InitialBalance   float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	TotalRealizedPnl float64
	CreatedAt        time.Time
}

// Position is an open long holding. At most one per (account, symbol);
// deleted when quantity reaches zero. AvgCost is the quantity-weighted
// average entry price of the unclosed lots and is never negative.
type Position struct {
	AccountID string
	Symbol    string
	Quantity  int64
	AvgCost   float64
	UpdatedAt time.Time
}

// Order is a submitted paper order. SubmittedPrice is the quote observed at
// submission; Filled* fields are set only on execution.
type Order struct {
	ID        string
	AccountID string
	Symbol    string
	Side      Side
	Type      OrderType
	Quantity  int64

	LimitPrice float64 // 0 when unset
	StopPrice  float64 // 0 when unset

	Status         OrderStatus
	SubmittedPrice float64
	FilledPrice    float64
	FilledQuantity int64
	FilledAt       time.Time
	Commission     float64

	CreatedAt time.Time
}

// Resting reports whether the order sits in the book waiting for the
// matcher: pending and not a market order.
func (o Order) Resting() bool {
	return o.Status == StatusPending && o.Type != Market
}

// OrderRequest is the caller-supplied portion of an order.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   int64
	LimitPrice float64
	StopPrice  float64
}

// Fill bundles the combined mutation of one execution: the filled order, the
// updated account, and the updated (or removed) position. Stores must apply
// it atomically — a partially applied fill is a correctness bug.
type Fill struct {
	Order          Order
	Account        Account
	Position       Position
	RemovePosition bool
}
