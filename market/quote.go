package market

import (
	"context"
	"errors"
	"time"
)

// ErrQuoteUnavailable reports that no quote could be produced for a symbol.
// It is transient: callers in the matching loop skip the order and retry on
// the next tick, interactive callers surface it to the user.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// Quote is a point-in-time price observation for a symbol.
type Quote struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// QuoteProvider is the live market-data collaborator. Implementations must
// honour ctx cancellation; a nil-priced or missing quote is reported as
// ErrQuoteUnavailable, never as a zero Quote with nil error.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// BarProvider supplies historical OHLCV series for backtesting.
type BarProvider interface {
	History(ctx context.Context, symbol string, days int) ([]Bar, error)
}
