// Package store persists the trading entities: accounts, positions, orders
// and backtest results. The in-memory implementation backs tests and
// short-lived simulations; the SQLite implementation is the durable one.
package store

import (
	"context"
	"errors"

	"github.com/wealthpilot/tradesim/backtest"
)

// ErrNotFound is wrapped by both implementations for unknown keys. The
// ledger translates it into its own boundary error.
var ErrNotFound = errors.New("not found")

// BacktestStore archives completed backtest runs.
type BacktestStore interface {
	// SaveBacktest persists the run, assigning RunID and Created if unset.
	SaveBacktest(ctx context.Context, r *backtest.Result) error
	// GetBacktest loads a run with its full trade list and equity curve.
	GetBacktest(ctx context.Context, runID string) (*backtest.Result, error)
	// ListBacktests returns run summaries (no trades or curve), newest first.
	ListBacktests(ctx context.Context) ([]backtest.Result, error)
}
