package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wealthpilot/tradesim/market"
)

// Clock abstracts time for the matcher so tests drive ticks directly
// instead of sleeping.
type Clock interface {
	Now() time.Time
	// After behaves like time.After.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Matcher re-evaluates resting limit/stop orders on a fixed interval. The
// book is scanned with the matcher's own quote provider, which may serve
// cached prices; a triggered order then re-fetches through the ledger's
// execution provider and fills only if it still triggers at that price. One
// failing order never blocks the rest of the book: quote errors and
// execution errors are logged per order and the order stays pending for the
// next tick (or is terminally rejected by the ledger).
type Matcher struct {
	ledger   *Ledger
	quotes   market.QuoteProvider
	interval time.Duration
	clock    Clock
	log      *slog.Logger
}

// NewMatcher builds a matcher ticking at interval (default 30s). A nil clock
// selects the wall clock; a nil logger discards nothing but logs to the
// default slog logger.
func NewMatcher(l *Ledger, quotes market.QuoteProvider, interval time.Duration, clock Clock, log *slog.Logger) *Matcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if clock == nil {
		clock = RealClock
	}
	if log == nil {
		log = slog.Default()
	}
	return &Matcher{
		ledger:   l,
		quotes:   quotes,
		interval: interval,
		clock:    clock,
		log:      log,
	}
}

// Run ticks until ctx is cancelled.
func (m *Matcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clock.After(m.interval):
			if err := m.Tick(ctx); err != nil {
				m.log.Error("matching tick failed", "err", err)
			}
		}
	}
}

// Tick walks the resting book once. The returned error covers only the book
// listing itself; per-order failures are isolated and logged.
func (m *Matcher) Tick(ctx context.Context) error {
	orders, err := m.ledger.store.ListRestingOrders(ctx)
	if err != nil {
		return fmt.Errorf("list resting orders: %w", err)
	}

	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}

		q, err := m.scanQuote(ctx, o.Symbol)
		if err != nil {
			// Transient: the order stays pending and is re-checked next tick.
			m.log.Debug("quote unavailable, skipping order",
				"order", o.ID, "symbol", o.Symbol, "err", err)
			continue
		}

		if !Triggered(o, q.Price) {
			continue
		}

		// The scan price may be cached; the fill price must come from the
		// execution provider, and the order must still trigger at it.
		exec, err := m.ledger.fetchQuote(ctx, o.Symbol)
		if err != nil {
			m.log.Debug("execution quote unavailable, skipping order",
				"order", o.ID, "symbol", o.Symbol, "err", err)
			continue
		}
		if !Triggered(o, exec.Price) {
			continue
		}

		if _, err := m.ledger.ExecuteOrder(ctx, o.ID, exec.Price); err != nil {
			if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInsufficientPosition) {
				m.log.Warn("resting order rejected at execution",
					"order", o.ID, "symbol", o.Symbol, "err", err)
			} else {
				m.log.Error("resting order execution failed",
					"order", o.ID, "symbol", o.Symbol, "err", err)
			}
			continue
		}
		m.log.Info("resting order filled",
			"order", o.ID, "symbol", o.Symbol, "side", o.Side, "type", o.Type, "price", exec.Price)
	}
	return nil
}

func (m *Matcher) scanQuote(ctx context.Context, symbol string) (market.Quote, error) {
	qctx, cancel := context.WithTimeout(ctx, m.ledger.opts.QuoteTimeout)
	defer cancel()
	return m.quotes.Quote(qctx, symbol)
}

// Triggered reports whether a resting order's condition is met at price.
//
//	limit buy:  price <= limit      limit sell: price >= limit
//	stop buy:   price >= stop       stop sell:  price <= stop
//
// A stop-limit order needs its stop condition met and the price still inside
// the limit.
func Triggered(o Order, price float64) bool {
	switch o.Type {
	case Limit:
		if o.Side == Buy {
			return price <= o.LimitPrice
		}
		return price >= o.LimitPrice
	case Stop:
		if o.Side == Buy {
			return price >= o.StopPrice
		}
		return price <= o.StopPrice
	case StopLimit:
		if o.Side == Buy {
			return price >= o.StopPrice && price <= o.LimitPrice
		}
		return price <= o.StopPrice && price >= o.LimitPrice
	}
	return false
}
