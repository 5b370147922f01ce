package ledger

import (
	"context"
	"time"
)

// Performance is a point-in-time rollup of an account: realized statistics
// from the account row plus open positions marked at current quotes.
type Performance struct {
	AccountID      string
	AsOf           time.Time
	CashBalance    float64
	PositionsValue float64
	Equity         float64
	TotalReturnPct float64
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64 // percent; 0 with no trades
	RealizedPnl    float64
}

// Performance computes the account summary. Positions whose quote is
// unavailable are marked at average cost, which understates or overstates
// equity but never fails the whole summary.
func (l *Ledger) Performance(ctx context.Context, ownerID, accountID string) (Performance, error) {
	a, err := l.ownedAccount(ctx, ownerID, accountID)
	if err != nil {
		return Performance{}, err
	}
	positions, err := l.store.ListPositions(ctx, accountID)
	if err != nil {
		return Performance{}, err
	}

	p := Performance{
		AccountID:     a.ID,
		AsOf:          l.opts.Now(),
		CashBalance:   a.CashBalance,
		TotalTrades:   a.TotalTrades,
		WinningTrades: a.WinningTrades,
		LosingTrades:  a.LosingTrades,
		RealizedPnl:   a.TotalRealizedPnl,
	}

	for _, pos := range positions {
		mark := pos.AvgCost
		if q, err := l.fetchQuote(ctx, pos.Symbol); err == nil {
			mark = q.Price
		}
		p.PositionsValue += mark * float64(pos.Quantity)
	}

	p.Equity = p.CashBalance + p.PositionsValue
	if a.InitialBalance > 0 {
		p.TotalReturnPct = (p.Equity - a.InitialBalance) / a.InitialBalance * 100
	}
	if a.TotalTrades > 0 {
		p.WinRate = float64(a.WinningTrades) / float64(a.TotalTrades) * 100
	}
	return p, nil
}
