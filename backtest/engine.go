// Package backtest replays historical bars through a signal generator and
// measures how the resulting trades would have performed.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/wealthpilot/tradesim/market"
	"github.com/wealthpilot/tradesim/strategies"
)

// WarmupBars is the minimum history a generator sees before the first
// evaluated bar. Runs with fewer bars fail with ErrInsufficientData.
const WarmupBars = 50

// ErrInsufficientData reports a bar series too short to warm up indicators.
var ErrInsufficientData = errors.New("insufficient historical data")

// Config controls a backtest run. The zero value is not usable; call
// Normalize (Run does it) to fill defaults.
type Config struct {
	InitialCapital       float64 `yaml:"initial_capital" json:"initial_capital"`
	CommissionRate       float64 `yaml:"commission_rate" json:"commission_rate"`
	SlippageRate         float64 `yaml:"slippage_rate" json:"slippage_rate"`
	PositionSizeFraction float64 `yaml:"position_size_fraction" json:"position_size_fraction"`
	MaxConcurrentLots    int     `yaml:"max_concurrent_lots" json:"max_concurrent_lots"`
}

// Normalize fills unset fields with the reference defaults.
func (c *Config) Normalize() {
	if c.InitialCapital <= 0 {
		c.InitialCapital = 10_000
	}
	if c.CommissionRate < 0 {
		c.CommissionRate = 0
	} else if c.CommissionRate == 0 {
		c.CommissionRate = 0.001
	}
	if c.SlippageRate < 0 {
		c.SlippageRate = 0
	} else if c.SlippageRate == 0 {
		c.SlippageRate = 0.0005
	}
	if c.PositionSizeFraction <= 0 || c.PositionSizeFraction > 1 {
		c.PositionSizeFraction = 1.0
	}
	if c.MaxConcurrentLots <= 0 {
		c.MaxConcurrentLots = 1
	}
}

// ZeroCostConfig returns a Config with commission and slippage disabled,
// which makes expected values in tests exact.
func ZeroCostConfig(capital float64) Config {
	return Config{
		InitialCapital:       capital,
		CommissionRate:       -1,
		SlippageRate:         -1,
		PositionSizeFraction: 1.0,
		MaxConcurrentLots:    1,
	}
}

// lot is one open simulated position inside a run.
type lot struct {
	entryIdx   int
	entryPrice float64
	shares     int64
	commission float64 // entry leg
}

// Run replays bars through gen and returns the resulting performance.
//
// The run is a pure function of (gen, symbol, bars, cfg): no clock, no
// randomness. Buys fill at close plus slippage, sells at close minus
// slippage, commission applies to both legs. Whatever is still open at the
// final bar is force-closed there.
func Run(ctx context.Context, gen strategies.SignalGenerator, symbol string, bars []market.Bar, cfg Config) (*Result, error) {
	if gen == nil {
		return nil, fmt.Errorf("backtest: signal generator is required")
	}
	if len(bars) < WarmupBars {
		return nil, fmt.Errorf("backtest %s: %d bars, need at least %d: %w",
			symbol, len(bars), WarmupBars, ErrInsufficientData)
	}
	if err := market.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("backtest %s: %w", symbol, err)
	}
	cfg.Normalize()

	cash := cfg.InitialCapital
	var open []lot
	var trades []SimulatedTrade
	curve := make([]EquityPoint, 0, len(bars)-WarmupBars)
	peak := cfg.InitialCapital

	closeLot := func(l lot, idx int, reason string) {
		exitPrice := bars[idx].Close * (1 - cfg.SlippageRate)
		proceeds := exitPrice * float64(l.shares)
		exitCommission := proceeds * cfg.CommissionRate
		cash += proceeds - exitCommission

		entryNotional := l.entryPrice * float64(l.shares)
		pl := proceeds - exitCommission - entryNotional - l.commission

		plPct := 0.0
		if entryNotional > 0 {
			plPct = pl / entryNotional * 100
		}

		trades = append(trades, SimulatedTrade{
			EntryDate:     bars[l.entryIdx].Date,
			ExitDate:      bars[idx].Date,
			EntryPrice:    l.entryPrice,
			ExitPrice:     exitPrice,
			Shares:        l.shares,
			ProfitLoss:    pl,
			ProfitLossPct: plPct,
			DurationBars:  idx - l.entryIdx,
			Commission:    l.commission + exitCommission,
			Reason:        reason,
		})
	}

	for i := WarmupBars; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sig := gen.Evaluate(symbol, bars[:i+1])
		closePx := bars[i].Close

		switch sig.Action {
		case strategies.Buy:
			if len(open) < cfg.MaxConcurrentLots {
				entryPrice := closePx * (1 + cfg.SlippageRate)
				budget := cash * cfg.PositionSizeFraction
				shares := int64(math.Floor(budget / entryPrice))
				if shares > 0 {
					notional := entryPrice * float64(shares)
					commission := notional * cfg.CommissionRate
					// Sizing ignores commission; the buy is skipped outright
					// when the commission no longer fits.
					if notional+commission <= cash {
						cash -= notional + commission
						open = append(open, lot{
							entryIdx:   i,
							entryPrice: entryPrice,
							shares:     shares,
							commission: commission,
						})
					}
				}
			}

		case strategies.Sell:
			if len(open) > 0 {
				for _, l := range open {
					closeLot(l, i, sig.Reason)
				}
				open = open[:0]
			}
		}

		equity := cash
		for _, l := range open {
			equity += closePx * float64(l.shares)
		}
		if equity > peak {
			peak = equity
		}
		dd := 0.0
		if peak > 0 && equity < peak {
			dd = (peak - equity) / peak * 100
		}
		curve = append(curve, EquityPoint{Date: bars[i].Date, Equity: equity, DrawdownPct: dd})
	}

	// Mark-to-close: force out anything still open at the last bar.
	last := len(bars) - 1
	if len(open) > 0 {
		for _, l := range open {
			closeLot(l, last, "end of data")
		}
		open = nil

		// The final curve point was appended before the forced close; redo
		// it so the curve ends on realized equity.
		equity := cash
		if equity > peak {
			peak = equity
		}
		dd := 0.0
		if peak > 0 && equity < peak {
			dd = (peak - equity) / peak * 100
		}
		curve[len(curve)-1] = EquityPoint{Date: bars[last].Date, Equity: equity, DrawdownPct: dd}
	}

	return &Result{
		Strategy:       gen.Name(),
		Symbol:         symbol,
		Start:          bars[WarmupBars].Date,
		End:            bars[last].Date,
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   cash,
		Metrics:        ComputeMetrics(trades, curve, cfg.InitialCapital),
		Trades:         trades,
		EquityCurve:    curve,
		Config:         cfg,
	}, nil
}
