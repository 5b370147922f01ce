package backtest

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"
)

// WriteTradesCSV writes the run's trade list as CSV.
func WriteTradesCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{
		"entry_date", "exit_date", "entry_price", "exit_price",
		"shares", "profit_loss", "profit_loss_pct", "duration_bars", "commission", "reason",
	}); err != nil {
		return err
	}

	for _, t := range r.Trades {
		if err := cw.Write([]string{
			t.EntryDate.Format(time.DateOnly),
			t.ExitDate.Format(time.DateOnly),
			f(t.EntryPrice),
			f(t.ExitPrice),
			strconv.FormatInt(t.Shares, 10),
			f(t.ProfitLoss),
			f(t.ProfitLossPct),
			strconv.Itoa(t.DurationBars),
			f(t.Commission),
			t.Reason,
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the run's equity curve as CSV.
func WriteEquityCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"date", "equity", "drawdown_pct"}); err != nil {
		return err
	}
	for _, p := range r.EquityCurve {
		if err := cw.Write([]string{
			p.Date.Format(time.DateOnly),
			f(p.Equity),
			f(p.DrawdownPct),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	if math.IsInf(x, 1) {
		return "inf"
	}
	return strconv.FormatFloat(x, 'f', 6, 64)
}
