// Package market holds the shared market-data types consumed by the
// backtest simulator and the paper-trading ledger, plus a deterministic
// simulated source for running either without network access.
package market

import (
	"fmt"
	"time"
)

// Bar is one OHLCV observation for a fixed interval. Bars are supplied by an
// external data source, chronologically ordered, and never mutated by the
// engine.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// ValidateBars checks that a bar series is chronologically ordered with
// positive prices. It does not try to detect gaps; the feed owns that.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		if b.Close <= 0 || b.Open <= 0 {
			return fmt.Errorf("bar %d (%s): non-positive price", i, b.Date.Format("2006-01-02"))
		}
		if i > 0 && !bars[i-1].Date.Before(b.Date) {
			return fmt.Errorf("bar %d (%s): out of order", i, b.Date.Format("2006-01-02"))
		}
	}
	return nil
}
