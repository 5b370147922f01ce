package strategies

import (
	"fmt"

	"github.com/wealthpilot/tradesim/market"
)

func init() {
	Register("sma-cross", func() SignalGenerator { return NewSMACross(10, 30) })
}

// SMACross signals BUY when the fast simple moving average crosses above the
// slow one, SELL when it crosses below, HOLD otherwise. Crosses are detected
// by comparing the current bar's fast/slow ordering with the previous bar's,
// so the generator stays stateless across calls.
type SMACross struct {
	fastPeriod int
	slowPeriod int
}

func NewSMACross(fast, slow int) *SMACross {
	return &SMACross{fastPeriod: fast, slowPeriod: slow}
}

func (s *SMACross) Name() string {
	return fmt.Sprintf("sma-cross(%d,%d)", s.fastPeriod, s.slowPeriod)
}

// sma computes the simple moving average of the closes ending at index end
// (inclusive). Returns false when the window has too little history.
func sma(window []market.Bar, end, period int) (float64, bool) {
	if period <= 0 || end+1 < period {
		return 0, false
	}
	var sum float64
	for i := end - period + 1; i <= end; i++ {
		sum += window[i].Close
	}
	return sum / float64(period), true
}

func (s *SMACross) Evaluate(_ string, window []market.Bar) Signal {
	last := len(window) - 1
	if last < 0 {
		return Signal{Action: Hold, Reason: "no data"}
	}
	close := window[last].Close

	fastNow, ok1 := sma(window, last, s.fastPeriod)
	slowNow, ok2 := sma(window, last, s.slowPeriod)
	fastPrev, ok3 := sma(window, last-1, s.fastPeriod)
	slowPrev, ok4 := sma(window, last-1, s.slowPeriod)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Signal{Action: Hold, Price: close, Reason: "warming up"}
	}

	switch {
	case fastPrev <= slowPrev && fastNow > slowNow:
		return Signal{
			Action:     Buy,
			Price:      close,
			Confidence: crossConfidence(fastNow, slowNow),
			Reason:     fmt.Sprintf("fast SMA %.2f crossed above slow %.2f", fastNow, slowNow),
		}
	case fastPrev >= slowPrev && fastNow < slowNow:
		return Signal{
			Action:     Sell,
			Price:      close,
			Confidence: crossConfidence(fastNow, slowNow),
			Reason:     fmt.Sprintf("fast SMA %.2f crossed below slow %.2f", fastNow, slowNow),
		}
	}
	return Signal{Action: Hold, Price: close, Reason: "no cross"}
}

// crossConfidence maps the relative separation of the averages to (0,1].
// A wider gap right after a cross reads as a stronger signal.
func crossConfidence(fast, slow float64) float64 {
	if slow == 0 {
		return 0.5
	}
	gap := (fast - slow) / slow
	if gap < 0 {
		gap = -gap
	}
	c := 0.5 + gap*50
	if c > 1 {
		c = 1
	}
	return c
}
