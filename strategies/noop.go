package strategies

import "github.com/wealthpilot/tradesim/market"

func init() {
	Register("noop", func() SignalGenerator { return Noop{} })
}

// Noop holds forever. Useful as a baseline and in tests.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Evaluate(_ string, window []market.Bar) Signal {
	var price float64
	if len(window) > 0 {
		price = window[len(window)-1].Close
	}
	return Signal{Action: Hold, Price: price, Reason: "noop"}
}
