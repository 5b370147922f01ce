// Package strategies defines the signal-generator contract the simulation
// engine consumes, and a registry of the generators that ship with the CLI.
package strategies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wealthpilot/tradesim/market"
)

// Action classifies a signal.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Signal is the output of a generator for one bar. The engine treats it as
// opaque input: it acts on Action and records Reason, nothing else.
type Signal struct {
	Action     Action
	Price      float64
	Confidence float64 // 0..1
	Reason     string
}

// SignalGenerator evaluates a window of historical bars ending at the
// current bar and classifies it. Implementations must be pure functions of
// the window: no clocks, no RNG, no external calls. Backtest determinism
// depends on it.
type SignalGenerator interface {
	Name() string
	Evaluate(symbol string, window []market.Bar) Signal
}

var registry = make(map[string]func() SignalGenerator)

// Register makes a generator constructor available by name.
func Register(name string, fn func() SignalGenerator) {
	registry[name] = fn
}

// New constructs a registered generator by name.
func New(name string) (SignalGenerator, error) {
	fn, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if ok {
		return fn(), nil
	}
	return nil, fmt.Errorf("unknown strategy %q (available: %s)", name, strings.Join(Names(), ", "))
}

// Names lists registered generators, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
