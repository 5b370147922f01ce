package backtest

import "time"

// SimulatedTrade is one closed round-trip produced by a backtest run.
// Immutable once appended to a Result.
type SimulatedTrade struct {
	EntryDate     time.Time
	ExitDate      time.Time
	EntryPrice    float64
	ExitPrice     float64
	Shares        int64
	ProfitLoss    float64
	ProfitLossPct float64
	DurationBars  int
	Commission    float64 // both legs
	Reason        string
}

// EquityPoint records total account value at one bar: cash plus open
// position value marked at the bar close.
type EquityPoint struct {
	Date        time.Time
	Equity      float64
	DrawdownPct float64 // decline from the running equity peak
}

// Result is the complete output of one backtest run. RunID and Created are
// assigned at persistence time so Run itself stays a pure function of its
// inputs.
type Result struct {
	RunID    string
	Created  time.Time
	Strategy string
	Symbol   string
	Start    time.Time
	End      time.Time

	InitialCapital float64
	FinalCapital   float64

	Metrics     Metrics
	Trades      []SimulatedTrade
	EquityCurve []EquityPoint
	Config      Config
}
