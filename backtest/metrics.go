package backtest

import "math"

// tradingDaysPerYear annualizes the per-bar Sharpe ratio for daily bars.
const tradingDaysPerYear = 252

// Metrics summarizes a trade list and equity curve. Percentages are in
// percent units (10.0 == 10%); AvgLoss is a positive magnitude.
type Metrics struct {
	TotalReturn   float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	AvgWin        float64
	AvgLoss       float64
	GrossProfit   float64
	GrossLoss     float64
	ProfitFactor  float64 // +Inf when grossLoss is 0 and grossProfit > 0
	Expectancy    float64
	MaxDrawdown   float64
	SharpeRatio   float64
	SortinoRatio  float64
}

// ComputeMetrics derives performance statistics from a completed run.
// With zero trades every ratio reports 0; no NaN or panic escapes, whatever
// the inputs.
func ComputeMetrics(trades []SimulatedTrade, curve []EquityPoint, initialCapital float64) Metrics {
	var m Metrics

	finalEquity := initialCapital
	if len(curve) > 0 {
		finalEquity = curve[len(curve)-1].Equity
	}
	if initialCapital > 0 {
		m.TotalReturn = (finalEquity - initialCapital) / initialCapital * 100
	}

	m.TotalTrades = len(trades)
	if m.TotalTrades == 0 {
		return m
	}

	var winSum, lossSum float64
	for _, t := range trades {
		m.Expectancy += t.ProfitLoss
		if t.ProfitLoss > 0 {
			m.WinningTrades++
			winSum += t.ProfitLoss
		} else if t.ProfitLoss < 0 {
			m.LosingTrades++
			lossSum += -t.ProfitLoss
		}
	}
	m.Expectancy /= float64(m.TotalTrades)
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	m.GrossProfit = winSum
	m.GrossLoss = lossSum

	if m.WinningTrades > 0 {
		m.AvgWin = winSum / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = lossSum / float64(m.LosingTrades)
	}

	switch {
	case lossSum == 0 && winSum > 0:
		m.ProfitFactor = math.Inf(1)
	case lossSum > 0:
		m.ProfitFactor = winSum / lossSum
	}

	m.MaxDrawdown = maxDrawdown(curve)
	m.SharpeRatio = sharpe(curve)
	m.SortinoRatio = sortino(curve)

	return m
}

// maxDrawdown is the largest percentage decline from the running equity peak.
func maxDrawdown(curve []EquityPoint) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// stepReturns converts the equity curve to per-step simple returns.
func stepReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

// sharpe annualizes mean/stddev of per-step equity returns. A flat curve has
// zero variance and reports 0.
func sharpe(curve []EquityPoint) float64 {
	returns := stepReturns(curve)
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// sortino is sharpe with only downside deviation in the denominator: negative
// steps count, positive ones do not hurt the score. Zero when the curve has
// no losing step.
func sortino(curve []EquityPoint) float64 {
	returns := stepReturns(curve)
	if len(returns) == 0 {
		return 0
	}

	var mean, downside float64
	for _, r := range returns {
		mean += r
		if r < 0 {
			downside += r * r
		}
	}
	mean /= float64(len(returns))
	downside /= float64(len(returns))

	dd := math.Sqrt(downside)
	if dd == 0 {
		return 0
	}
	return mean / dd * math.Sqrt(tradingDaysPerYear)
}
