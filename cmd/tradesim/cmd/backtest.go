package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wealthpilot/tradesim/backtest"
	"github.com/wealthpilot/tradesim/market"
	"github.com/wealthpilot/tradesim/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest over simulated historical bars",
	Long: `Run a signal strategy over a historical bar series and print the
performance summary. Bars come from the deterministic simulated source, so
the same seed always reproduces the same result.

Example:
  tradesim backtest --strategy sma-cross --symbol AAPL --days 365 --seed 7`,
	RunE: runBacktest,
}

var (
	btStrategy   string
	btSymbol     string
	btDays       int
	btCapital    float64
	btCommission float64
	btSlippage   float64
	btSeed       int64
	btTradesCSV  string
	btEquityCSV  string
	btSave       bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "sma-cross", "signal strategy name")
	backtestCmd.Flags().StringVar(&btSymbol, "symbol", "AAPL", "symbol to backtest")
	backtestCmd.Flags().IntVar(&btDays, "days", 365, "number of daily bars")
	backtestCmd.Flags().Float64Var(&btCapital, "capital", 10_000, "initial capital")
	backtestCmd.Flags().Float64Var(&btCommission, "commission", 0.001, "commission rate per leg")
	backtestCmd.Flags().Float64Var(&btSlippage, "slippage", 0.0005, "slippage rate")
	backtestCmd.Flags().Int64Var(&btSeed, "seed", 1, "seed for the simulated bar source")
	backtestCmd.Flags().StringVar(&btTradesCSV, "trades-csv", "", "write trades to this CSV file")
	backtestCmd.Flags().StringVar(&btEquityCSV, "equity-csv", "", "write equity curve to this CSV file")
	backtestCmd.Flags().BoolVar(&btSave, "save", false, "persist the run to the database")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	gen, err := strategies.New(btStrategy)
	if err != nil {
		return err
	}

	source := market.NewSimulatedSource(btSeed, nil)
	ctx := context.Background()
	bars, err := source.History(ctx, btSymbol, btDays)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	cfg := backtest.Config{
		InitialCapital: btCapital,
		CommissionRate: btCommission,
		SlippageRate:   btSlippage,
	}
	result, err := backtest.Run(ctx, gen, btSymbol, bars, cfg)
	if err != nil {
		return err
	}

	if btSave {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()
		if err := s.SaveBacktest(ctx, result); err != nil {
			return fmt.Errorf("save backtest: %w", err)
		}
		fmt.Printf("Saved run %s\n\n", result.RunID)
	}

	if btTradesCSV != "" {
		if err := writeCSV(btTradesCSV, result, backtest.WriteTradesCSV); err != nil {
			return err
		}
	}
	if btEquityCSV != "" {
		if err := writeCSV(btEquityCSV, result, backtest.WriteEquityCSV); err != nil {
			return err
		}
	}

	printResult(result)
	return nil
}

func writeCSV(path string, r *backtest.Result, write func(w io.Writer, r *backtest.Result) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f, r)
}

func printResult(r *backtest.Result) {
	m := r.Metrics

	fmt.Println("==================================================")
	fmt.Println(" Backtest Result")
	fmt.Println("==================================================")
	fmt.Printf("Strategy:      %s\n", r.Strategy)
	fmt.Printf("Symbol:        %s\n", r.Symbol)
	fmt.Printf("Period:        %s .. %s\n", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	fmt.Println()
	fmt.Println("Account Performance")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Start Capital: %.2f\n", r.InitialCapital)
	fmt.Printf("End Capital:   %.2f\n", r.FinalCapital)
	fmt.Printf("Return:        %.2f%%\n", m.TotalReturn)
	fmt.Printf("Max Drawdown:  %.2f%%\n", m.MaxDrawdown)
	fmt.Printf("Sharpe Ratio:  %.2f\n", m.SharpeRatio)
	fmt.Printf("Sortino Ratio: %.2f\n", m.SortinoRatio)
	fmt.Println()
	fmt.Println("Trade Statistics")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Trades:        %d\n", m.TotalTrades)
	fmt.Printf("Wins:          %d\n", m.WinningTrades)
	fmt.Printf("Losses:        %d\n", m.LosingTrades)
	fmt.Printf("Win Rate:      %.2f%%\n", m.WinRate)
	fmt.Printf("Avg Win:       %.2f\n", m.AvgWin)
	fmt.Printf("Avg Loss:      %.2f\n", m.AvgLoss)
	fmt.Printf("Expectancy:    %.2f\n", m.Expectancy)
	if math.IsInf(m.ProfitFactor, 1) {
		fmt.Printf("Profit Factor: inf\n")
	} else {
		fmt.Printf("Profit Factor: %.2f\n", m.ProfitFactor)
	}
}
