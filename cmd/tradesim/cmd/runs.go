package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Query saved backtest runs",
	Long: `List saved backtest runs or show one in full.

Examples:
  tradesim runs list
  tradesim runs show <run-id>`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved backtest runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one backtest run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListBacktests(context.Background())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No saved runs")
		return nil
	}

	fmt.Printf("%-26s %-20s %-8s %10s %8s\n", "RUN ID", "STRATEGY", "SYMBOL", "RETURN%", "TRADES")
	for _, r := range runs {
		fmt.Printf("%-26s %-20s %-8s %10.2f %8d\n",
			r.RunID, r.Strategy, r.Symbol, r.Metrics.TotalReturn, r.Metrics.TotalTrades)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.GetBacktest(context.Background(), args[0])
	if err != nil {
		return err
	}

	printResult(r)
	fmt.Println()
	fmt.Printf("Created:       %s\n", r.Created.Format(time.RFC3339))
	fmt.Printf("Equity points: %d\n", len(r.EquityCurve))
	return nil
}
