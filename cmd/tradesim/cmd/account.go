package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the paper-trading account",
	Long: `Open, inspect and reset the paper-trading account.

Examples:
  tradesim account open --owner alice --balance 10000
  tradesim account show --owner alice
  tradesim account positions --owner alice
  tradesim account reset --owner alice`,
}

var accountOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a paper-trading account",
	RunE:  runAccountOpen,
}

var accountShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show account balance and performance",
	RunE:  runAccountShow,
}

var accountPositionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions",
	RunE:  runAccountPositions,
}

var accountResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the account to its initial balance, deleting all positions and orders",
	RunE:  runAccountReset,
}

var (
	acctOwner   string
	acctBalance float64
)

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountOpenCmd)
	accountCmd.AddCommand(accountShowCmd)
	accountCmd.AddCommand(accountPositionsCmd)
	accountCmd.AddCommand(accountResetCmd)

	accountCmd.PersistentFlags().StringVar(&acctOwner, "owner", "demo", "account owner id")
	accountOpenCmd.Flags().Float64Var(&acctBalance, "balance", 10_000, "opening cash balance")
}

func runAccountOpen(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	l, _, err := newLedger(s)
	if err != nil {
		return err
	}

	a, err := l.OpenAccount(context.Background(), acctOwner, acctBalance)
	if err != nil {
		return err
	}
	fmt.Printf("Opened account %s for %s with balance %.2f\n", a.ID, a.OwnerID, a.CashBalance)
	return nil
}

func runAccountShow(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	l, _, err := newLedger(s)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := l.AccountByOwner(ctx, acctOwner)
	if err != nil {
		return err
	}
	p, err := l.Performance(ctx, acctOwner, a.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Account:       %s (owner %s)\n", a.ID, a.OwnerID)
	fmt.Printf("Cash:          %.2f\n", p.CashBalance)
	fmt.Printf("Positions:     %.2f\n", p.PositionsValue)
	fmt.Printf("Equity:        %.2f\n", p.Equity)
	fmt.Printf("Return:        %.2f%%\n", p.TotalReturnPct)
	fmt.Printf("Trades:        %d (W %d / L %d, win rate %.1f%%)\n",
		p.TotalTrades, p.WinningTrades, p.LosingTrades, p.WinRate)
	fmt.Printf("Realized P/L:  %.2f\n", p.RealizedPnl)
	return nil
}

func runAccountPositions(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	l, _, err := newLedger(s)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := l.AccountByOwner(ctx, acctOwner)
	if err != nil {
		return err
	}
	positions, err := l.Positions(ctx, acctOwner, a.ID)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Println("No open positions")
		return nil
	}
	fmt.Printf("%-8s %10s %12s\n", "SYMBOL", "QTY", "AVG COST")
	for _, p := range positions {
		fmt.Printf("%-8s %10d %12.2f\n", p.Symbol, p.Quantity, p.AvgCost)
	}
	return nil
}

func runAccountReset(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	l, _, err := newLedger(s)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := l.AccountByOwner(ctx, acctOwner)
	if err != nil {
		return err
	}
	if err := l.Reset(ctx, acctOwner, a.ID); err != nil {
		return err
	}
	fmt.Printf("Account %s reset to %.2f\n", a.ID, a.InitialBalance)
	return nil
}
