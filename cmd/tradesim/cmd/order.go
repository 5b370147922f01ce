package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wealthpilot/tradesim/ledger"
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Place, cancel and list paper orders",
	Long: `Submit paper orders against the account. Market orders fill
immediately at the current quote; limit/stop orders rest until the matcher
triggers them.

Examples:
  tradesim order place --owner alice --symbol AAPL --side buy --qty 10
  tradesim order place --owner alice --symbol AAPL --side sell --type limit --qty 10 --limit 195.50
  tradesim order cancel <order-id> --owner alice
  tradesim order list --owner alice`,
}

var orderPlaceCmd = &cobra.Command{
	Use:   "place",
	Short: "Place an order",
	RunE:  runOrderPlace,
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel <order-id>",
	Short: "Cancel a pending order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderCancel,
}

var orderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders",
	RunE:  runOrderList,
}

var (
	ordSymbol string
	ordSide   string
	ordType   string
	ordQty    int64
	ordLimit  float64
	ordStop   float64
)

func init() {
	rootCmd.AddCommand(orderCmd)
	orderCmd.AddCommand(orderPlaceCmd)
	orderCmd.AddCommand(orderCancelCmd)
	orderCmd.AddCommand(orderListCmd)

	orderCmd.PersistentFlags().StringVar(&acctOwner, "owner", "demo", "account owner id")

	orderPlaceCmd.Flags().StringVar(&ordSymbol, "symbol", "", "symbol (required)")
	orderPlaceCmd.Flags().StringVar(&ordSide, "side", "buy", "buy or sell")
	orderPlaceCmd.Flags().StringVar(&ordType, "type", "market", "market, limit, stop or stop_limit")
	orderPlaceCmd.Flags().Int64Var(&ordQty, "qty", 0, "quantity (required)")
	orderPlaceCmd.Flags().Float64Var(&ordLimit, "limit", 0, "limit price")
	orderPlaceCmd.Flags().Float64Var(&ordStop, "stop", 0, "stop price")
	orderPlaceCmd.MarkFlagRequired("symbol")
	orderPlaceCmd.MarkFlagRequired("qty")
}

func runOrderPlace(cmd *cobra.Command, args []string) error {
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

	o, err := l.PlaceOrder(ctx, acctOwner, a.ID, ledger.OrderRequest{
		Symbol:     ordSymbol,
		Side:       ledger.Side(ordSide),
		Type:       ledger.OrderType(ordType),
		Quantity:   ordQty,
		LimitPrice: ordLimit,
		StopPrice:  ordStop,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Order %s: %s %d %s (%s) status=%s\n",
		o.ID, o.Side, o.Quantity, o.Symbol, o.Type, o.Status)
	if o.Status == ledger.StatusFilled {
		fmt.Printf("Filled at %.2f\n", o.FilledPrice)
	} else {
		fmt.Printf("Resting; submitted at reference price %.2f\n", o.SubmittedPrice)
	}
	return nil
}

func runOrderCancel(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	l, _, err := newLedger(s)
	if err != nil {
		return err
	}

	o, err := l.CancelOrder(context.Background(), acctOwner, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Order %s cancelled\n", o.ID)
	return nil
}

func runOrderList(cmd *cobra.Command, args []string) error {
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
	orders, err := l.Orders(ctx, acctOwner, a.ID)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("No orders")
		return nil
	}

	fmt.Printf("%-26s %-8s %-4s %-10s %8s %-9s %10s\n",
		"ID", "SYMBOL", "SIDE", "TYPE", "QTY", "STATUS", "FILLED@")
	for _, o := range orders {
		filled := "-"
		if !o.FilledAt.IsZero() {
			filled = fmt.Sprintf("%.2f %s", o.FilledPrice, o.FilledAt.Format(time.Kitchen))
		}
		fmt.Printf("%-26s %-8s %-4s %-10s %8d %-9s %10s\n",
			o.ID, o.Symbol, o.Side, o.Type, o.Quantity, o.Status, filled)
	}
	return nil
}
