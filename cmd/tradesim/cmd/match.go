package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wealthpilot/tradesim/ledger"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run the resting-order matching loop",
	Long: `Run the background matcher: every interval, all pending limit/stop
orders are re-evaluated against fresh quotes and filled when triggered.
Stops on Ctrl-C.

Example:
  tradesim match --interval 30s`,
	RunE: runMatch,
}

var matchInterval time.Duration

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().DurationVar(&matchInterval, "interval", 30*time.Second, "matching interval")
}

func runMatch(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	l, quotes, err := newLedger(s)
	if err != nil {
		return err
	}

	interval := matchInterval
	if !cmd.Flags().Changed("interval") {
		if interval, err = cfg.Matcher.ParseInterval(); err != nil {
			return err
		}
	}

	log := newLogger()
	m := ledger.NewMatcher(l, quotes, interval, nil, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("matcher started", "interval", interval.String(), "store", cfg.Store.Type)
	err = m.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println("matcher stopped")
		return nil
	}
	return err
}
