package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wealthpilot/tradesim/config"
	"github.com/wealthpilot/tradesim/ledger"
	"github.com/wealthpilot/tradesim/market"
	"github.com/wealthpilot/tradesim/store"
)

var rootCmd = &cobra.Command{
	Use:   "tradesim",
	Short: "A paper-trading and backtesting simulator for equities",
	Long: `Tradesim is a trade simulation engine written in Go.

It provides tools for:
  - Backtesting signal strategies over historical OHLCV bars
  - Paper trading with market, limit, stop and stop-limit orders
  - A background matcher that fills resting orders against live quotes
  - Performance metrics: Sharpe, Sortino, drawdown, profit factor, expectancy`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

var (
	cfgFile  string
	dbPath   string
	logLevel string

	// cfg is the effective configuration, resolved before any RunE.
	cfg *config.Config
)

func init() {
	rootCmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		return loadConfig()
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "tradesim.sqlite", "path to SQLite database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// loadConfig resolves the configuration: the --config file when given,
// built-in defaults otherwise. Explicit --db and --log-level flags win over
// the file.
func loadConfig() error {
	if cfgFile != "" {
		c, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
	} else {
		cfg = config.Default()
		// Without a file the CLI still persists between invocations.
		cfg.Store = config.StoreConfig{Type: "sqlite", DBPath: dbPath}
	}
	flags := rootCmd.PersistentFlags()
	if flags.Changed("db") {
		cfg.Store = config.StoreConfig{Type: "sqlite", DBPath: dbPath}
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return nil
}

// newLogger builds the JSON slog logger used by long-running commands.
func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// appStore is what the commands need from persistence.
type appStore interface {
	ledger.Store
	store.BacktestStore
	Close() error
}

// openStore opens the configured store.
func openStore() (appStore, error) {
	switch strings.ToLower(cfg.Store.Type) {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.DBPath)
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
}

// newLedger wires a ledger over the store with cached simulated quotes. The
// ledger executes through the strict view so fills never use stale prices;
// the returned provider is the cached one for scan and display paths.
func newLedger(s appStore) (*ledger.Ledger, market.QuoteProvider, error) {
	seed := cfg.Market.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ttl, err := cfg.Market.ParseCacheTTL()
	if err != nil {
		return nil, nil, err
	}
	timeout, err := cfg.Matcher.ParseQuoteTimeout()
	if err != nil {
		return nil, nil, err
	}
	quotes := market.NewCachedProvider(
		market.NewSimulatedSource(seed, nil),
		ttl, cfg.Market.RatePerMinute, nil,
	)
	l := ledger.New(s, quotes.Strict(), ledger.Options{QuoteTimeout: timeout})
	return l, quotes, nil
}
