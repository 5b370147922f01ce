// Package config loads the simulation configuration from YAML or JSON
// files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wealthpilot/tradesim/backtest"
)

// Config is the complete tradesim configuration.
type Config struct {
	Account  AccountConfig   `json:"account" yaml:"account"`
	Backtest backtest.Config `json:"backtest" yaml:"backtest"`
	Matcher  MatcherConfig   `json:"matcher" yaml:"matcher"`
	Market   MarketConfig    `json:"market" yaml:"market"`
	Store    StoreConfig     `json:"store" yaml:"store"`
	LogLevel string          `json:"log_level" yaml:"log_level"`
}

// AccountConfig seeds the paper-trading account.
type AccountConfig struct {
	OwnerID string  `json:"owner_id" yaml:"owner_id"`
	Balance float64 `json:"balance" yaml:"balance"`
}

// MatcherConfig tunes the resting-order matching loop.
type MatcherConfig struct {
	Interval     string `json:"interval" yaml:"interval"`           // e.g. "30s"
	QuoteTimeout string `json:"quote_timeout" yaml:"quote_timeout"` // e.g. "5s"
}

// ParseInterval returns the matching interval, defaulting to 30s.
func (m MatcherConfig) ParseInterval() (time.Duration, error) {
	if m.Interval == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(m.Interval)
}

// ParseQuoteTimeout returns the per-quote timeout, defaulting to 5s.
func (m MatcherConfig) ParseQuoteTimeout() (time.Duration, error) {
	if m.QuoteTimeout == "" {
		return 5 * time.Second, nil
	}
	return time.ParseDuration(m.QuoteTimeout)
}

// MarketConfig selects and tunes the quote source.
type MarketConfig struct {
	Seed          int64  `json:"seed" yaml:"seed"`
	CacheTTL      string `json:"cache_ttl" yaml:"cache_ttl"`
	RatePerMinute int    `json:"rate_per_minute" yaml:"rate_per_minute"`
}

// ParseCacheTTL returns the quote-cache TTL, defaulting to 15s.
func (m MarketConfig) ParseCacheTTL() (time.Duration, error) {
	if m.CacheTTL == "" {
		return 15 * time.Second, nil
	}
	return time.ParseDuration(m.CacheTTL)
}

// StoreConfig selects persistence. Type is "memory" or "sqlite".
type StoreConfig struct {
	Type   string `json:"type" yaml:"type"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns a runnable configuration: simulated quotes, in-memory
// store, 30s matching.
func Default() *Config {
	return &Config{
		Account:  AccountConfig{OwnerID: "demo", Balance: 10_000},
		Matcher:  MatcherConfig{Interval: "30s", QuoteTimeout: "5s"},
		Market:   MarketConfig{Seed: 1, CacheTTL: "15s", RatePerMinute: 60},
		Store:    StoreConfig{Type: "memory"},
		LogLevel: "info",
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Account.OwnerID == "" {
		return fmt.Errorf("account.owner_id is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	switch strings.ToLower(c.Store.Type) {
	case "", "memory":
	case "sqlite":
		if c.Store.DBPath == "" {
			return fmt.Errorf("store.db_path is required for sqlite")
		}
	default:
		return fmt.Errorf("store.type must be memory or sqlite, got %q", c.Store.Type)
	}
	if _, err := c.Matcher.ParseInterval(); err != nil {
		return fmt.Errorf("matcher.interval: %w", err)
	}
	if _, err := c.Matcher.ParseQuoteTimeout(); err != nil {
		return fmt.Errorf("matcher.quote_timeout: %w", err)
	}
	if _, err := c.Market.ParseCacheTTL(); err != nil {
		return fmt.Errorf("market.cache_ttl: %w", err)
	}
	return nil
}
