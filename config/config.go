// Package config loads and validates simulation configuration from YAML or
// JSON files. Configuration violations surface here, at construction time,
// never mid-simulation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete simulation configuration.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Costs    CostsConfig    `json:"costs" yaml:"costs"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Stats    StatsConfig    `json:"stats" yaml:"stats"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// AccountConfig holds starting-state parameters.
type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
}

// CostsConfig holds execution-cost parameters. Both are fractions: fee of
// notional per side, slippage of price in the disadvantageous direction.
type CostsConfig struct {
	TradingFee float64 `json:"trading_fee" yaml:"trading_fee"`
	Slippage   float64 `json:"slippage" yaml:"slippage"`
}

// StrategyConfig holds the volatility-adaptive strategy knobs.
type StrategyConfig struct {
	LookbackPeriod   int     `json:"lookback_period" yaml:"lookback_period"`
	VolThreshold     float64 `json:"vol_threshold" yaml:"vol_threshold"`
	MinSpread        float64 `json:"min_spread" yaml:"min_spread"`
	MaxSpread        float64 `json:"max_spread" yaml:"max_spread"`
	FundingThreshold float64 `json:"funding_threshold" yaml:"funding_threshold"`
	MaxPositionPct   float64 `json:"max_position_pct" yaml:"max_position_pct"`
	MaxLeverage      float64 `json:"max_leverage" yaml:"max_leverage"`
	Annualization    float64 `json:"annualization" yaml:"annualization"`
}

// RiskConfig holds the risk-model parameters.
type RiskConfig struct {
	MarginBuffer      float64 `json:"margin_buffer" yaml:"margin_buffer"`
	MaintenanceMargin float64 `json:"maintenance_margin" yaml:"maintenance_margin"`
}

// StatsConfig holds the annualization inputs for Sharpe/Sortino.
type StatsConfig struct {
	RiskFreeRate   float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	PeriodsPerYear float64 `json:"periods_per_year" yaml:"periods_per_year"`
}

// JournalConfig selects the audit-trail backend.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite", or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile reads and validates a configuration file. YAML is tried
// first, then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
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

// SaveToFile writes the configuration, choosing the format by extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks every knob that has a hard constraint. The one
// cross-field rule is min_spread <= max_spread.
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.Costs.TradingFee < 0 || c.Costs.TradingFee >= 1 {
		return fmt.Errorf("costs.trading_fee must be in [0, 1)")
	}
	if c.Costs.Slippage < 0 || c.Costs.Slippage >= 1 {
		return fmt.Errorf("costs.slippage must be in [0, 1)")
	}
	if c.Strategy.LookbackPeriod <= 0 {
		return fmt.Errorf("strategy.lookback_period must be positive")
	}
	if c.Strategy.VolThreshold <= 0 {
		return fmt.Errorf("strategy.vol_threshold must be positive")
	}
	if c.Strategy.MinSpread < 0 {
		return fmt.Errorf("strategy.min_spread must be non-negative")
	}
	if c.Strategy.MinSpread > c.Strategy.MaxSpread {
		return fmt.Errorf("strategy.min_spread %.6f exceeds max_spread %.6f",
			c.Strategy.MinSpread, c.Strategy.MaxSpread)
	}
	if c.Strategy.MaxPositionPct <= 0 || c.Strategy.MaxPositionPct > 1 {
		return fmt.Errorf("strategy.max_position_pct must be in (0, 1]")
	}
	if c.Strategy.MaxLeverage < 1 {
		return fmt.Errorf("strategy.max_leverage must be at least 1")
	}
	if c.Strategy.Annualization <= 0 {
		return fmt.Errorf("strategy.annualization must be positive")
	}
	if c.Risk.MarginBuffer < 0 {
		return fmt.Errorf("risk.margin_buffer must be non-negative")
	}
	if c.Risk.MaintenanceMargin < 0 {
		return fmt.Errorf("risk.maintenance_margin must be non-negative")
	}
	if c.Stats.PeriodsPerYear <= 0 {
		return fmt.Errorf("stats.periods_per_year must be positive")
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite', or 'none'")
	}
	return nil
}

// Default returns the configuration the strategy was calibrated with.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCapital: 100_000,
		},
		Costs: CostsConfig{
			TradingFee: 0.001,  // 0.1% per side
			Slippage:   0.0005, // 0.05%
		},
		Strategy: StrategyConfig{
			LookbackPeriod:   24,
			VolThreshold:     0.02,
			MinSpread:        0.001,
			MaxSpread:        0.005,
			FundingThreshold: 0.0001,
			MaxPositionPct:   0.6,
			MaxLeverage:      3.0,
			Annualization:    24,
		},
		Risk: RiskConfig{
			MarginBuffer:      0.2,
			MaintenanceMargin: 0.05,
		},
		Stats: StatsConfig{
			RiskFreeRate:   0.02,
			PeriodsPerYear: 252,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./backtest.sqlite",
		},
	}
}
