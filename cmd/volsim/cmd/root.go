package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "volsim",
	Short: "Backtester for a volatility-adaptive perpetual-futures strategy",
	Long: `Volsim replays historical market data through a volatility-adaptive
trading strategy and produces an auditable record of hypothetical
performance: trades, equity curve, and risk-adjusted statistics.

It provides tools for:
  - Backtesting against historical OHLCV and funding-rate datasets
  - Journaling trades and equity curves to CSV or SQLite
  - Volatility-aware position sizing and liquidation-risk scoring
  - Sharpe/Sortino/drawdown/profit-factor reporting`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Local overrides (dataset locations, default config path) come from a
	// .env file when present; a missing file is fine.
	_ = godotenv.Load()
}
