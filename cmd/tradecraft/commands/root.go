package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose  bool
	noPacing bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tradecraft",
	Short: "Five-stage trading decision pipeline (mock or remote workflow)",
	Long: `tradecraft runs a market event through Researcher → Signal → Risk →
Execution → Supervisor, either locally with the mock stage simulators or by
dispatching the remote workflow and polling for its result.

Usage:
  go run ./cmd/tradecraft [command]

Examples:
  go run ./cmd/tradecraft run --event EVT-003
  go run ./cmd/tradecraft run --ticker NVDA --headline "NVDA beats earnings"
  go run ./cmd/tradecraft run --ticker AAPL --live
  go run ./cmd/tradecraft api
  go run ./cmd/tradecraft audit stats
  go run ./cmd/tradecraft audit performance
  go run ./cmd/tradecraft sizer train --epochs 5`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noPacing, "no-pacing", false, "skip the artificial per-stage delays")
}
