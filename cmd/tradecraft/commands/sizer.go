package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/tradecraft/internal/sizing"
)

var (
	sizerEpochs int
	sizerReset  bool
)

var sizerCmd = &cobra.Command{
	Use:   "sizer",
	Short: "Inspect and train the position sizer",
	Long: `The position sizer learns a size per market state from finished trades and
records its advice next to the Signal agent's size. It never changes the
size that is traded.

Subcommands:
  policy  - greedy size per visited state
  train   - replay the trade log to warm-start the Q-table`,
}

var sizerPolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show the learned sizing policy",
	RunE:  runSizerPolicy,
}

var sizerTrainCmd = &cobra.Command{
	Use:   "train",
	Short: "Warm-start the Q-table from recorded trades",
	Long: `Replays the persisted trade log (oldest first) through the Q-learner and
saves the table to the configured storage backend.

Example:
  go run ./cmd/tradecraft sizer train --epochs 5
  go run ./cmd/tradecraft sizer train --reset`,
	RunE: runSizerTrain,
}

func init() {
	rootCmd.AddCommand(sizerCmd)
	sizerCmd.AddCommand(sizerPolicyCmd)
	sizerCmd.AddCommand(sizerTrainCmd)

	sizerPolicyCmd.Flags().BoolVar(&runJSON, "json", false, "print as JSON")
	sizerTrainCmd.Flags().IntVar(&sizerEpochs, "epochs", 3, "replay passes over the trade log")
	sizerTrainCmd.Flags().BoolVar(&sizerReset, "reset", false, "forget the existing table first")
	sizerTrainCmd.Flags().BoolVar(&runJSON, "json", false, "print as JSON")
}

func runSizerPolicy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.sizer == nil {
		return fmt.Errorf("position sizer is disabled (SIZER_ENABLED=false)")
	}

	policy := a.sizer.Policy()
	if runJSON {
		return printJSON(policy)
	}

	fmt.Println("🎯 Position Sizing Policy")
	PrintSeparator()
	for _, line := range policyLines(policy) {
		fmt.Printf("  %s\n", line)
	}
	PrintSeparator()
	return nil
}

func runSizerTrain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.sizer == nil {
		return fmt.Errorf("position sizer is disabled (SIZER_ENABLED=false)")
	}

	trades, err := a.ledger.Trades(ctx)
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	if sizerReset {
		a.sizer.Reset()
	}

	report, err := a.sizer.Train(ctx, trades, sizerEpochs)
	if err != nil {
		return err
	}
	if runJSON {
		return printJSON(report)
	}

	fmt.Println("🧠 Offline Training")
	PrintSeparator()
	fmt.Printf("  Trades replayed : %d\n", report.Trades)
	for i, r := range report.EpochRewardsBps {
		fmt.Printf("  Epoch %d/%d      : avg reward %+.2f bps\n", i+1, report.Epochs, r)
	}
	fmt.Printf("  Steps           : %d → %d\n", report.StepsBefore, report.StepsAfter)
	fmt.Printf("  Avg reward      : %+.2f bps\n", report.AvgRewardBps)
	PrintSeparator()
	for _, line := range policyLines(report.Policy) {
		fmt.Printf("  %s\n", line)
	}
	PrintSeparator()
	return nil
}

// policyLines renders the greedy size per state, states sorted
func policyLines(p sizing.Policy) []string {
	lines := []string{fmt.Sprintf("step %d, epsilon %.4f, %d states", p.Step, p.Epsilon, p.StatesVisited)}

	keys := make([]string, 0, len(p.Policy))
	for k := range p.Policy {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%-30s → %.1f%%", k, p.Policy[k].BestActionPct))
	}
	return lines
}
