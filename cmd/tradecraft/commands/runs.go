package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/publish"
)

var runsRemote bool

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse published runs",
	Long: `Browse runs-index.json and pipeline-{run_id}.json.

By default the local results directory is read. --remote reads the workflow
data directory (WORKFLOW_DATA_URL) instead.

Subcommands:
  list  - newest runs first
  show  - full result for one run`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published runs (newest first)",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one published run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsCmd.PersistentFlags().BoolVar(&runsRemote, "remote", false, "read the remote workflow data directory")
	runsShowCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
}

func runRunsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var runs []contracts.RunSummary
	if runsRemote {
		runs = a.workflow.LoadRunsIndex(ctx)
	} else if runs, err = a.publisher.ReadRunsIndex(); err != nil {
		return err
	}

	fmt.Println("=== Published Runs ===")
	fmt.Println()
	if len(runs) == 0 {
		fmt.Println("No runs published yet")
		return nil
	}

	fmt.Printf("%-22s %-6s %-22s %s\n", "RUN ID", "TICKER", "TIMESTAMP", "HEADLINE")
	fmt.Println("───────────────────────────────────────────────────────────")
	for _, run := range runs {
		fmt.Printf("%-22s %-6s %-22s %s\n", run.RunID, run.Ticker, run.Timestamp, truncate(run.Headline, 60))
	}
	fmt.Printf("\nTotal: %d\n", len(runs))
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var result *contracts.RunResult
	if runsRemote {
		result, err = a.workflow.LoadRun(ctx, args[0])
	} else {
		result, err = readLocalRun(a.publisher.Dir(), args[0])
	}
	if err != nil {
		return err
	}

	if runJSON {
		return printJSON(result)
	}
	printEvent(result.Event, result.Mode)
	printStages(result)
	printOutcome(result)
	return nil
}

func readLocalRun(dir, runID string) (*contracts.RunResult, error) {
	data, err := os.ReadFile(filepath.Join(dir, publish.ResultFile(runID)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s not found in %s", runID, dir)
		}
		return nil, err
	}

	var result contracts.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode %s: %w", publish.ResultFile(runID), err)
	}
	return &result, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
