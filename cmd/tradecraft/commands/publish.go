package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/tradecraft/internal/brain"
	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/publish"
)

var (
	publishRunID  string
	publishModel  string
	publishOutput string
)

// publishCmd is the worker side of a remote run: the dispatched workflow
// calls it with the run id it was given, and the poll client later fetches
// pipeline-{run_id}.json from the output directory.
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Worker mode: run the pipeline for a dispatched run id and publish the result",
	Long: `Run the stage simulators for a dispatched run and write
pipeline-{run_id}.json plus the updated runs-index.json.

Examples:
  go run ./cmd/tradecraft publish --run-id run-1718000000000 \
      --ticker NVDA --headline "NVDA beats earnings" --output ./data/runs`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&publishRunID, "run-id", "", "run id assigned at dispatch (required)")
	publishCmd.Flags().StringVar(&runHeadline, "headline", "", "event headline (required)")
	publishCmd.Flags().StringVar(&runTicker, "ticker", "", "ticker symbol (required)")
	publishCmd.Flags().StringVar(&runSource, "source", "", "event source")
	publishCmd.Flags().StringVar(&publishModel, "model", "", "model label stamped on the result (default WORKFLOW_MODEL)")
	publishCmd.Flags().StringVar(&publishOutput, "output", "", "output directory (default DATA_DIR/runs)")

	_ = publishCmd.MarkFlagRequired("run-id")
	_ = publishCmd.MarkFlagRequired("headline")
	_ = publishCmd.MarkFlagRequired("ticker")
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	model := publishModel
	if model == "" {
		model = a.cfg.Workflow.Model
	}
	if model != "" {
		a.orchestrator.WithModel(model)
	}

	publisher := a.publisher
	if publishOutput != "" {
		publisher = publish.New(publishOutput, a.log)
	}

	event := contracts.Event{Headline: runHeadline, Ticker: runTicker, Source: runSource}.Normalize()
	result, err := a.orchestrator.Run(ctx, brain.RunConfig{RunID: publishRunID, Event: event}, nil)
	if err != nil {
		return fmt.Errorf("pipeline run %s: %w", publishRunID, err)
	}
	result.Mode = contracts.ModeRemote

	if err := publisher.Publish(result); err != nil {
		return fmt.Errorf("publish %s: %w", publishRunID, err)
	}

	fmt.Printf("✅ Published %s to %s (vetoed=%t)\n", result.RunID, publisher.Dir(), result.Vetoed)
	return nil
}
