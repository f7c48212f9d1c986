package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/workflow"
)

var dispatchWait bool

// dispatchCmd sends one event to the remote workflow without the mock fallback
var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch an event to the remote workflow",
	Long: `Dispatch one event to the remote workflow and print the run id.

Unlike 'run', a dispatch failure is reported instead of falling back to mock.
Use --wait to poll for the result, or 'poll <run-id>' later.

Examples:
  WORKFLOW_TOKEN=... go run ./cmd/tradecraft dispatch --event EVT-002
  go run ./cmd/tradecraft dispatch --ticker NVDA --headline "..." --prompt --wait`,
	RunE: runDispatch,
}

var pollCmd = &cobra.Command{
	Use:   "poll <run-id>",
	Short: "Poll the data directory for a dispatched run's result",
	Args:  cobra.ExactArgs(1),
	RunE:  runPoll,
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(pollCmd)

	dispatchCmd.Flags().StringVar(&runHeadline, "headline", "", "event headline")
	dispatchCmd.Flags().StringVar(&runTicker, "ticker", "", "ticker symbol")
	dispatchCmd.Flags().StringVar(&runSource, "source", "", "event source")
	dispatchCmd.Flags().StringVar(&runEventID, "event", "", "sample event id")
	dispatchCmd.Flags().BoolVar(&runLive, "live", false, "use the top live headline for --ticker")
	dispatchCmd.Flags().BoolVar(&runPrompt, "prompt", false, "prompt for the workflow credential")
	dispatchCmd.Flags().BoolVar(&dispatchWait, "wait", false, "poll until the result is published")
	dispatchCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	pollCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	credential := a.runner.Credentials().Get()
	if runPrompt {
		if credential, err = promptCredential(); err != nil {
			return err
		}
	}

	event, err := resolveEvent(ctx, a)
	if err != nil {
		return err
	}

	runID, err := a.workflow.Dispatch(ctx, event, credential)
	if err != nil {
		var dispatchErr *workflow.DispatchError
		if errors.As(err, &dispatchErr) {
			return fmt.Errorf("dispatch rejected (HTTP %d): %s", dispatchErr.StatusCode, dispatchErr.Message)
		}
		return err
	}

	fmt.Printf("🚀 Dispatched %s (%s)\n", runID, event.Ticker)
	if !dispatchWait {
		fmt.Printf("   Poll with: tradecraft poll %s\n", runID)
		return nil
	}
	return pollAndPrint(ctx, a, runID)
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return pollAndPrint(ctx, a, args[0])
}

func pollAndPrint(ctx context.Context, a *app, runID string) error {
	opts := workflow.PollOptions{
		MaxWait:  a.cfg.Workflow.PollMaxWait,
		Interval: a.cfg.Workflow.PollInterval,
	}
	if !runJSON {
		opts.OnTick = func(remaining int) {
			fmt.Printf("⏳ waiting for %s (%ds left)\n", runID, remaining)
		}
	}

	result, err := a.workflow.PollForResult(ctx, runID, opts)
	if err != nil {
		if errors.Is(err, workflow.ErrPollTimeout) {
			return fmt.Errorf("no result for %s within %s", runID, opts.MaxWait)
		}
		return err
	}
	if result.Mode == "" {
		result.Mode = contracts.ModeRemote
	}

	if runJSON {
		return printJSON(result)
	}
	printEvent(result.Event, result.Mode)
	printStages(result)
	printOutcome(result)
	return nil
}
