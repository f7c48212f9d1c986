package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/events"
)

var (
	runHeadline string
	runTicker   string
	runSource   string
	runEventID  string
	runLive     bool
	runPrompt   bool
	runPick     bool
	runJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one event through the five-stage pipeline",
	Long: `Run one market event through the pipeline and print each stage as it completes.

The event comes from --event (a configured sample), --live (top headline for
--ticker), --pick (interactive sample picker) or --headline/--ticker.
With a workflow credential the run is dispatched remotely; otherwise the mock
simulators run locally. Dispatch failures fall back to mock.

Examples:
  go run ./cmd/tradecraft run --event EVT-001
  go run ./cmd/tradecraft run --ticker TSLA --headline "TSLA recalls 2M vehicles"
  go run ./cmd/tradecraft run --ticker AAPL --live --no-pacing
  go run ./cmd/tradecraft run --pick --prompt`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runHeadline, "headline", "", "event headline")
	runCmd.Flags().StringVar(&runTicker, "ticker", "", "ticker symbol")
	runCmd.Flags().StringVar(&runSource, "source", "", "event source (default \"Manual Input\")")
	runCmd.Flags().StringVar(&runEventID, "event", "", "sample event id (e.g. EVT-001)")
	runCmd.Flags().BoolVar(&runLive, "live", false, "use the top live headline for --ticker")
	runCmd.Flags().BoolVar(&runPrompt, "prompt", false, "prompt for the workflow credential")
	runCmd.Flags().BoolVar(&runPick, "pick", false, "choose a sample event interactively")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full result as JSON")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if runPrompt {
		credential, err := promptCredential()
		if err != nil {
			return err
		}
		if credential != "" {
			a.runner.Credentials().Set(credential)
		}
	}

	event, err := resolveEvent(ctx, a)
	if err != nil {
		return err
	}

	if !runJSON {
		PrintTitle("Tradecraft Pipeline")
		printEvent(event, a.runner.Mode())
	}

	onStage := func(ev contracts.StageEvent) {
		if !runJSON {
			fmt.Println(renderStage(ev))
		}
	}

	result, err := a.runner.Run(ctx, event, onStage)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if runJSON {
		return printJSON(result)
	}
	printOutcome(result)
	return nil
}

// resolveEvent picks the event source in flag priority order
func resolveEvent(ctx context.Context, a *app) (contracts.Event, error) {
	switch {
	case runEventID != "":
		sample, ok := events.Find(a.samples, runEventID)
		if !ok {
			return contracts.Event{}, fmt.Errorf("unknown sample event %q", runEventID)
		}
		return sample.Event.Normalize(), nil

	case runPick:
		options := make([]string, len(a.samples))
		for i, s := range a.samples {
			options[i] = fmt.Sprintf("%s  %-5s %s", s.ID, s.Ticker, s.Headline)
		}
		index, err := promptSample(options)
		if err != nil {
			return contracts.Event{}, err
		}
		return a.samples[index].Event.Normalize(), nil

	case runLive:
		if runTicker == "" {
			return contracts.Event{}, fmt.Errorf("--live requires --ticker")
		}
		return a.news.LiveEvent(ctx, runTicker), nil
	}

	event := contracts.Event{
		Headline: runHeadline,
		Ticker:   runTicker,
		Source:   runSource,
	}.Normalize()
	if event.Headline == "" || event.Ticker == "" {
		fmt.Fprintln(os.Stderr, "either --event, --pick, --live or both --headline and --ticker are required")
		return contracts.Event{}, fmt.Errorf("missing event")
	}
	return event, nil
}
