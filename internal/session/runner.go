// Package session decides between the mock pipeline and the remote workflow
// for one event, then records and publishes the outcome.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/tradecraft/internal/audit"
	"github.com/wonny/tradecraft/internal/brain"
	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/metrics"
	"github.com/wonny/tradecraft/internal/workflow"
	"github.com/wonny/tradecraft/pkg/logger"
)

// Pipeline runs the mock stages (brain.Orchestrator)
type Pipeline interface {
	Run(ctx context.Context, config brain.RunConfig, onStage contracts.StageHandler) (*contracts.RunResult, error)
}

// Remote dispatches and polls the remote workflow (workflow.Client)
type Remote interface {
	Dispatch(ctx context.Context, event contracts.Event, credential string) (string, error)
	PollForResult(ctx context.Context, runID string, opts workflow.PollOptions) (*contracts.RunResult, error)
}

// Publisher writes finished results (publish.Publisher)
type Publisher interface {
	Publish(result *contracts.RunResult) error
}

// Runner is the single entry point for a run, used by the API, the CLI and
// the scheduler jobs.
// ⭐ SSOT: mock/remote 모드 결정은 여기서만
type Runner struct {
	pipeline    Pipeline
	remote      Remote
	credentials CredentialStore
	ledger      *audit.Ledger
	publisher   Publisher
	fills       FillSimulator
	tracker     TradeTracker
	sizer       PositionSizer
	poll        workflow.PollOptions
	metrics     *metrics.Recorder
	logger      *logger.Logger
	now         func() time.Time
}

// NewRunner creates a runner. remote and credentials may be nil (mock only).
func NewRunner(pipeline Pipeline, remote Remote, credentials CredentialStore, ledger *audit.Ledger, log *logger.Logger) *Runner {
	if credentials == nil {
		credentials = NewMemoryCredentials("")
	}
	return &Runner{
		pipeline:    pipeline,
		remote:      remote,
		credentials: credentials,
		ledger:      ledger,
		logger:      log,
		now:         time.Now,
	}
}

// WithPublisher publishes every finished result
func (r *Runner) WithPublisher(p Publisher) *Runner {
	r.publisher = p
	return r
}

// WithPollOptions sets the remote poll budget and tick callback
func (r *Runner) WithPollOptions(opts workflow.PollOptions) *Runner {
	r.poll = opts
	return r
}

// WithMetrics attaches a metrics recorder
func (r *Runner) WithMetrics(rec *metrics.Recorder) *Runner {
	r.metrics = rec
	return r
}

// Credentials returns the credential slot
func (r *Runner) Credentials() CredentialStore {
	return r.credentials
}

// Mode reports which path the next run takes
func (r *Runner) Mode() string {
	if r.remote != nil && r.credentials.Get() != "" {
		return contracts.ModeRemote
	}
	return contracts.ModeMock
}

// Run executes one event.
//
//   - mock mode: the orchestrator runs the stages locally
//   - remote mode: dispatch, then poll. A failed dispatch falls back to the
//     mock pipeline and the result carries FallbackReason. A poll timeout is
//     returned as workflow.ErrPollTimeout.
//
// Finished results are replayed through the fill simulator, booked as a
// trade, recorded in the audit ledger and published. None of these failures
// fails the run.
func (r *Runner) Run(ctx context.Context, event contracts.Event, onStage contracts.StageHandler) (*contracts.RunResult, error) {
	event = event.Normalize()

	var (
		result *contracts.RunResult
		err    error
	)

	if r.Mode() == contracts.ModeRemote {
		result, err = r.runRemote(ctx, event, onStage)
	} else {
		result, err = r.pipeline.Run(ctx, brain.RunConfig{Event: event}, onStage)
	}
	if err != nil {
		return nil, err
	}

	r.finish(ctx, result)
	return result, nil
}

func (r *Runner) runRemote(ctx context.Context, event contracts.Event, onStage contracts.StageHandler) (*contracts.RunResult, error) {
	runID, err := r.remote.Dispatch(ctx, event, r.credentials.Get())
	if err != nil {
		r.logger.WithError(err).WithTicker(event.Ticker).
			Warn("Workflow dispatch failed, falling back to mock pipeline")

		result, mockErr := r.pipeline.Run(ctx, brain.RunConfig{Event: event}, onStage)
		if mockErr != nil {
			return nil, mockErr
		}
		result.FallbackReason = err.Error()
		return result, nil
	}

	log := r.logger.WithRun(runID)
	log.Info("Waiting for remote pipeline result")

	result, err := r.remote.PollForResult(ctx, runID, r.poll)
	if err != nil {
		log.WithError(err).Warn("Remote pipeline result unavailable")
		return nil, fmt.Errorf("remote run %s: %w", runID, err)
	}
	result.RunID = runID
	result.Mode = contracts.ModeRemote
	if result.Event.Ticker == "" {
		result.Event = event
	}

	r.replay(result, onStage)
	r.metrics.RunCompleted(contracts.ModeRemote, result.Vetoed)
	return result, nil
}

// replay emits the remote payloads as stage events, in pipeline order
func (r *Runner) replay(result *contracts.RunResult, onStage contracts.StageHandler) {
	if onStage == nil {
		return
	}
	for _, stage := range result.CompletedStages() {
		onStage(contracts.StageEvent{
			RunID:       result.RunID,
			Stage:       stage,
			MessageType: stage.MessageType(),
			MessageID:   uuid.NewString(),
			Timestamp:   r.now(),
			Payload:     result.Payload(stage),
			Final:       stage == contracts.StageSupervisor,
		})
	}
}

func (r *Runner) finish(ctx context.Context, result *contracts.RunResult) {
	log := r.logger.WithRun(result.RunID)

	r.track(ctx, result, log)

	if r.ledger != nil {
		if _, err := r.ledger.Record(ctx, result); err != nil {
			log.WithError(err).Error("Failed to record audit entries")
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(result); err != nil {
			log.WithError(err).Warn("Failed to publish run result")
		}
	}
}
