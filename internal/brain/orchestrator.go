package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/tradecraft/internal/agents"
	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/metrics"
	"github.com/wonny/tradecraft/pkg/logger"
)

// Pacing controls the artificial delay before each stage. The delays only
// simulate agent latency for a watching user; they carry no semantics.
type Pacing struct {
	Enabled   bool
	Base      map[contracts.Stage]time.Duration
	MaxJitter time.Duration
}

// DefaultPacing returns the stock per-stage delays (plus up to 400ms jitter)
func DefaultPacing() Pacing {
	return Pacing{
		Enabled: true,
		Base: map[contracts.Stage]time.Duration{
			contracts.StageResearcher: 800 * time.Millisecond,
			contracts.StageSignal:     700 * time.Millisecond,
			contracts.StageRisk:       600 * time.Millisecond,
			contracts.StageExecution:  700 * time.Millisecond,
			contracts.StageSupervisor: 500 * time.Millisecond,
		},
		MaxJitter: 400 * time.Millisecond,
	}
}

// NoPacing disables every delay
func NoPacing() Pacing {
	return Pacing{}
}

// Orchestrator drives the five stage simulators for one event
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	sim     *agents.Simulator
	rng     agents.RandomSource
	pacing  Pacing
	model   string
	metrics *metrics.Recorder
	logger  *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	RunID string // generated when empty
	Event contracts.Event
}

// NewOrchestrator creates a new orchestrator. rng feeds the pacing jitter and
// should be the same source the simulator draws from.
func NewOrchestrator(sim *agents.Simulator, rng agents.RandomSource, pacing Pacing, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		sim:    sim,
		rng:    rng,
		pacing: pacing,
		model:  "mock",
		logger: log,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// WithMetrics attaches a metrics recorder
func (o *Orchestrator) WithMetrics(rec *metrics.Recorder) *Orchestrator {
	o.metrics = rec
	return o
}

// WithModel sets the model label stamped on results
func (o *Orchestrator) WithModel(model string) *Orchestrator {
	o.model = model
	return o
}

// Run executes the pipeline:
// Researcher → Signal → Risk → (veto → Supervisor) | (Execution → Supervisor)
//
// onStage (optional) is called after every stage; Final is set only for the
// Supervisor. The only error is ctx cancellation during a pacing delay.
func (o *Orchestrator) Run(ctx context.Context, config RunConfig, onStage contracts.StageHandler) (*contracts.RunResult, error) {
	startTime := o.now()
	event := config.Event.Normalize()

	runID := config.RunID
	if runID == "" {
		runID = GenerateRunID()
	}

	result := &contracts.RunResult{
		RunID:     runID,
		Mode:      contracts.ModeMock,
		Event:     event,
		Timestamp: startTime.UTC().Format(contracts.TimestampFormat),
		Model:     o.model,
	}

	log := o.logger.WithRun(runID)
	log.WithFields(map[string]interface{}{
		"ticker":   event.Ticker,
		"source":   event.Source,
		"headline": event.Headline,
		"pacing":   o.pacing.Enabled,
	}).Info("Starting pipeline run")

	emit := func(stage contracts.Stage, payload interface{}) {
		if onStage == nil {
			return
		}
		onStage(contracts.StageEvent{
			RunID:       runID,
			Stage:       stage,
			MessageType: stage.MessageType(),
			MessageID:   uuid.NewString(),
			Timestamp:   o.now(),
			Payload:     payload,
			Final:       stage == contracts.StageSupervisor,
		})
	}

	// S1: Researcher
	if err := o.pace(ctx, contracts.StageResearcher); err != nil {
		return result, fmt.Errorf("researcher: %w", err)
	}
	stageStart := o.now()
	result.Researcher = o.sim.Researcher(event)
	o.completed(log, contracts.StageResearcher, stageStart, map[string]interface{}{
		"signal":     result.Researcher.Signal,
		"confidence": result.Researcher.Confidence,
	})
	emit(contracts.StageResearcher, result.Researcher)

	// S2: Signal
	if err := o.pace(ctx, contracts.StageSignal); err != nil {
		return result, fmt.Errorf("signal: %w", err)
	}
	stageStart = o.now()
	result.Signal = o.sim.Signal(event, result.Researcher)
	o.completed(log, contracts.StageSignal, stageStart, map[string]interface{}{
		"action":   result.Signal.Action,
		"size_pct": result.Signal.SizePct,
	})
	emit(contracts.StageSignal, result.Signal)

	// S3: Risk (정확히 1회)
	if err := o.pace(ctx, contracts.StageRisk); err != nil {
		return result, fmt.Errorf("risk: %w", err)
	}
	stageStart = o.now()
	result.Risk = o.sim.Risk(result.Signal)
	result.Vetoed = result.Risk.Veto
	o.completed(log, contracts.StageRisk, stageStart, map[string]interface{}{
		"verdict": result.Risk.Verdict,
		"veto":    result.Risk.Veto,
	})
	emit(contracts.StageRisk, result.Risk)

	// S4: Execution (skip on veto)
	if !result.Vetoed {
		if err := o.pace(ctx, contracts.StageExecution); err != nil {
			return result, fmt.Errorf("execution: %w", err)
		}
		stageStart = o.now()
		result.Execution = o.sim.Execution(result.Signal, result.Risk)
		o.completed(log, contracts.StageExecution, stageStart, map[string]interface{}{
			"strategy": result.Execution.Strategy,
			"status":   result.Execution.Status,
		})
		emit(contracts.StageExecution, result.Execution)
	} else {
		log.Info("Skipping execution_agent (risk veto)")
	}

	// S5: Supervisor (항상 실행)
	if err := o.pace(ctx, contracts.StageSupervisor); err != nil {
		return result, fmt.Errorf("supervisor: %w", err)
	}
	stageStart = o.now()
	result.Supervisor = o.sim.Supervisor(agents.Chain{
		Research:  result.Researcher,
		Signal:    result.Signal,
		Risk:      result.Risk,
		Execution: result.Execution,
	})
	o.completed(log, contracts.StageSupervisor, stageStart, map[string]interface{}{
		"audit_status": result.Supervisor.AuditStatus,
		"log_id":       result.Supervisor.LogID,
	})

	// veto 여부와 관계없이 동일한 완료 계약
	result.Status = contracts.StatusComplete
	emit(contracts.StageSupervisor, result.Supervisor)

	o.metrics.RunCompleted(contracts.ModeMock, result.Vetoed)
	log.WithFields(map[string]interface{}{
		"duration": o.now().Sub(startTime).Seconds(),
		"stages":   len(result.CompletedStages()),
		"vetoed":   result.Vetoed,
	}).Info("Pipeline run completed")

	return result, nil
}

// pace sleeps for the stage's base delay plus jitter
func (o *Orchestrator) pace(ctx context.Context, stage contracts.Stage) error {
	if !o.pacing.Enabled {
		return ctx.Err()
	}
	delay := o.pacing.Base[stage]
	if o.pacing.MaxJitter > 0 && o.rng != nil {
		delay += time.Duration(o.rng.Float64() * float64(o.pacing.MaxJitter))
	}
	return o.sleep(ctx, delay)
}

func (o *Orchestrator) completed(log *logger.Logger, stage contracts.Stage, start time.Time, fields map[string]interface{}) {
	o.metrics.ObserveStage(stage.String(), o.now().Sub(start))
	log.WithStage(stage.String()).WithFields(fields).Info(stage.ShortName() + " completed")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GenerateRunID generates a unique run ID (run-<unix millis>-<hex>)
func GenerateRunID() string {
	return contracts.LocalRunID(time.Now())
}
