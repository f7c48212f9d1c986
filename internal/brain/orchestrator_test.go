package brain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecraft/internal/agents"
	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/pkg/logger"
)

type fixedSource struct {
	f float64
	n int
}

func (s fixedSource) Float64() float64 { return s.f }
func (s fixedSource) Intn(n int) int   { return s.n % n }

// draws confidence 0.80 from the Researcher
var confidence80 = fixedSource{f: 0.15 / 0.28, n: 7}

func newTestOrchestrator(rng agents.RandomSource, pacing Pacing) *Orchestrator {
	sim := agents.NewSimulator(rng, agents.DefaultRiskLimits())
	return NewOrchestrator(sim, rng, pacing, logger.Nop())
}

func collect(events *[]contracts.StageEvent) contracts.StageHandler {
	return func(e contracts.StageEvent) {
		*events = append(*events, e)
	}
}

func TestRunNVDAEndToEnd(t *testing.T) {
	orch := newTestOrchestrator(confidence80, NoPacing())

	var events []contracts.StageEvent
	result, err := orch.Run(context.Background(), RunConfig{
		RunID: "run-1",
		Event: contracts.Event{Headline: "NVDA beats earnings", Ticker: "NVDA", Source: "NASDAQ Filing"},
	}, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusComplete, result.Status)
	assert.Equal(t, contracts.ModeMock, result.Mode)
	assert.False(t, result.Vetoed)

	assert.Equal(t, contracts.BiasBullish, result.Researcher.Signal)
	assert.Equal(t, 0.80, result.Researcher.Confidence)

	assert.Equal(t, contracts.ActionLong, result.Signal.Action)
	assert.Equal(t, 8.0, result.Signal.SizePct)
	assert.Equal(t, 875.00, result.Signal.EntryPrice)

	assert.Equal(t, contracts.VerdictApprovedWithConditions, result.Risk.Verdict)
	require.NotNil(t, result.Risk.AdjustedSizePct)
	assert.Equal(t, 5.0, *result.Risk.AdjustedSizePct)

	require.NotNil(t, result.Execution)
	assert.Equal(t, contracts.StrategyTWAP, result.Execution.Strategy)

	assert.Equal(t, contracts.AuditCompliant, result.Supervisor.AuditStatus)
	assert.Contains(t, result.Supervisor.Flags, contracts.FlagSizeReduced)

	require.Len(t, events, 5)
	for i, stage := range contracts.AllStages() {
		assert.Equal(t, stage, events[i].Stage)
		assert.Equal(t, stage.MessageType(), events[i].MessageType)
		assert.Equal(t, "run-1", events[i].RunID)
		assert.NotEmpty(t, events[i].MessageID)
		assert.Equal(t, stage == contracts.StageSupervisor, events[i].Final)
	}
}

func TestRunUnknownTickerVetoes(t *testing.T) {
	orch := newTestOrchestrator(fixedSource{f: 0.3, n: 1}, NoPacing())

	var events []contracts.StageEvent
	result, err := orch.Run(context.Background(), RunConfig{
		Event: contracts.Event{Headline: "Unknown co. files 10-K", Ticker: "zzzz"},
	}, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, "ZZZZ", result.Event.Ticker)
	assert.Equal(t, contracts.DefaultSource, result.Event.Source)
	assert.Regexp(t, `^run-\d{13}-[0-9a-f]{8}$`, result.RunID)

	assert.True(t, result.Vetoed)
	assert.Equal(t, contracts.StatusComplete, result.Status)
	assert.Equal(t, contracts.VerdictVetoed, result.Risk.Verdict)
	assert.Nil(t, result.Execution)
	assert.True(t, result.Supervisor.HumanReviewRequired)
	assert.Equal(t, contracts.AuditCompliant, result.Supervisor.AuditStatus)
	assert.Equal(t, 3, result.Supervisor.TotalMessagesAudited)

	require.Len(t, events, 4)
	assert.Equal(t, contracts.StageRisk, events[2].Stage)
	assert.Equal(t, contracts.StageSupervisor, events[3].Stage)
	assert.True(t, events[3].Final)
	assert.Equal(t, []contracts.Stage{
		contracts.StageResearcher, contracts.StageSignal, contracts.StageRisk, contracts.StageSupervisor,
	}, result.CompletedStages())
}

func TestRunNilHandler(t *testing.T) {
	orch := newTestOrchestrator(confidence80, NoPacing())
	result, err := orch.Run(context.Background(), RunConfig{Event: contracts.Event{Headline: "h", Ticker: "MSFT"}}, nil)
	require.NoError(t, err)
	assert.True(t, result.IsComplete())
}

func TestRunPacingDelays(t *testing.T) {
	orch := newTestOrchestrator(fixedSource{f: 0.5}, DefaultPacing())

	var delays []time.Duration
	orch.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := orch.Run(context.Background(), RunConfig{Event: contracts.Event{Headline: "h", Ticker: "NVDA"}}, nil)
	require.NoError(t, err)

	// base + 0.5 * 400ms jitter
	assert.Equal(t, []time.Duration{
		1000 * time.Millisecond,
		900 * time.Millisecond,
		800 * time.Millisecond,
		900 * time.Millisecond,
		700 * time.Millisecond,
	}, delays)
}

func TestRunCancelledDuringPacing(t *testing.T) {
	orch := newTestOrchestrator(confidence80, DefaultPacing())

	ctx, cancel := context.WithCancel(context.Background())
	var events []contracts.StageEvent
	calls := 0
	orch.sleep = func(ctx context.Context, d time.Duration) error {
		calls++
		if calls == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	result, err := orch.Run(ctx, RunConfig{Event: contracts.Event{Headline: "h", Ticker: "NVDA"}}, collect(&events))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, events, 2)
	assert.Nil(t, result.Risk)
	assert.False(t, result.IsComplete())
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 0))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
