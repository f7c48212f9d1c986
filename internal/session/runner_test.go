package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecraft/internal/agents"
	"github.com/wonny/tradecraft/internal/audit"
	"github.com/wonny/tradecraft/internal/brain"
	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/execution"
	"github.com/wonny/tradecraft/internal/publish"
	"github.com/wonny/tradecraft/internal/sizing"
	"github.com/wonny/tradecraft/internal/workflow"
	"github.com/wonny/tradecraft/pkg/logger"
)

type fakeRemote struct {
	dispatchErr error
	pollErr     error
	result      *contracts.RunResult

	credential string
	polled     string
}

func (f *fakeRemote) Dispatch(ctx context.Context, event contracts.Event, credential string) (string, error) {
	f.credential = credential
	if f.dispatchErr != nil {
		return "", f.dispatchErr
	}
	return "run-42", nil
}

func (f *fakeRemote) PollForResult(ctx context.Context, runID string, opts workflow.PollOptions) (*contracts.RunResult, error) {
	f.polled = runID
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	return f.result, nil
}

type fakePublisher struct{ published []string }

func (f *fakePublisher) Publish(result *contracts.RunResult) error {
	f.published = append(f.published, result.RunID)
	return nil
}

func newRunner(remote Remote, credential string) (*Runner, *audit.Ledger, *fakePublisher) {
	rng := agents.NewLockedSource(7)
	sim := agents.NewSimulator(rng, agents.DefaultRiskLimits())
	orch := brain.NewOrchestrator(sim, rng, brain.NoPacing(), logger.Nop())
	ledger := audit.NewLedger(audit.NewMemoryStore(), 0, logger.Nop())
	pub := &fakePublisher{}

	r := NewRunner(orch, remote, NewMemoryCredentials(credential), ledger, logger.Nop()).
		WithPublisher(pub)
	return r, ledger, pub
}

func remoteResult() *contracts.RunResult {
	size := 5.0
	return &contracts.RunResult{
		Status:     contracts.StatusComplete,
		Researcher: &contracts.ResearchPayload{Signal: contracts.BiasBullish, Confidence: 0.8},
		Signal:     &contracts.SignalPayload{Action: contracts.ActionLong, Ticker: "NVDA", SizePct: 8},
		Risk:       &contracts.RiskPayload{Verdict: contracts.VerdictApprovedWithConditions, AdjustedSizePct: &size},
		Execution:  &contracts.ExecutionPayload{Strategy: contracts.StrategyTWAP, Status: contracts.ExecutionSimulatedFill},
		Supervisor: &contracts.SupervisorPayload{AuditStatus: contracts.AuditCompliant, TotalMessagesAudited: 4},
	}
}

var nvda = contracts.Event{Headline: "NVDA beats earnings", Ticker: "nvda", Source: "NASDAQ Filing"}

func TestCredentials(t *testing.T) {
	creds := NewMemoryCredentials("seed")
	assert.Equal(t, "seed", creds.Get())
	creds.Set("other")
	assert.Equal(t, "other", creds.Get())
	creds.Clear()
	assert.Empty(t, creds.Get())
}

func TestMode(t *testing.T) {
	r, _, _ := newRunner(&fakeRemote{}, "")
	assert.Equal(t, contracts.ModeMock, r.Mode())

	r.Credentials().Set("token")
	assert.Equal(t, contracts.ModeRemote, r.Mode())

	noRemote, _, _ := newRunner(nil, "token")
	assert.Equal(t, contracts.ModeMock, noRemote.Mode(), "credential without a remote client stays mock")
}

func TestRunMock(t *testing.T) {
	r, ledger, pub := newRunner(nil, "")

	var stages []contracts.Stage
	result, err := r.Run(context.Background(), nvda, func(ev contracts.StageEvent) {
		stages = append(stages, ev.Stage)
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.ModeMock, result.Mode)
	assert.Equal(t, "NVDA", result.Event.Ticker)
	assert.True(t, result.IsComplete())
	assert.Equal(t, contracts.AllStages(), stages)
	assert.Equal(t, []string{result.RunID}, pub.published)

	stats, err := ledger.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.Stats{RunCount: 1, VetoCount: 0, AuditCount: 5}, stats)
}

func TestRunRemote(t *testing.T) {
	remote := &fakeRemote{result: remoteResult()}
	r, ledger, pub := newRunner(remote, "token")

	var events []contracts.StageEvent
	result, err := r.Run(context.Background(), nvda, func(ev contracts.StageEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	assert.Equal(t, "token", remote.credential)
	assert.Equal(t, "run-42", remote.polled)
	assert.Equal(t, "run-42", result.RunID)
	assert.Equal(t, contracts.ModeRemote, result.Mode)
	assert.Equal(t, "NVDA", result.Event.Ticker)

	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, i == 4, ev.Final)
		assert.Equal(t, "run-42", ev.RunID)
		assert.NotEmpty(t, ev.MessageID)
	}
	assert.Equal(t, []string{"run-42"}, pub.published)

	entries, err := ledger.Entries(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestRunRemoteKeepsDispatchedRunID(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data", "runs")

	hostile := remoteResult()
	hostile.RunID = "x/../../../escaped"
	remote := &fakeRemote{result: hostile}

	r, ledger, _ := newRunner(remote, "token")
	r.WithPublisher(publish.New(dataDir, logger.Nop()))

	result, err := r.Run(context.Background(), nvda, nil)
	require.NoError(t, err)
	assert.Equal(t, "run-42", result.RunID)

	_, err = os.Stat(filepath.Join(dataDir, publish.ResultFile("run-42")))
	assert.NoError(t, err, "result published under the dispatched id")

	var outside []string
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if filepath.Dir(path) != dataDir {
			outside = append(outside, path)
		}
		return nil
	}))
	assert.Empty(t, outside, "nothing written outside the data dir")

	entries, err := ledger.Entries(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-42-S5", entries[0].ID)
}

func TestRunRemoteDispatchFallback(t *testing.T) {
	remote := &fakeRemote{dispatchErr: &workflow.DispatchError{StatusCode: 401, Message: "Bad credentials"}}
	r, _, _ := newRunner(remote, "token")

	result, err := r.Run(context.Background(), nvda, nil)
	require.NoError(t, err)

	assert.Equal(t, contracts.ModeMock, result.Mode)
	assert.Equal(t, "Bad credentials", result.FallbackReason)
	assert.Empty(t, remote.polled, "no poll after a failed dispatch")
	assert.True(t, result.IsComplete())
}

func TestRunRemotePollTimeout(t *testing.T) {
	remote := &fakeRemote{pollErr: workflow.ErrPollTimeout}
	r, ledger, pub := newRunner(remote, "token")

	result, err := r.Run(context.Background(), nvda, nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, workflow.ErrPollTimeout))
	assert.Empty(t, pub.published)

	stats, err := ledger.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.RunCount)
}

func TestRunCancelled(t *testing.T) {
	rng := agents.NewLockedSource(1)
	sim := agents.NewSimulator(rng, agents.DefaultRiskLimits())
	orch := brain.NewOrchestrator(sim, rng, brain.DefaultPacing(), logger.Nop())
	r := NewRunner(orch, nil, nil, nil, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, nvda, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// tradedResult is remoteResult with prices and an execution plan
func tradedResult() *contracts.RunResult {
	result := remoteResult()
	result.Signal.EntryPrice = 100
	result.Signal.TakeProfit = 110
	result.Signal.StopLoss = 95
	result.Execution.DurationMin = 20
	result.Execution.ChildOrders = 4
	result.Execution.ExpectedSlippageBps = 3
	return result
}

func newTrackedRunner(remote Remote) (*Runner, *audit.Analyzer, *sizing.Sizer) {
	r, ledger, _ := newRunner(remote, "token")
	rng := agents.NewLockedSource(11)

	analyzer := audit.NewAnalyzer(ledger, 0, logger.Nop())
	sizer := sizing.NewSizer(sizing.DefaultConfig(), sizing.NewMemoryStore(), rng, logger.Nop())
	r.WithFills(execution.NewSimulator(rng, 0, logger.Nop())).
		WithTracker(analyzer).
		WithSizer(sizer)
	return r, analyzer, sizer
}

func TestRunTracksFillAndPerformance(t *testing.T) {
	r, analyzer, sizer := newTrackedRunner(&fakeRemote{result: tradedResult()})

	result, err := r.Run(context.Background(), nvda, nil)
	require.NoError(t, err)

	require.NotNil(t, result.Fill)
	assert.Equal(t, contracts.StrategyTWAP, result.Fill.Strategy)
	assert.Equal(t, contracts.SideBuy, result.Fill.Side)
	assert.Len(t, result.Fill.Children, 4)
	assert.Greater(t, result.Fill.FilledQty, 0.0)

	require.NotNil(t, result.Performance)
	assert.Equal(t, contracts.OutcomeWin, result.Performance.Outcome)
	assert.Greater(t, result.Performance.PnLBps, 900.0)
	require.NotNil(t, result.Performance.RLSizePct)
	assert.Contains(t, sizing.Actions, *result.Performance.RLSizePct)
	assert.Equal(t, 8.0, result.Signal.SizePct, "advice never overrides the signal size")

	summary, err := analyzer.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalRuns)
	assert.Equal(t, 1, summary.ExecutedTrades)
	assert.Equal(t, result.Fill.ActualSlippageBps, summary.RecentTrades[0].ActualSlippageBps)

	policy := sizer.Policy()
	assert.Equal(t, 1, policy.Step, "learned from the executed trade")
	assert.Equal(t, 5.0, policy.Policy["high|neutral|ok|normal"].BestActionPct, "credited to the size taken")
}

func TestRunTracksVetoWithoutLearning(t *testing.T) {
	vetoed := tradedResult()
	vetoed.Vetoed = true
	vetoed.Risk.Veto = true
	vetoed.Execution.Status = contracts.ExecutionRejected
	r, analyzer, sizer := newTrackedRunner(&fakeRemote{result: vetoed})

	result, err := r.Run(context.Background(), nvda, nil)
	require.NoError(t, err)

	assert.Nil(t, result.Fill)
	require.NotNil(t, result.Performance)
	assert.Equal(t, contracts.OutcomeVetoed, result.Performance.Outcome)
	assert.Zero(t, sizer.Policy().Step)

	summary, err := analyzer.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.VetoedTrades)
	assert.Zero(t, summary.ExecutedTrades)
}

type failingFills struct{}

func (failingFills) Simulate(*contracts.RunResult) (*contracts.FillReport, error) {
	return nil, errors.New("book unavailable")
}

func TestRunFillFailureStillRecords(t *testing.T) {
	r, analyzer, _ := newTrackedRunner(&fakeRemote{result: tradedResult()})
	r.WithFills(failingFills{})

	result, err := r.Run(context.Background(), nvda, nil)
	require.NoError(t, err)

	assert.Nil(t, result.Fill)
	require.NotNil(t, result.Performance)
	assert.InDelta(t, 997, result.Performance.PnLBps, 1e-9, "plan slippage stands in")

	trades, err := analyzer.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, trades.ExecutedTrades)
}
