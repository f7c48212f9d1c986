package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/pkg/logger"
)

// fixedSource returns the same draw every time
type fixedSource struct{ f float64 }

func (s fixedSource) Float64() float64 { return s.f }
func (s fixedSource) Intn(n int) int   { return 0 }

func TestNewOrderBookSeedsBothSides(t *testing.T) {
	book := NewOrderBook("NVDA", 100, 10, fixedSource{f: 0.5})

	bid, ok := book.BestBid()
	require.True(t, ok)
	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.InDelta(t, 99.95, bid, 1e-9)
	assert.InDelta(t, 100.05, ask, 1e-9)

	mid, _ := book.Mid()
	spread, _ := book.SpreadBps()
	assert.InDelta(t, 100, mid, 1e-9)
	assert.InDelta(t, 10, spread, 1e-6)

	depth := book.Depth(3)
	require.Len(t, depth.Bids, 3)
	require.Len(t, depth.Asks, 3)
	assert.Equal(t, []float64{99.95, 99.9, 99.85}, []float64{depth.Bids[0].Price, depth.Bids[1].Price, depth.Bids[2].Price})
	assert.Equal(t, []float64{100.05, 100.1, 100.15}, []float64{depth.Asks[0].Price, depth.Asks[1].Price, depth.Asks[2].Price})
	assert.Equal(t, 1750.0, depth.Asks[0].Qty)
	assert.Greater(t, depth.Asks[0].Qty, depth.Asks[1].Qty, "sizes shrink away from the touch")

	assert.Len(t, book.Depth(0).Asks, seedLevels)
}

func TestMatchMarketPriceTimePriority(t *testing.T) {
	book := newOrderBook("NVDA", 5)
	require.NoError(t, book.AddLimit(Bid, 99, 10))
	require.NoError(t, book.AddLimit(Ask, 101, 100))
	require.NoError(t, book.AddLimit(Ask, 102, 100))
	require.NoError(t, book.AddLimit(Ask, 101, 50))

	m := book.MatchMarket(contracts.SideBuy, 180)

	assert.Equal(t, []Fill{{Price: 101, Qty: 100}, {Price: 101, Qty: 50}, {Price: 102, Qty: 30}}, m.Fills)
	assert.Equal(t, 180.0, m.FilledQty)
	assert.Zero(t, m.UnfilledQty)
	assert.InDelta(t, 18210.0/180, m.AvgFillPrice, 1e-9)
	assert.InDelta(t, (18210.0/180-100)/100*1e4, m.SlippageBps, 1e-6)

	ask, _ := book.BestAsk()
	assert.Equal(t, 102.0, ask)
	assert.Equal(t, 70.0, book.Depth(1).Asks[0].Qty, "partial level keeps the remainder")
}

func TestMatchMarketSellExhaustsBook(t *testing.T) {
	book := newOrderBook("SPY", 5)
	require.NoError(t, book.AddLimit(Ask, 101, 10))
	require.NoError(t, book.AddLimit(Bid, 99, 20))
	require.NoError(t, book.AddLimit(Bid, 98, 20))

	m := book.MatchMarket(contracts.SideSell, 50)

	assert.Equal(t, 40.0, m.FilledQty)
	assert.Equal(t, 10.0, m.UnfilledQty)
	assert.InDelta(t, 98.5, m.AvgFillPrice, 1e-9)
	assert.InDelta(t, 150, m.SlippageBps, 1e-6)

	_, ok := book.BestBid()
	assert.False(t, ok)
	_, ok = book.Mid()
	assert.False(t, ok)

	empty := book.MatchMarket(contracts.SideSell, 5)
	assert.Zero(t, empty.FilledQty)
	assert.Zero(t, empty.SlippageBps)
}

func TestAddLimitRejectsBadOrders(t *testing.T) {
	book := newOrderBook("SPY", 5)
	assert.Error(t, book.AddLimit("middle", 100, 1))
	assert.Error(t, book.AddLimit(Bid, 0, 1))
	assert.Error(t, book.AddLimit(Ask, 100, -1))
}

func plannedRun(action contracts.Action, strategy string, children int) *contracts.RunResult {
	size := 5.0
	return &contracts.RunResult{
		RunID:  "run-1",
		Status: contracts.StatusComplete,
		Signal: &contracts.SignalPayload{
			Action: action, Ticker: "NVDA", SizePct: 8, EntryPrice: 100,
		},
		Risk: &contracts.RiskPayload{Verdict: contracts.VerdictApprovedWithConditions, AdjustedSizePct: &size},
		Execution: &contracts.ExecutionPayload{
			Strategy:            strategy,
			DurationMin:         20,
			ChildOrders:         children,
			ExpectedSlippageBps: 3,
			Status:              contracts.ExecutionSimulatedFill,
		},
	}
}

func newTestSimulator() *Simulator {
	return NewSimulator(fixedSource{f: 0.5}, 0, logger.Nop())
}

func TestSimulateTWAP(t *testing.T) {
	report, err := newTestSimulator().Simulate(plannedRun(contracts.ActionLong, contracts.StrategyTWAP, 4))
	require.NoError(t, err)

	assert.Equal(t, "NVDA", report.Ticker)
	assert.Equal(t, contracts.SideBuy, report.Side)
	assert.Equal(t, contracts.StrategyTWAP, report.Strategy)
	assert.InDelta(t, 5000, report.TargetQty, 1e-9, "adjusted 5% of a 10M NAV at 100")
	assert.InDelta(t, 100, report.ArrivalMid, 1e-9)
	assert.InDelta(t, 100, report.FillRatePct, 1e-9)
	assert.InDelta(t, 0, report.UnfilledQty, 1e-9)
	assert.Equal(t, 1200.0, report.DurationSec)

	require.Len(t, report.Children, 4)
	for i, c := range report.Children {
		assert.Equal(t, i+1, c.Index)
		assert.InDelta(t, 1250, c.TargetQty, 1e-9)
		assert.Equal(t, float64(i)*300, c.OffsetSec)
	}
	// first slice fits inside the touch: half of the 3 bps spread
	assert.InDelta(t, 1.5, report.Children[0].SlippageBps, 1e-6)
	assert.Equal(t, 1, report.Children[0].Levels)

	assert.Greater(t, report.AvgFillPrice, report.ArrivalMid)
	assert.GreaterOrEqual(t, report.ActualSlippageBps, 1.5)
	assert.InDelta(t, report.ActualSlippageBps-3, report.SlippageDeltaBps, 1e-9)
	assert.InDelta(t, report.AvgFillPrice*report.FilledQty, report.NotionalUSD, 1e-6)
}

func TestSimulateVWAPFollowsVolumeCurve(t *testing.T) {
	report, err := newTestSimulator().Simulate(plannedRun(contracts.ActionLong, contracts.StrategyVWAP, 4))
	require.NoError(t, err)

	require.Len(t, report.Children, 4)
	assert.Equal(t, contracts.StrategyVWAP, report.Strategy)
	assert.InDelta(t, 5000*0.085/0.236, report.Children[0].TargetQty, 1e-6)
	assert.InDelta(t, 5000*0.041/0.236, report.Children[3].TargetQty, 1e-6)

	var total float64
	for _, c := range report.Children {
		total += c.TargetQty
	}
	assert.InDelta(t, 5000, total, 1e-6)

	full, err := newTestSimulator().Simulate(plannedRun(contracts.ActionLong, contracts.StrategyVWAP, 0))
	require.NoError(t, err)
	assert.Len(t, full.Children, len(vwapCurve))
}

func TestSimulateMarketShort(t *testing.T) {
	report, err := newTestSimulator().Simulate(plannedRun(contracts.ActionShort, contracts.StrategyMarket, 0))
	require.NoError(t, err)

	assert.Equal(t, contracts.SideSell, report.Side)
	assert.Equal(t, contracts.StrategyMarket, report.Strategy)
	require.Len(t, report.Children, 1)
	assert.Zero(t, report.Children[0].OffsetSec)
	assert.Zero(t, report.DurationSec)
	assert.Less(t, report.AvgFillPrice, report.ArrivalMid)
	assert.Greater(t, report.Children[0].Levels, 1, "5000 shares walk several bid levels")
}

func TestSimulateLimitRoutesToTWAP(t *testing.T) {
	report, err := newTestSimulator().Simulate(plannedRun(contracts.ActionLong, contracts.StrategyLimit, 0))
	require.NoError(t, err)
	assert.Equal(t, contracts.StrategyTWAP, report.Strategy)
	assert.Len(t, report.Children, defaultTWAPSlices)
}

func TestSimulateThinBookPartialFill(t *testing.T) {
	run := plannedRun(contracts.ActionLong, contracts.StrategyTWAP, 2)
	run.Signal.EntryPrice = 1

	report, err := newTestSimulator().Simulate(run)
	require.NoError(t, err)
	assert.InDelta(t, 500000, report.TargetQty, 1e-6)
	assert.Less(t, report.FillRatePct, 100.0)
	assert.Greater(t, report.UnfilledQty, 0.0)
	assert.InDelta(t, report.TargetQty, report.FilledQty+report.UnfilledQty, 1e-6)
}

func TestSimulateFallsBackToSignalSize(t *testing.T) {
	run := plannedRun(contracts.ActionLong, contracts.StrategyTWAP, 2)
	run.Risk = nil
	run.Signal.SizePct = 2

	report, err := newTestSimulator().Simulate(run)
	require.NoError(t, err)
	assert.InDelta(t, 2000, report.TargetQty, 1e-9)
}

func TestSimulateNothingToExecute(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *contracts.RunResult)
	}{
		{"vetoed", func(r *contracts.RunResult) { r.Vetoed = true }},
		{"no plan", func(r *contracts.RunResult) { r.Execution = nil }},
		{"rejected plan", func(r *contracts.RunResult) {
			r.Execution = &contracts.ExecutionPayload{Status: contracts.ExecutionRejected, Reason: "halted"}
		}},
		{"hold", func(r *contracts.RunResult) { r.Signal.Action = contracts.ActionHold }},
		{"no price", func(r *contracts.RunResult) { r.Signal.EntryPrice = 0 }},
		{"no signal", func(r *contracts.RunResult) { r.Signal = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := plannedRun(contracts.ActionLong, contracts.StrategyTWAP, 4)
			tt.mutate(run)
			_, err := newTestSimulator().Simulate(run)
			assert.ErrorIs(t, err, ErrNothingToExecute)
		})
	}

	_, err := newTestSimulator().Simulate(nil)
	assert.ErrorIs(t, err, ErrNothingToExecute)
}
