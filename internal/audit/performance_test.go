package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/pkg/logger"
)

var tradeAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// targetRun is approvedRun priced at 100 with take-profit 110
func targetRun(id string) *contracts.RunResult {
	r := approvedRun(id)
	r.Signal.EntryPrice = 100
	r.Signal.TakeProfit = 110
	r.Signal.StopLoss = 95
	return r
}

func TestTradeFor(t *testing.T) {
	short := targetRun("run-3")
	short.Signal.Action = contracts.ActionShort
	short.Signal.TakeProfit = 90

	wrongWay := targetRun("run-4")
	wrongWay.Signal.Action = contracts.ActionShort

	flat := targetRun("run-5")
	flat.Signal.TakeProfit = 100
	flat.Execution.ExpectedSlippageBps = 0

	tests := []struct {
		name        string
		result      *contracts.RunResult
		fill        *contracts.FillReport
		wantOutcome string
		wantPnLBps  float64
		wantPnLUSD  float64
		wantFill    float64
	}{
		{
			name:        "long without fill uses plan slippage",
			result:      targetRun("run-1"),
			wantOutcome: contracts.OutcomeWin,
			wantPnLBps:  995.8,
			wantPnLUSD:  49790,
			wantFill:    100,
		},
		{
			name:   "long with fill uses actual slippage",
			result: targetRun("run-2"),
			fill: &contracts.FillReport{
				Strategy: contracts.StrategyTWAP, FillRatePct: 99, AvgFillPrice: 100.02,
				ActualSlippageBps: 2, NotionalUSD: 499000,
			},
			wantOutcome: contracts.OutcomeWin,
			wantPnLBps:  998,
			wantPnLUSD:  49800.2,
			wantFill:    99,
		},
		{
			name:        "short",
			result:      short,
			wantOutcome: contracts.OutcomeWin,
			wantPnLBps:  995.8,
			wantPnLUSD:  49790,
			wantFill:    100,
		},
		{
			name:        "short with target above entry",
			result:      wrongWay,
			wantOutcome: contracts.OutcomeLoss,
			wantPnLBps:  -1004.2,
			wantPnLUSD:  -50210,
			wantFill:    100,
		},
		{
			name:        "flat",
			result:      flat,
			wantOutcome: contracts.OutcomeFlat,
			wantFill:    100,
		},
		{
			name:        "vetoed books nothing",
			result:      vetoedRun("run-6"),
			wantOutcome: contracts.OutcomeVetoed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := TradeFor(tt.result, tt.fill, 10_000_000, tradeAt)

			assert.Equal(t, tt.result.RunID, trade.RunID)
			assert.Equal(t, "2026-01-02T03:04:05Z", trade.Timestamp)
			assert.Equal(t, tt.wantOutcome, trade.Outcome)
			assert.InDelta(t, tt.wantPnLBps, trade.PnLBps, 1e-9)
			assert.InDelta(t, tt.wantPnLUSD, trade.PnLUSD, 1e-6)
			assert.Equal(t, tt.wantFill, trade.FillRatePct)
		})
	}
}

func TestTradeForCarriesRunDetails(t *testing.T) {
	trade := TradeFor(targetRun("run-1"), nil, 10_000_000, tradeAt)

	assert.Equal(t, "NVDA", trade.Ticker)
	assert.Equal(t, contracts.ActionLong, trade.Action)
	assert.Equal(t, 0.8, trade.Confidence)
	assert.Equal(t, contracts.RegimeRiskOn, trade.Regime)
	assert.Equal(t, 5.0, trade.SizePct, "risk-adjusted size")
	assert.Equal(t, 8.0, trade.SignalSizePct)
	assert.Equal(t, contracts.StrategyTWAP, trade.Strategy)
	assert.Equal(t, 500000.0, trade.NotionalUSD)
	assert.Equal(t, contracts.VerdictApprovedWithConditions, trade.RiskVerdict)
	assert.Equal(t, contracts.AuditCompliant, trade.AuditStatus)
	assert.Equal(t, "TRD-20260101-0042", trade.LogID)
	assert.Nil(t, trade.RLSizePct)
}

func pnlTrade(ticker string, pnl float64) contracts.TradeRecord {
	outcome := contracts.OutcomeFlat
	if pnl > 0 {
		outcome = contracts.OutcomeWin
	} else if pnl < 0 {
		outcome = contracts.OutcomeLoss
	}
	return contracts.TradeRecord{Ticker: ticker, PnLBps: pnl, PnLUSD: pnl * 10, Outcome: outcome, ActualSlippageBps: 2}
}

func TestSummarize(t *testing.T) {
	rl := 3.0
	trades := []contracts.TradeRecord{
		pnlTrade("NVDA", 100),
		pnlTrade("NVDA", -50),
		pnlTrade("SPY", 30),
		{Ticker: "ZZZZ", Outcome: contracts.OutcomeVetoed, ActualSlippageBps: 2},
		pnlTrade("SPY", 0),
		pnlTrade("SPY", -80),
		pnlTrade("NVDA", 20),
	}
	trades[0].RLSizePct = &rl
	trades[1].RLSizePct = &rl

	s := Summarize(trades)

	assert.Equal(t, 7, s.TotalRuns)
	assert.Equal(t, 5, s.ExecutedTrades, "vetoed and flat runs are not executed trades")
	assert.Equal(t, 1, s.VetoedTrades)
	assert.Equal(t, 60.0, s.WinRatePct)
	assert.Equal(t, 20.0, s.CumPnLBps)
	assert.Equal(t, 200.0, s.CumPnLUSD)
	assert.Equal(t, 50.0, s.AvgWinBps)
	assert.Equal(t, -65.0, s.AvgLossBps)
	assert.Equal(t, 1.15, s.ProfitFactor)
	assert.Equal(t, 0.895, s.SharpeRatio)
	assert.Equal(t, 100.0, s.MaxDrawdownBps)
	assert.Equal(t, 2.0, s.AvgSlippageBps)
	assert.Equal(t, 28.6, s.RLAdoptionPct)

	assert.Equal(t, map[string]contracts.TickerPerformance{
		"NVDA": {Trades: 3, Wins: 2, PnLBps: 70},
		"SPY":  {Trades: 2, Wins: 1, PnLBps: -50},
	}, s.ByTicker)
	assert.Len(t, s.RecentTrades, 7)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalRuns)
	assert.NotNil(t, s.ByTicker)
	assert.NotNil(t, s.RecentTrades)
	assert.Empty(t, s.RecentTrades)
}

func TestSummarizeRecentTradesAreTheNewest(t *testing.T) {
	var trades []contracts.TradeRecord
	for i := 0; i < 12; i++ {
		tr := pnlTrade("NVDA", 1)
		tr.RunID = fmt.Sprintf("run-%d", i)
		trades = append(trades, tr)
	}

	s := Summarize(trades)
	require.Len(t, s.RecentTrades, recentTrades)
	assert.Equal(t, "run-2", s.RecentTrades[0].RunID)
	assert.Equal(t, "run-11", s.RecentTrades[9].RunID)
}

func TestPerformanceMath(t *testing.T) {
	tests := []struct {
		name     string
		pnl      []float64
		drawdown float64
		winRate  float64
		factor   float64
	}{
		{"empty", nil, 0, 0, 0},
		{"single win", []float64{10}, 0, 1, 0},
		{"constant series", []float64{5, 5, 5}, 0, 1, 0},
		{"drawdown from a later peak", []float64{10, 20, -40, 5, 50}, 40, 0.8, 85.0 / 40},
		{"losing start", []float64{-10, -10, 30}, 20, 1.0 / 3, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.drawdown, calculateMaxDrawdown(tt.pnl), 1e-9)
			assert.InDelta(t, tt.winRate, calculateWinRate(tt.pnl), 1e-9)
			assert.InDelta(t, tt.factor, calculateProfitFactor(tt.pnl), 1e-9)
		})
	}

	assert.Zero(t, calculateSharpe([]float64{10}), "needs two trades")
	assert.Zero(t, calculateSharpe([]float64{5, 5, 5}), "no dispersion")
	// mean 4, sample stddev sqrt(5030)
	assert.InDelta(t, 4/70.92249290598858*15.874507866387544, calculateSharpe([]float64{100, -50, 30, -80, 20}), 1e-9)
}

func TestAnalyzerRecordAndAnalyze(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore(), 0, logger.Nop())
	analyzer := NewAnalyzer(ledger, 10_000_000, logger.Nop())
	analyzer.now = func() time.Time { return tradeAt }

	rl := 2.0
	trade, err := analyzer.Record(ctx, targetRun("run-1"), nil, &rl)
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeWin, trade.Outcome)
	assert.Equal(t, &rl, trade.RLSizePct)

	_, err = analyzer.Record(ctx, vetoedRun("run-2"), nil, nil)
	require.NoError(t, err)

	// the audit log and the trade log share one state
	_, err = ledger.Record(ctx, approvedRun("run-3"))
	require.NoError(t, err)

	summary, err := analyzer.Analyze(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalRuns)
	assert.Equal(t, 1, summary.ExecutedTrades)
	assert.Equal(t, 1, summary.VetoedTrades)
	assert.Equal(t, 50.0, summary.RLAdoptionPct)

	_, err = analyzer.Record(ctx, nil, nil, nil)
	assert.Error(t, err)
}

func TestTradeLogBounded(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore(), 0, logger.Nop())
	ledger.tradeLimit = 3
	analyzer := NewAnalyzer(ledger, 0, logger.Nop())

	for i := 0; i < 5; i++ {
		_, err := analyzer.Record(ctx, targetRun(fmt.Sprintf("run-%d", i)), nil, nil)
		require.NoError(t, err)
	}

	trades, err := ledger.Trades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "run-2", trades[0].RunID, "oldest dropped first")
	assert.Equal(t, "run-4", trades[2].RunID)
}

func TestFileStoreTrades(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ledger := NewLedger(NewFileStore(dir), 0, logger.Nop())

	_, err := NewAnalyzer(ledger, 0, logger.Nop()).Record(ctx, targetRun("run-1"), nil, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "trades.json"))

	reopened, err := NewFileStore(dir).Load(ctx)
	require.NoError(t, err)
	require.Len(t, reopened.Trades, 1)
	assert.Equal(t, "run-1", reopened.Trades[0].RunID)
}
