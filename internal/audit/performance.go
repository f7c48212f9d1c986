package audit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/metrics"
	"github.com/wonny/tradecraft/pkg/logger"
)

// DefaultTradeLimit bounds the persisted trade log
const DefaultTradeLimit = 1000

// recentTrades is how many trades the summary carries
const recentTrades = 10

// tradingDays annualises the per-run Sharpe (one run = one day)
const tradingDays = 252

// Analyzer turns finished runs into trade records and summarises them.
// ⭐ SSOT: 성과 분석 로직은 여기서만
type Analyzer struct {
	ledger  *Ledger
	navUSD  float64
	metrics *metrics.Recorder
	logger  *logger.Logger
	now     func() time.Time
}

// NewAnalyzer creates an analyzer persisting through ledger's store
func NewAnalyzer(ledger *Ledger, navUSD float64, log *logger.Logger) *Analyzer {
	return &Analyzer{
		ledger: ledger,
		navUSD: navUSD,
		logger: log,
		now:    time.Now,
	}
}

// WithMetrics attaches a metrics recorder
func (a *Analyzer) WithMetrics(rec *metrics.Recorder) *Analyzer {
	a.metrics = rec
	return a
}

// Record builds the trade record of result and appends it to the trade log.
// fill and rlSizePct may be nil.
func (a *Analyzer) Record(ctx context.Context, result *contracts.RunResult, fill *contracts.FillReport, rlSizePct *float64) (contracts.TradeRecord, error) {
	if result == nil {
		return contracts.TradeRecord{}, fmt.Errorf("audit: nil run result")
	}

	trade := TradeFor(result, fill, a.navUSD, a.now())
	trade.RLSizePct = rlSizePct

	if err := a.ledger.appendTrade(ctx, trade); err != nil {
		return contracts.TradeRecord{}, err
	}

	a.metrics.TradeRecorded(trade.Outcome)
	a.logger.WithRun(trade.RunID).WithTicker(trade.Ticker).WithFields(map[string]interface{}{
		"outcome": trade.Outcome,
		"pnl_bps": trade.PnLBps,
	}).Debug("Trade recorded")

	return trade, nil
}

// Analyze summarises every persisted trade
func (a *Analyzer) Analyze(ctx context.Context) (*contracts.PerformanceSummary, error) {
	trades, err := a.ledger.Trades(ctx)
	if err != nil {
		return nil, err
	}
	summary := Summarize(trades)
	return &summary, nil
}

// TradeFor derives a trade record. PnL is the distance to take-profit in
// the trade's direction less the slippage paid; a veto books nothing.
// Without a fill report the plan's own estimates stand in.
func TradeFor(result *contracts.RunResult, fill *contracts.FillReport, navUSD float64, at time.Time) contracts.TradeRecord {
	trade := contracts.TradeRecord{
		RunID:       result.RunID,
		Timestamp:   at.UTC().Format(contracts.TimestampFormat),
		Ticker:      strings.ToUpper(result.Event.Ticker),
		Action:      contracts.ActionHold,
		NAVUSD:      navUSD,
		Strategy:    "UNKNOWN",
		RiskVerdict: "UNKNOWN",
		AuditStatus: "UNKNOWN",
	}

	if s := result.Signal; s != nil {
		trade.Action = s.Action
		trade.EntryPrice = s.EntryPrice
		trade.TakeProfit = s.TakeProfit
		trade.StopLoss = s.StopLoss
		trade.SignalSizePct = s.SizePct
		trade.SizePct = s.SizePct
		if trade.Ticker == "" {
			trade.Ticker = s.Ticker
		}
	}
	if r := result.Researcher; r != nil {
		trade.Confidence = r.Confidence
		trade.Regime = r.Regime
	}
	if r := result.Risk; r != nil {
		trade.RiskVerdict = r.Verdict
		if size := r.EffectiveSize(); size > 0 {
			trade.SizePct = size
		}
	}
	if e := result.Execution; e != nil {
		trade.ExpectedSlippageBps = e.ExpectedSlippageBps
		if e.Strategy != "" {
			trade.Strategy = e.Strategy
		}
	}
	if s := result.Supervisor; s != nil {
		trade.AuditStatus = s.AuditStatus
		trade.LogID = s.LogID
	}

	// 체결
	if fill != nil {
		trade.Strategy = fill.Strategy
		trade.FillRatePct = fill.FillRatePct
		trade.AvgFillPrice = fill.AvgFillPrice
		trade.ActualSlippageBps = fill.ActualSlippageBps
		trade.NotionalUSD = fill.NotionalUSD
	} else {
		if !result.Vetoed {
			trade.FillRatePct = 100
		}
		trade.AvgFillPrice = trade.EntryPrice
		trade.ActualSlippageBps = trade.ExpectedSlippageBps
		trade.NotionalUSD = navUSD * trade.SizePct / 100
	}

	// 손익
	if result.Vetoed || (result.Risk != nil && result.Risk.Veto) {
		trade.Outcome = contracts.OutcomeVetoed
		return trade
	}

	var pnl float64
	if trade.EntryPrice > 0 {
		switch trade.Action {
		case contracts.ActionLong:
			pnl = (trade.TakeProfit - trade.EntryPrice) / trade.EntryPrice * 1e4
		case contracts.ActionShort:
			pnl = (trade.EntryPrice - trade.TakeProfit) / trade.EntryPrice * 1e4
		}
	}
	pnl -= trade.ActualSlippageBps

	trade.PnLBps = round(pnl, 4)
	trade.PnLUSD = round(trade.NotionalUSD*pnl/1e4, 2)

	switch {
	case pnl > 0:
		trade.Outcome = contracts.OutcomeWin
	case pnl < 0:
		trade.Outcome = contracts.OutcomeLoss
	default:
		trade.Outcome = contracts.OutcomeFlat
	}
	return trade
}

// Summarize computes the performance summary of trades (oldest first).
// Only WIN and LOSS trades count as executed.
func Summarize(trades []contracts.TradeRecord) contracts.PerformanceSummary {
	summary := contracts.PerformanceSummary{
		ByTicker:     map[string]contracts.TickerPerformance{},
		RecentTrades: []contracts.TradeRecord{},
	}
	if len(trades) == 0 {
		return summary
	}

	var (
		executed   []contracts.TradeRecord
		pnl        []float64
		slippage   float64
		rlAdvised  int
		cumPnLUSD  float64
		cumPnLBps  float64
		vetoedRuns int
	)
	for _, t := range trades {
		slippage += t.ActualSlippageBps
		if t.RLSizePct != nil {
			rlAdvised++
		}
		switch t.Outcome {
		case contracts.OutcomeVetoed:
			vetoedRuns++
		case contracts.OutcomeWin, contracts.OutcomeLoss:
			executed = append(executed, t)
			pnl = append(pnl, t.PnLBps)
			cumPnLBps += t.PnLBps
			cumPnLUSD += t.PnLUSD

			tp := summary.ByTicker[t.Ticker]
			tp.Trades++
			if t.Outcome == contracts.OutcomeWin {
				tp.Wins++
			}
			tp.PnLBps = round(tp.PnLBps+t.PnLBps, 4)
			summary.ByTicker[t.Ticker] = tp
		}
	}

	total := len(trades)
	summary.TotalRuns = total
	summary.ExecutedTrades = len(executed)
	summary.VetoedTrades = vetoedRuns
	summary.CumPnLBps = round(cumPnLBps, 2)
	summary.CumPnLUSD = round(cumPnLUSD, 2)
	summary.AvgSlippageBps = round(slippage/float64(total), 2)
	summary.RLAdoptionPct = round(float64(rlAdvised)/float64(total)*100, 1)

	// 트레이딩 지표
	avgWin, avgLoss := calculateAvgWinLoss(pnl)
	summary.WinRatePct = round(calculateWinRate(pnl)*100, 1)
	summary.AvgWinBps = round(avgWin, 2)
	summary.AvgLossBps = round(avgLoss, 2)
	summary.ProfitFactor = round(calculateProfitFactor(pnl), 2)

	// 리스크 지표
	summary.SharpeRatio = round(calculateSharpe(pnl), 3)
	summary.MaxDrawdownBps = round(calculateMaxDrawdown(pnl), 2)

	start := total - recentTrades
	if start < 0 {
		start = 0
	}
	summary.RecentTrades = append(summary.RecentTrades, trades[start:]...)

	return summary
}

// calculateSharpe annualises mean/stddev of per-run PnL (sample stddev)
func calculateSharpe(pnl []float64) float64 {
	if len(pnl) < 2 {
		return 0
	}

	var sum float64
	for _, p := range pnl {
		sum += p
	}
	mean := sum / float64(len(pnl))

	var variance float64
	for _, p := range pnl {
		diff := p - mean
		variance += diff * diff
	}
	variance /= float64(len(pnl) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDays)
}

// calculateMaxDrawdown is the largest peak-to-trough fall of cumulative PnL, in bps
func calculateMaxDrawdown(pnl []float64) float64 {
	var cum, peak, maxDD float64
	for _, p := range pnl {
		cum += p
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// calculateWinRate returns the winning share as a fraction
func calculateWinRate(pnl []float64) float64 {
	if len(pnl) == 0 {
		return 0
	}

	wins := 0
	for _, p := range pnl {
		if p > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(pnl))
}

// calculateAvgWinLoss returns the mean win and the mean (negative) loss
func calculateAvgWinLoss(pnl []float64) (float64, float64) {
	var sumWin, sumLoss float64
	var countWin, countLoss int

	for _, p := range pnl {
		if p > 0 {
			sumWin += p
			countWin++
		} else if p < 0 {
			sumLoss += p
			countLoss++
		}
	}

	avgWin := 0.0
	if countWin > 0 {
		avgWin = sumWin / float64(countWin)
	}
	avgLoss := 0.0
	if countLoss > 0 {
		avgLoss = sumLoss / float64(countLoss)
	}
	return avgWin, avgLoss
}

// calculateProfitFactor is gross win over gross loss; 0 without losses
func calculateProfitFactor(pnl []float64) float64 {
	var totalWin, totalLoss float64

	for _, p := range pnl {
		if p > 0 {
			totalWin += p
		} else if p < 0 {
			totalLoss += math.Abs(p)
		}
	}

	if totalLoss == 0 {
		return 0
	}
	return totalWin / totalLoss
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
