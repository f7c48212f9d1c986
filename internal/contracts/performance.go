package contracts

// Order sides on the simulated book
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Execution strategies the fill simulator understands besides TWAP and LIMIT
const (
	StrategyVWAP   = "VWAP"
	StrategyMarket = "MARKET"
)

// Trade outcomes
const (
	OutcomeWin    = "WIN"
	OutcomeLoss   = "LOSS"
	OutcomeFlat   = "FLAT"
	OutcomeVetoed = "VETOED"
)

// ChildFill is one child order matched against the book
type ChildFill struct {
	Index        int     `json:"index"`
	TargetQty    float64 `json:"target_qty"`
	FilledQty    float64 `json:"filled_qty"`
	AvgFillPrice float64 `json:"avg_fill_price"`
	SlippageBps  float64 `json:"slippage_bps"`
	Levels       int     `json:"levels"`
	OffsetSec    float64 `json:"offset_sec"`
}

// FillReport is an execution plan replayed through the simulated order book.
// SlippageDeltaBps is actual minus expected; positive is worse than planned.
type FillReport struct {
	Ticker              string      `json:"ticker"`
	Side                string      `json:"side"`
	Strategy            string      `json:"strategy"`
	TargetQty           float64     `json:"target_qty"`
	FilledQty           float64     `json:"filled_qty"`
	UnfilledQty         float64     `json:"unfilled_qty"`
	FillRatePct         float64     `json:"fill_rate_pct"`
	ArrivalMid          float64     `json:"arrival_mid"`
	AvgFillPrice        float64     `json:"avg_fill_price"`
	ExpectedSlippageBps float64     `json:"expected_slippage_bps"`
	ActualSlippageBps   float64     `json:"actual_slippage_bps"`
	SlippageDeltaBps    float64     `json:"slippage_delta_bps"`
	NotionalUSD         float64     `json:"notional_usd"`
	DurationSec         float64     `json:"duration_sec"`
	Children            []ChildFill `json:"children"`
}

// TradeRecord is one run as seen by the performance tracker
type TradeRecord struct {
	RunID               string   `json:"run_id"`
	Timestamp           string   `json:"timestamp"`
	Ticker              string   `json:"ticker"`
	Action              Action   `json:"action"`
	Confidence          float64  `json:"confidence,omitempty"`
	Regime              string   `json:"regime,omitempty"`
	EntryPrice          float64  `json:"entry_price"`
	TakeProfit          float64  `json:"take_profit"`
	StopLoss            float64  `json:"stop_loss"`
	SizePct             float64  `json:"size_pct"`
	NAVUSD              float64  `json:"nav_usd"`
	Strategy            string   `json:"strategy"`
	FillRatePct         float64  `json:"fill_rate_pct"`
	AvgFillPrice        float64  `json:"avg_fill_price"`
	ActualSlippageBps   float64  `json:"actual_slippage_bps"`
	ExpectedSlippageBps float64  `json:"expected_slippage_bps"`
	NotionalUSD         float64  `json:"notional_usd"`
	PnLBps              float64  `json:"pnl_bps"`
	PnLUSD              float64  `json:"pnl_usd"`
	Outcome             string   `json:"outcome"`
	RiskVerdict         string   `json:"risk_verdict"`
	AuditStatus         string   `json:"audit_status"`
	LogID               string   `json:"log_id"`
	SignalSizePct       float64  `json:"llm_size_pct"`
	RLSizePct           *float64 `json:"rl_size_pct"`
}

// TradeOutcome is the short form attached to a RunResult
type TradeOutcome struct {
	Outcome   string   `json:"outcome"`
	PnLBps    float64  `json:"pnl_bps"`
	RLSizePct *float64 `json:"rl_size_pct,omitempty"`
}

// TickerPerformance aggregates executed trades of one ticker
type TickerPerformance struct {
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	PnLBps float64 `json:"pnl_bps"`
}

// PerformanceSummary is served at GET /api/performance
type PerformanceSummary struct {
	TotalRuns      int     `json:"total_runs"`
	ExecutedTrades int     `json:"executed_trades"`
	VetoedTrades   int     `json:"vetoed_trades"`
	WinRatePct     float64 `json:"win_rate_pct"`
	CumPnLBps      float64 `json:"cum_pnl_bps"`
	CumPnLUSD      float64 `json:"cum_pnl_usd"`
	AvgWinBps      float64 `json:"avg_win_bps"`
	AvgLossBps     float64 `json:"avg_loss_bps"`
	ProfitFactor   float64 `json:"profit_factor"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdownBps float64 `json:"max_drawdown_bps"`
	AvgSlippageBps float64 `json:"avg_slippage_bps"`
	RLAdoptionPct  float64 `json:"rl_adoption_pct"`

	ByTicker     map[string]TickerPerformance `json:"by_ticker"`
	RecentTrades []TradeRecord                `json:"recent_trades"`
}
