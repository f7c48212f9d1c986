package contracts

// Bias is the Researcher's directional read on a ticker
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// Action is a proposed trade direction
type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionHold  Action = "HOLD"
)

// Market regimes
const (
	RegimeRiskOn  = "RISK_ON"
	RegimeRiskOff = "RISK_OFF"
)

// Risk verdicts
const (
	VerdictApproved               = "APPROVED"
	VerdictApprovedWithConditions = "APPROVED_WITH_CONDITIONS"
	VerdictVetoed                 = "VETOED"
)

// Execution strategies and statuses
const (
	StrategyTWAP  = "TWAP"
	StrategyLimit = "LIMIT"

	ExecutionSimulatedFill = "SIMULATED_FILL"
	ExecutionRejected      = "REJECTED"
)

// Supervisor audit statuses and flags
const (
	AuditCompliant    = "COMPLIANT"
	AuditNonCompliant = "NON_COMPLIANT"

	FlagRiskVeto    = "RISK_VETO"
	FlagSizeReduced = "SIZE_REDUCED"
)

// ResearchPayload is emitted by the Researcher (RESEARCH_SIGNAL)
type ResearchPayload struct {
	Signal     Bias     `json:"signal"`
	Confidence float64  `json:"confidence"`
	Summary    string   `json:"summary"`
	Sources    []string `json:"sources"`
	Regime     string   `json:"regime"`
	KeyRisks   []string `json:"key_risks"`
}

// SignalPayload is emitted by the Signal agent (TRADE_PROPOSAL)
type SignalPayload struct {
	Action            Action  `json:"action"`
	Ticker            string  `json:"ticker"`
	SizePct           float64 `json:"size_pct"`
	EntryPrice        float64 `json:"entry_price"`
	StopLoss          float64 `json:"stop_loss"`
	TakeProfit        float64 `json:"take_profit"`
	Rationale         string  `json:"rationale"`
	BacktestSharpe    float64 `json:"backtest_sharpe"`
	ExpectedReturnPct float64 `json:"expected_return_pct"`
}

// RiskMetrics is the fixed-shape check record inside a RiskPayload
type RiskMetrics struct {
	PositionLimitOK bool `json:"position_limit_ok"`
	DrawdownOK      bool `json:"drawdown_ok"`
	LiquidityOK     bool `json:"liquidity_ok"`
}

// RiskPayload is emitted by the Risk Manager (RISK_DECISION).
// AdjustedSizePct is nil on veto and serialises as null.
type RiskPayload struct {
	Verdict         string      `json:"verdict"`
	Veto            bool        `json:"veto"`
	AdjustedSizePct *float64    `json:"adjusted_size_pct"`
	Reason          string      `json:"reason"`
	RiskMetrics     RiskMetrics `json:"risk_metrics"`
}

// EffectiveSize returns the authorised size, 0 when vetoed
func (r *RiskPayload) EffectiveSize() float64 {
	if r == nil || r.AdjustedSizePct == nil {
		return 0
	}
	return *r.AdjustedSizePct
}

// ExecutionPayload is emitted by the Execution agent (EXECUTION_PLAN).
// A rejected plan carries only Status and Reason.
type ExecutionPayload struct {
	Strategy            string   `json:"strategy,omitempty"`
	DurationMin         int      `json:"duration_min,omitempty"`
	ChildOrders         int      `json:"child_orders,omitempty"`
	LimitPrice          *float64 `json:"limit_price,omitempty"`
	ExpectedSlippageBps float64  `json:"expected_slippage_bps,omitempty"`
	Venue               string   `json:"venue,omitempty"`
	Status              string   `json:"status"`
	Reason              string   `json:"reason,omitempty"`
	Notes               string   `json:"notes,omitempty"`
}

// SupervisorPayload is emitted by the Supervisor (AUDIT_COMPLETE)
type SupervisorPayload struct {
	AuditStatus             string   `json:"audit_status"`
	CircuitBreakerTriggered bool     `json:"circuit_breaker_triggered"`
	HumanReviewRequired     bool     `json:"human_review_required"`
	Flags                   []string `json:"flags"`
	ComplianceNotes         string   `json:"compliance_notes"`
	LogID                   string   `json:"log_id"`
	DecisionChainComplete   bool     `json:"decision_chain_complete"`
	TotalMessagesAudited    int      `json:"total_messages_audited"`
}
