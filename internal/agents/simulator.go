// Package agents implements the five stage simulators.
//
// Every simulator is a total function over the previous stage's payload: no
// stage can fail. Randomness and the clock are injected so tests can fix
// outcomes exactly.
package agents

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/profile"
)

// RiskLimits are the Risk Manager thresholds (percent of notional)
type RiskLimits struct {
	MaxPositionPct float64 // hard cap applied to approved trades
	HardVetoPct    float64 // proposals above this are vetoed outright
}

// DefaultRiskLimits returns the stock 5% cap / 20% veto limits
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{MaxPositionPct: 5.0, HardVetoPct: 20.0}
}

// Execution constants
const (
	twapThresholdPct = 3.0
	executionMinutes = 30
	childOrders      = 6
	paperVenue       = "PAPER_EXCHANGE"

	maxSignalSizePct  = 8.0
	sizePerConfidence = 12.0

	confidenceFloor = 0.65
	confidenceSpan  = 0.28

	slippageFloorBps = 3.5
	slippageSpanBps  = 2.0

	vetoReason = "Vetoed by Risk Manager."
)

var researchSources = []string{"Reuters", "Bloomberg Terminal", "SEC EDGAR"}

// Simulator runs the stage simulators against one random source and clock
// ⭐ SSOT: 단계별 payload 생성은 여기서만
type Simulator struct {
	rng    RandomSource
	now    func() time.Time
	limits RiskLimits
}

// NewSimulator creates a simulator. A nil rng gets a clock-seeded locked source.
func NewSimulator(rng RandomSource, limits RiskLimits) *Simulator {
	if rng == nil {
		rng = NewLockedSource(0)
	}
	return &Simulator{rng: rng, now: time.Now, limits: limits}
}

// WithClock replaces the clock used for the supervisor log id
func (s *Simulator) WithClock(now func() time.Time) *Simulator {
	s.now = now
	return s
}

// Limits returns the configured risk limits
func (s *Simulator) Limits() RiskLimits {
	return s.limits
}

// =============================================================================
// Researcher
// =============================================================================

// Researcher reads the event against the ticker profile
func (s *Simulator) Researcher(event contracts.Event) *contracts.ResearchPayload {
	p := profile.Lookup(event.Ticker)
	confidence := round(confidenceFloor+s.rng.Float64()*confidenceSpan, 2)

	regime := contracts.RegimeRiskOff
	if p.Bias == contracts.BiasBullish {
		regime = contracts.RegimeRiskOn
	}

	sources := make([]string, len(researchSources))
	copy(sources, researchSources)

	return &contracts.ResearchPayload{
		Signal:     p.Bias,
		Confidence: confidence,
		Summary:    researchSummary(event, p.Bias, confidence),
		Sources:    sources,
		Regime:     regime,
		KeyRisks:   keyRisks(p.Bias),
	}
}

func researchSummary(event contracts.Event, bias contracts.Bias, confidence float64) string {
	switch bias {
	case contracts.BiasBullish:
		return fmt.Sprintf("%s reads as constructive for %s. Flow and positioning support upside follow-through (confidence %.2f).",
			quote(event.Headline), event.Ticker, confidence)
	case contracts.BiasBearish:
		return fmt.Sprintf("%s reads as a headwind for %s. Expect pressure on near-term pricing (confidence %.2f).",
			quote(event.Headline), event.Ticker, confidence)
	default:
		return fmt.Sprintf("%s carries no clear directional read for %s (confidence %.2f).",
			quote(event.Headline), event.Ticker, confidence)
	}
}

func keyRisks(bias contracts.Bias) []string {
	switch bias {
	case contracts.BiasBullish:
		return []string{
			"Valuation stretch after the move",
			"Forward guidance disappointment",
			"Rotation out of crowded longs",
			"Hawkish rate surprise",
		}
	case contracts.BiasBearish:
		return []string{
			"Short squeeze on positive surprise",
			"Policy pivot supporting risk assets",
			"Buyback and dip-buying support",
			"Oversold technical bounce",
		}
	default:
		return []string{
			"Low conviction signal",
			"Ambiguous headline interpretation",
			"Event-driven volatility",
			"Thin liquidity around the print",
		}
	}
}

// =============================================================================
// Signal
// =============================================================================

// Signal turns the research read into a sized trade proposal
func (s *Simulator) Signal(event contracts.Event, research *contracts.ResearchPayload) *contracts.SignalPayload {
	p := profile.Lookup(event.Ticker)

	action := contracts.ActionHold
	switch research.Signal {
	case contracts.BiasBullish:
		action = contracts.ActionLong
	case contracts.BiasBearish:
		action = contracts.ActionShort
	}

	size := round(min(research.Confidence*sizePerConfidence, maxSignalSizePct), 1)
	expectedReturn := round((p.TakeProfit-p.Price)/p.Price*100, 2)

	return &contracts.SignalPayload{
		Action:            action,
		Ticker:            event.Ticker,
		SizePct:           size,
		EntryPrice:        p.Price,
		StopLoss:          p.Stop,
		TakeProfit:        p.TakeProfit,
		Rationale:         fmt.Sprintf("%s bias at %.2f confidence; backtested Sharpe %.1f on similar events.", research.Signal, research.Confidence, p.Sharpe),
		BacktestSharpe:    p.Sharpe,
		ExpectedReturnPct: expectedReturn,
	}
}

// =============================================================================
// Risk
// =============================================================================

// Risk evaluates the proposal against the limits. Exactly one call per run.
func (s *Simulator) Risk(signal *contracts.SignalPayload) *contracts.RiskPayload {
	size := signal.SizePct
	capPct := s.limits.MaxPositionPct

	// 유동성/낙폭 검사는 항상 통과 (stub)
	metrics := contracts.RiskMetrics{
		PositionLimitOK: size <= capPct,
		DrawdownOK:      true,
		LiquidityOK:     true,
	}

	if size > s.limits.HardVetoPct || signal.Action == contracts.ActionHold {
		reason := "No actionable direction (HOLD); trade vetoed."
		if size > s.limits.HardVetoPct {
			reason = fmt.Sprintf("Proposed size %.1f%% exceeds hard limit %.1f%%; trade vetoed.", size, s.limits.HardVetoPct)
		}
		return &contracts.RiskPayload{
			Verdict:     contracts.VerdictVetoed,
			Veto:        true,
			Reason:      reason,
			RiskMetrics: metrics,
		}
	}

	if size > capPct {
		adjusted := min(size, capPct)
		return &contracts.RiskPayload{
			Verdict:         contracts.VerdictApprovedWithConditions,
			AdjustedSizePct: &adjusted,
			Reason:          fmt.Sprintf("Size reduced from %.1f%% to %.1f%% (max position %.1f%%).", size, adjusted, capPct),
			RiskMetrics:     metrics,
		}
	}

	adjusted := size
	return &contracts.RiskPayload{
		Verdict:         contracts.VerdictApproved,
		AdjustedSizePct: &adjusted,
		Reason:          "Within position limits.",
		RiskMetrics:     metrics,
	}
}

// =============================================================================
// Execution
// =============================================================================

// Execution plans the fill. A vetoed decision yields a bare rejection.
func (s *Simulator) Execution(signal *contracts.SignalPayload, risk *contracts.RiskPayload) *contracts.ExecutionPayload {
	if risk.Veto {
		return &contracts.ExecutionPayload{
			Status: contracts.ExecutionRejected,
			Reason: vetoReason,
		}
	}

	size := risk.EffectiveSize()
	plan := &contracts.ExecutionPayload{
		Strategy:    contracts.StrategyLimit,
		DurationMin: executionMinutes,
		ChildOrders: childOrders,
		// truncated so the value stays inside [3.5, 5.5)
		ExpectedSlippageBps: truncate(slippageFloorBps+s.rng.Float64()*slippageSpanBps, 1),
		Venue:               paperVenue,
		Status:              contracts.ExecutionSimulatedFill,
	}

	if size > twapThresholdPct {
		plan.Strategy = contracts.StrategyTWAP
	} else {
		limit := signal.EntryPrice
		plan.LimitPrice = &limit
	}

	plan.Notes = fmt.Sprintf("%s %s %.1f%% over %d min in %d child orders on %s.",
		plan.Strategy, signal.Action, size, plan.DurationMin, plan.ChildOrders, plan.Venue)
	return plan
}

// =============================================================================
// Supervisor
// =============================================================================

// Chain is everything the Supervisor audits. Nil fields are stages that did
// not run.
type Chain struct {
	Research  *contracts.ResearchPayload
	Signal    *contracts.SignalPayload
	Risk      *contracts.RiskPayload
	Execution *contracts.ExecutionPayload
}

// Present counts the stages that produced a payload
func (c Chain) Present() int {
	n := 0
	if c.Research != nil {
		n++
	}
	if c.Signal != nil {
		n++
	}
	if c.Risk != nil {
		n++
	}
	if c.Execution != nil {
		n++
	}
	return n
}

// Supervisor audits whatever subset of stages completed. Always runs.
func (s *Simulator) Supervisor(chain Chain) *contracts.SupervisorPayload {
	chainOK := chain.Research != nil && chain.Risk != nil
	vetoed := chain.Risk != nil && chain.Risk.Veto

	status := contracts.AuditNonCompliant
	if chainOK {
		status = contracts.AuditCompliant
	}

	flags := make([]string, 0, 2)
	if vetoed {
		flags = append(flags, contracts.FlagRiskVeto)
	}
	executed := chain.Execution != nil && chain.Execution.Status != contracts.ExecutionRejected
	if executed && chain.Risk != nil && chain.Risk.Verdict == contracts.VerdictApprovedWithConditions {
		flags = append(flags, contracts.FlagSizeReduced)
	}

	return &contracts.SupervisorPayload{
		AuditStatus:             status,
		CircuitBreakerTriggered: !chainOK,
		HumanReviewRequired:     vetoed,
		Flags:                   flags,
		ComplianceNotes:         complianceNotes(chainOK, vetoed, chain.Present()),
		LogID:                   fmt.Sprintf("TRD-%s-%04d", s.now().Format("20060102"), s.rng.Intn(10000)),
		DecisionChainComplete:   chainOK && (executed || vetoed),
		TotalMessagesAudited:    chain.Present(),
	}
}

func complianceNotes(chainOK, vetoed bool, audited int) string {
	switch {
	case !chainOK:
		return fmt.Sprintf("Decision chain incomplete: research or risk review missing (%d messages audited).", audited)
	case vetoed:
		return fmt.Sprintf("Trade vetoed by Risk Manager; execution skipped. Escalated for human review (%d messages audited).", audited)
	default:
		return fmt.Sprintf("All stages within policy (%d messages audited).", audited)
	}
}

// =============================================================================
// helpers
// =============================================================================

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func truncate(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Truncate(places).InexactFloat64()
}

func quote(headline string) string {
	if headline == "" {
		return "The event"
	}
	return fmt.Sprintf("%q", headline)
}
