package execution

import (
	"errors"
	"math"
	"strings"

	"github.com/wonny/tradecraft/internal/agents"
	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/metrics"
	"github.com/wonny/tradecraft/pkg/logger"
)

// DefaultNAVUSD is the portfolio value plans are sized against
const DefaultNAVUSD = 10_000_000

const (
	minSpreadBps      = 2.0
	replenishRatio    = 0.3
	defaultTWAPSlices = 6
	defaultTWAPMin    = 30
	defaultVWAPMin    = 390 // one session
)

// vwapCurve is a U-shaped intraday volume profile, one weight per 30 minutes
var vwapCurve = []float64{
	0.085, 0.062, 0.048, 0.041, 0.038, 0.036,
	0.034, 0.033, 0.034, 0.036, 0.038, 0.041,
	0.052, 0.068, 0.094, 0.120,
}

// ErrNothingToExecute is returned for vetoed runs and rejected or missing plans
var ErrNothingToExecute = errors.New("execution: nothing to execute")

// Simulator replays execution plans against a freshly seeded order book.
// ⭐ SSOT: 체결 시뮬레이션은 여기서만
type Simulator struct {
	rng     agents.RandomSource
	navUSD  float64
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewSimulator creates a simulator. navUSD <= 0 uses DefaultNAVUSD.
func NewSimulator(rng agents.RandomSource, navUSD float64, log *logger.Logger) *Simulator {
	if navUSD <= 0 {
		navUSD = DefaultNAVUSD
	}
	return &Simulator{rng: rng, navUSD: navUSD, logger: log}
}

// WithMetrics attaches a metrics recorder
func (s *Simulator) WithMetrics(rec *metrics.Recorder) *Simulator {
	s.metrics = rec
	return s
}

// NAVUSD returns the portfolio value plans are sized against
func (s *Simulator) NAVUSD() float64 {
	return s.navUSD
}

// Simulate sizes the authorised position, seeds a book at the entry price and
// works the plan:
//   - VWAP: child sizes follow the volume curve
//   - MARKET: one order at once
//   - TWAP, LIMIT and anything else: equal child orders over the duration
func (s *Simulator) Simulate(result *contracts.RunResult) (*contracts.FillReport, error) {
	if result == nil || result.Vetoed || result.Signal == nil || result.Execution == nil {
		return nil, ErrNothingToExecute
	}
	plan := result.Execution
	signal := result.Signal
	if plan.Status != contracts.ExecutionSimulatedFill || signal.EntryPrice <= 0 {
		return nil, ErrNothingToExecute
	}
	if signal.Action != contracts.ActionLong && signal.Action != contracts.ActionShort {
		return nil, ErrNothingToExecute
	}

	sizePct := result.Risk.EffectiveSize()
	if sizePct <= 0 {
		sizePct = signal.SizePct
	}

	orderSide := contracts.SideSell
	if signal.Action == contracts.ActionLong {
		orderSide = contracts.SideBuy
	}

	spread := math.Max(plan.ExpectedSlippageBps, minSpreadBps)
	book := NewOrderBook(signal.Ticker, signal.EntryPrice, spread, s.rng)
	arrivalMid, ok := book.Mid()
	if !ok {
		arrivalMid = signal.EntryPrice
	}

	totalQty := s.navUSD * sizePct / 100 / signal.EntryPrice
	strategy, weights, durationMin := schedule(plan)
	interval := 0.0
	if len(weights) > 0 {
		interval = float64(durationMin) * 60 / float64(len(weights))
	}

	children := make([]contracts.ChildFill, 0, len(weights))
	for i, w := range weights {
		qty := totalQty * w
		m := book.MatchMarket(orderSide, qty)
		book.replenish(orderSide, signal.EntryPrice, qty*replenishRatio)

		children = append(children, contracts.ChildFill{
			Index:        i + 1,
			TargetQty:    qty,
			FilledQty:    m.FilledQty,
			AvgFillPrice: m.AvgFillPrice,
			SlippageBps:  m.SlippageBps,
			Levels:       len(m.Fills),
			OffsetSec:    float64(i) * interval,
		})
	}

	report := aggregate(children, totalQty, arrivalMid)
	report.Ticker = signal.Ticker
	report.Side = orderSide
	report.Strategy = strategy
	report.ExpectedSlippageBps = plan.ExpectedSlippageBps
	report.SlippageDeltaBps = report.ActualSlippageBps - plan.ExpectedSlippageBps
	report.DurationSec = float64(durationMin) * 60

	s.metrics.FillSimulated(strategy, report.ActualSlippageBps)
	s.logger.WithRun(result.RunID).WithTicker(signal.Ticker).WithFields(map[string]interface{}{
		"strategy":        strategy,
		"children":        len(children),
		"fill_rate_pct":   report.FillRatePct,
		"actual_slip_bps": report.ActualSlippageBps,
		"delta_bps":       report.SlippageDeltaBps,
	}).Debug("Execution plan simulated")

	return report, nil
}

// schedule maps a plan onto child weights summing to 1
func schedule(plan *contracts.ExecutionPayload) (string, []float64, int) {
	switch strings.ToUpper(plan.Strategy) {
	case contracts.StrategyMarket:
		return contracts.StrategyMarket, []float64{1}, 0

	case contracts.StrategyVWAP:
		n := plan.ChildOrders
		if n <= 0 || n > len(vwapCurve) {
			n = len(vwapCurve)
		}
		var sum float64
		for _, w := range vwapCurve[:n] {
			sum += w
		}
		weights := make([]float64, n)
		for i, w := range vwapCurve[:n] {
			weights[i] = w / sum
		}
		return contracts.StrategyVWAP, weights, durationOr(plan.DurationMin, defaultVWAPMin)

	default:
		n := plan.ChildOrders
		if n <= 0 {
			n = defaultTWAPSlices
		}
		weights := make([]float64, n)
		for i := range weights {
			weights[i] = 1 / float64(n)
		}
		return contracts.StrategyTWAP, weights, durationOr(plan.DurationMin, defaultTWAPMin)
	}
}

func durationOr(minutes, fallback int) int {
	if minutes <= 0 {
		return fallback
	}
	return minutes
}

func aggregate(children []contracts.ChildFill, totalQty, arrivalMid float64) *contracts.FillReport {
	report := &contracts.FillReport{
		TargetQty:  totalQty,
		ArrivalMid: arrivalMid,
		Children:   children,
	}

	var notional float64
	for _, c := range children {
		report.FilledQty += c.FilledQty
		notional += c.AvgFillPrice * c.FilledQty
	}
	report.UnfilledQty = totalQty - report.FilledQty

	if totalQty > 0 {
		report.FillRatePct = report.FilledQty / totalQty * 100
	}
	report.AvgFillPrice = arrivalMid
	if report.FilledQty > 0 {
		report.AvgFillPrice = notional / report.FilledQty
	}
	if arrivalMid > 0 {
		report.ActualSlippageBps = math.Abs(report.AvgFillPrice-arrivalMid) / arrivalMid * 1e4
	}
	report.NotionalUSD = report.AvgFillPrice * report.FilledQty
	return report
}
