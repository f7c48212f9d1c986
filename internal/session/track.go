package session

import (
	"context"
	"errors"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/execution"
	"github.com/wonny/tradecraft/internal/sizing"
	"github.com/wonny/tradecraft/pkg/logger"
)

// FillSimulator replays the execution plan against an order book (execution.Simulator)
type FillSimulator interface {
	Simulate(result *contracts.RunResult) (*contracts.FillReport, error)
}

// TradeTracker books finished runs as trades (audit.Analyzer)
type TradeTracker interface {
	Record(ctx context.Context, result *contracts.RunResult, fill *contracts.FillReport, rlSizePct *float64) (contracts.TradeRecord, error)
	Analyze(ctx context.Context) (*contracts.PerformanceSummary, error)
}

// PositionSizer recommends and learns sizes (sizing.Sizer)
type PositionSizer interface {
	Recommend(state sizing.State) float64
	Learn(ctx context.Context, state sizing.State, sizeTaken, rewardBps float64) error
	VIX() float64
}

// WithFills replays every finished plan through the fill simulator
func (r *Runner) WithFills(f FillSimulator) *Runner {
	r.fills = f
	return r
}

// WithTracker books every finished run in the trade log
func (r *Runner) WithTracker(t TradeTracker) *Runner {
	r.tracker = t
	return r
}

// WithSizer asks the sizer for an advisory size and feeds it the outcome.
// Needs a tracker: the drawdown and the reward come from the trade log.
func (r *Runner) WithSizer(s PositionSizer) *Runner {
	r.sizer = s
	return r
}

// track fills, books and learns from result. The sizer only advises: the
// size taken stays the risk-adjusted one.
func (r *Runner) track(ctx context.Context, result *contracts.RunResult, log *logger.Logger) {
	if r.fills != nil {
		fill, err := r.fills.Simulate(result)
		switch {
		case err == nil:
			result.Fill = fill
		case !errors.Is(err, execution.ErrNothingToExecute):
			log.WithError(err).Warn("Fill simulation failed")
		}
	}

	if r.tracker == nil {
		return
	}

	var (
		state  sizing.State
		advice *float64
	)
	if r.sizer != nil {
		var drawdown float64
		if summary, err := r.tracker.Analyze(ctx); err == nil {
			drawdown = summary.MaxDrawdownBps
		} else {
			log.WithError(err).Warn("Failed to read drawdown for sizing")
		}
		state = sizing.StateFor(result, drawdown, r.sizer.VIX())
		size := r.sizer.Recommend(state)
		advice = &size
	}

	trade, err := r.tracker.Record(ctx, result, result.Fill, advice)
	if err != nil {
		log.WithError(err).Error("Failed to record trade")
		return
	}
	result.Performance = &contracts.TradeOutcome{
		Outcome:   trade.Outcome,
		PnLBps:    trade.PnLBps,
		RLSizePct: advice,
	}

	if r.sizer == nil || trade.Outcome == contracts.OutcomeVetoed {
		return
	}
	if err := r.sizer.Learn(ctx, state, trade.SizePct, trade.PnLBps); err != nil {
		log.WithError(err).Warn("Failed to update position sizer")
	}
}
