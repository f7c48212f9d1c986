package sizing

import (
	"context"
	"errors"
	"math"

	"github.com/wonny/tradecraft/internal/contracts"
)

// ErrNoTrades is returned when the trade log holds nothing to learn from
var ErrNoTrades = errors.New("sizing: no executed trades to replay")

// TrainReport summarises an offline replay
type TrainReport struct {
	Trades          int       `json:"trades"`
	Epochs          int       `json:"epochs"`
	Updates         int       `json:"updates"`
	StepsBefore     int       `json:"steps_before"`
	StepsAfter      int       `json:"steps_after"`
	AvgRewardBps    float64   `json:"avg_reward_bps"`
	EpochRewardsBps []float64 `json:"epoch_rewards_bps"`
	Policy          Policy    `json:"policy"`
}

// TradeState rebuilds the state a trade was sized in. drawdownBps is the
// drawdown of the trades replayed before it.
func TradeState(trade contracts.TradeRecord, drawdownBps, vix float64) State {
	state := State{
		Confidence:  trade.Confidence,
		Regime:      trade.Regime,
		DrawdownPct: drawdownBps / 100,
		VIX:         vix,
	}
	if state.Confidence == 0 {
		state.Confidence = neutralConf
	}
	if state.Regime == "" {
		state.Regime = "NEUTRAL"
	}
	return state
}

// Train warm-starts the table by replaying the trade log (oldest first)
// epochs times, then saves it. Vetoed trades are skipped. Each update
// bootstraps from the state of the following trade.
func (s *Sizer) Train(ctx context.Context, trades []contracts.TradeRecord, epochs int) (TrainReport, error) {
	if epochs < 1 {
		epochs = 1
	}

	executed := make([]contracts.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if t.Outcome != contracts.OutcomeVetoed {
			executed = append(executed, t)
		}
	}
	if len(executed) == 0 {
		return TrainReport{}, ErrNoTrades
	}

	states := replayStates(executed, s.VIX())
	report := TrainReport{Trades: len(executed), Epochs: epochs, StepsBefore: s.Policy().Step}

	var total float64
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var epochReward float64
		for i, t := range executed {
			var next *State
			if i+1 < len(executed) {
				next = &states[i+1]
			}
			s.Update(states[i], t.SizePct, t.PnLBps, next)
			epochReward += t.PnLBps
			report.Updates++
		}
		total += epochReward
		report.EpochRewardsBps = append(report.EpochRewardsBps, math.Round(epochReward/float64(len(executed))*100)/100)
	}

	if err := s.Save(ctx); err != nil {
		return report, err
	}

	report.AvgRewardBps = math.Round(total/float64(report.Updates)*100) / 100
	report.Policy = s.Policy()
	report.StepsAfter = report.Policy.Step

	s.logger.WithFields(map[string]interface{}{
		"trades":  report.Trades,
		"epochs":  epochs,
		"updates": report.Updates,
		"states":  report.Policy.StatesVisited,
	}).Info("Position sizer trained from trade log")

	return report, nil
}

// Reset forgets everything learned
func (s *Sizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q = map[string]map[string]float64{}
	s.epsilon = s.cfg.Epsilon
	s.step = 0
}

// replayStates walks the trades keeping the running max drawdown, so each
// state sees only the trades before it
func replayStates(trades []contracts.TradeRecord, vix float64) []State {
	states := make([]State, len(trades))
	var cum, peak, maxDD float64
	for i, t := range trades {
		states[i] = TradeState(t, maxDD, vix)

		cum += t.PnLBps
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}
	return states
}
