// Package sizing learns a position size per market state with tabular
// Q-learning and recommends it alongside the Signal agent's own size.
package sizing

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/wonny/tradecraft/internal/agents"
	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/pkg/config"
	"github.com/wonny/tradecraft/pkg/logger"
)

// Actions are the sizes the policy picks from, in % of NAV
var Actions = []float64{1, 2, 3, 4, 5}

// MaxPositionPct caps every recommendation
const MaxPositionPct = 5.0

const (
	optimisticQ   = 0.5 // unseen states start slightly positive so they get tried
	rewardClipBps = 50.0
	neutralConf   = 0.5
)

// DefaultConfig mirrors the SIZER_* defaults
func DefaultConfig() config.SizerConfig {
	return config.SizerConfig{
		Enabled:      true,
		Alpha:        0.10,
		Gamma:        0.90,
		Epsilon:      0.15,
		EpsilonDecay: 0.995,
		EpsilonMin:   0.02,
		VIX:          18.4,
	}
}

// State is what the policy conditions on
type State struct {
	Confidence  float64 `json:"signal_confidence"`
	Regime      string  `json:"regime"`
	DrawdownPct float64 `json:"drawdown_pct"`
	VIX         float64 `json:"vix"`
}

// Key buckets the state: confidence|regime|drawdown|vix
func (s State) Key() string {
	conf := "high"
	switch {
	case s.Confidence < 0.5:
		conf = "low"
	case s.Confidence < 0.75:
		conf = "med"
	}

	regime := "neutral"
	r := strings.ToUpper(s.Regime)
	switch {
	case strings.Contains(r, "ON") || strings.Contains(r, "BULL"):
		regime = "on"
	case strings.Contains(r, "OFF") || strings.Contains(r, "BEAR"):
		regime = "off"
	}

	drawdown := "danger"
	switch {
	case s.DrawdownPct < 3:
		drawdown = "ok"
	case s.DrawdownPct < 7:
		drawdown = "caution"
	}

	vix := "stressed"
	switch {
	case s.VIX < 15:
		vix = "calm"
	case s.VIX < 25:
		vix = "normal"
	}

	return fmt.Sprintf("%s|%s|%s|%s", conf, regime, drawdown, vix)
}

// StateFor reads the state of a run. maxDrawdownBps is the tracked drawdown
// before this run.
func StateFor(result *contracts.RunResult, maxDrawdownBps, vix float64) State {
	state := State{
		Confidence:  neutralConf,
		Regime:      "NEUTRAL",
		DrawdownPct: maxDrawdownBps / 100,
		VIX:         vix,
	}
	if r := result.Researcher; r != nil {
		state.Confidence = r.Confidence
		if r.Regime != "" {
			state.Regime = r.Regime
		}
	}
	return state
}

// Table is the persisted policy
type Table struct {
	QTable  map[string]map[string]float64 `json:"q_table"`
	Epsilon float64                       `json:"epsilon"`
	Step    int                           `json:"step"`
	Actions []float64                     `json:"actions"`
}

// PolicyEntry is the greedy choice in one state
type PolicyEntry struct {
	BestActionPct float64            `json:"best_action_pct"`
	QValues       map[string]float64 `json:"q_values"`
}

// Policy summarises what the sizer has learned
type Policy struct {
	Step          int                    `json:"step"`
	Epsilon       float64                `json:"epsilon"`
	StatesVisited int                    `json:"states_visited"`
	Policy        map[string]PolicyEntry `json:"policy"`
}

// Sizer is an epsilon-greedy tabular Q-learner over position sizes.
// ⭐ SSOT: RL 포지션 사이징은 여기서만
type Sizer struct {
	mu      sync.Mutex
	cfg     config.SizerConfig
	q       map[string]map[string]float64
	epsilon float64
	step    int
	rng     agents.RandomSource
	store   Store
	logger  *logger.Logger
}

// NewSizer creates a sizer with an empty table. store may be nil (no persistence).
func NewSizer(cfg config.SizerConfig, store Store, rng agents.RandomSource, log *logger.Logger) *Sizer {
	return &Sizer{
		cfg:     cfg,
		q:       map[string]map[string]float64{},
		epsilon: cfg.Epsilon,
		rng:     rng,
		store:   store,
		logger:  log,
	}
}

// VIX returns the configured volatility input
func (s *Sizer) VIX() float64 {
	return s.cfg.VIX
}

// Load restores a persisted table; a missing table keeps the fresh one
func (s *Sizer) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	table, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("sizing: load q-table: %w", err)
	}
	if table == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if table.QTable != nil {
		s.q = table.QTable
	}
	s.epsilon = table.Epsilon
	s.step = table.Step

	s.logger.WithFields(map[string]interface{}{
		"states":  len(s.q),
		"epsilon": s.epsilon,
		"step":    s.step,
	}).Debug("Q-table loaded")
	return nil
}

// Save persists the table
func (s *Sizer) Save(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	s.mu.Lock()
	table := s.snapshot()
	s.mu.Unlock()

	if err := s.store.Save(ctx, table); err != nil {
		return fmt.Errorf("sizing: save q-table: %w", err)
	}
	return nil
}

// Recommend returns a size in % of NAV: a random action with probability
// epsilon, otherwise the best known one
func (s *Sizer) Recommend(state State) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := state.Key()
	row := s.row(key)

	action := bestAction(row)
	if s.rng.Float64() < s.epsilon {
		action = Actions[s.rng.Intn(len(Actions))]
	}
	return math.Min(action, MaxPositionPct)
}

// Update applies one Q-learning step for the size actually taken. The reward
// is clipped to ±50 bps and scaled to [-1, 1]. next may be nil (terminal).
func (s *Sizer) Update(state State, sizeTaken, rewardBps float64, next *State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reward := math.Max(-rewardClipBps, math.Min(rewardClipBps, rewardBps)) / rewardClipBps

	maxNext := 0.0
	if next != nil {
		row := s.row(next.Key())
		maxNext = row[actionKey(bestAction(row))]
	}

	row := s.row(state.Key())
	a := actionKey(nearestAction(sizeTaken))
	row[a] += s.cfg.Alpha * (reward + s.cfg.Gamma*maxNext - row[a])

	s.step++
	s.epsilon = math.Max(s.cfg.EpsilonMin, s.epsilon*s.cfg.EpsilonDecay)
}

// Learn updates on a finished trade and persists the table
func (s *Sizer) Learn(ctx context.Context, state State, sizeTaken, rewardBps float64) error {
	s.Update(state, sizeTaken, rewardBps, nil)
	return s.Save(ctx)
}

// Policy returns the greedy action and Q-values of every visited state
func (s *Sizer) Policy() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Policy{
		Step:          s.step,
		Epsilon:       math.Round(s.epsilon*1e4) / 1e4,
		StatesVisited: len(s.q),
		Policy:        make(map[string]PolicyEntry, len(s.q)),
	}
	for key, row := range s.q {
		values := make(map[string]float64, len(row))
		for a, v := range row {
			values[a] = math.Round(v*1e4) / 1e4
		}
		p.Policy[key] = PolicyEntry{BestActionPct: bestAction(row), QValues: values}
	}
	return p
}

// row returns the Q-values of key, creating an optimistic row on first visit.
// Callers hold s.mu.
func (s *Sizer) row(key string) map[string]float64 {
	row, ok := s.q[key]
	if !ok {
		row = make(map[string]float64, len(Actions))
		for _, a := range Actions {
			row[actionKey(a)] = optimisticQ
		}
		s.q[key] = row
	}
	return row
}

func (s *Sizer) snapshot() *Table {
	q := make(map[string]map[string]float64, len(s.q))
	for key, row := range s.q {
		c := make(map[string]float64, len(row))
		for a, v := range row {
			c[a] = v
		}
		q[key] = c
	}
	return &Table{QTable: q, Epsilon: s.epsilon, Step: s.step, Actions: Actions}
}

// bestAction picks the highest Q-value; ties go to the smaller size
func bestAction(row map[string]float64) float64 {
	best := Actions[0]
	bestQ := math.Inf(-1)
	for _, a := range Actions {
		if v, ok := row[actionKey(a)]; ok && v > bestQ {
			best, bestQ = a, v
		}
	}
	return best
}

func nearestAction(size float64) float64 {
	best := Actions[0]
	for _, a := range Actions {
		if math.Abs(a-size) < math.Abs(best-size) {
			best = a
		}
	}
	return best
}

func actionKey(a float64) string {
	return strconv.FormatFloat(a, 'f', 1, 64)
}
