package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/metrics"
	"github.com/wonny/tradecraft/pkg/logger"
)

// DefaultLimit bounds the persisted audit log
const DefaultLimit = 200

// Ledger appends audit entries for completed runs and keeps the counters.
// ⭐ SSOT: audit_log / stats 갱신은 Ledger.Record 에서만
type Ledger struct {
	mu         sync.Mutex
	store      Store
	limit      int
	tradeLimit int
	metrics    *metrics.Recorder
	logger     *logger.Logger
	now        func() time.Time
}

// NewLedger creates a ledger over store. limit <= 0 uses DefaultLimit.
func NewLedger(store Store, limit int, log *logger.Logger) *Ledger {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Ledger{
		store:      store,
		limit:      limit,
		tradeLimit: DefaultTradeLimit,
		logger:     log,
		now:        time.Now,
	}
}

// WithMetrics attaches a metrics recorder
func (l *Ledger) WithMetrics(rec *metrics.Recorder) *Ledger {
	l.metrics = rec
	return l
}

// Record derives one entry per completed stage of result, prepends them
// (newest first), trims to the limit and bumps the counters.
func (l *Ledger) Record(ctx context.Context, result *contracts.RunResult) ([]contracts.AuditEntry, error) {
	if result == nil {
		return nil, fmt.Errorf("audit: nil run result")
	}

	entries := EntriesFor(result, l.now())

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: load state: %w", err)
	}

	merged := make([]contracts.AuditEntry, 0, len(entries)+len(state.Entries))
	merged = append(merged, entries...)
	merged = append(merged, state.Entries...)
	if len(merged) > l.limit {
		merged = merged[:l.limit]
	}
	state.Entries = merged

	state.Stats.RunCount++
	if result.Vetoed {
		state.Stats.VetoCount++
	}
	state.Stats.AuditCount += len(entries)

	if err := l.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("audit: save state: %w", err)
	}

	l.metrics.AuditRecorded(len(entries))
	l.logger.WithRun(result.RunID).WithFields(map[string]interface{}{
		"entries":   len(entries),
		"run_count": state.Stats.RunCount,
		"vetoed":    result.Vetoed,
	}).Debug("Audit entries recorded")

	return entries, nil
}

// Entries returns up to limit entries, newest first. limit <= 0 returns all.
func (l *Ledger) Entries(ctx context.Context, limit int) ([]contracts.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: load state: %w", err)
	}
	if limit > 0 && limit < len(state.Entries) {
		return state.Entries[:limit], nil
	}
	return state.Entries, nil
}

// Stats returns the persisted counters
func (l *Ledger) Stats(ctx context.Context) (contracts.Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.Load(ctx)
	if err != nil {
		return contracts.Stats{}, fmt.Errorf("audit: load state: %w", err)
	}
	return state.Stats, nil
}

// Trades returns the persisted trade log, oldest first
func (l *Ledger) Trades(ctx context.Context) ([]contracts.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: load state: %w", err)
	}
	return state.Trades, nil
}

// appendTrade adds trade to the end of the log and drops the oldest rows
// beyond tradeLimit
func (l *Ledger) appendTrade(ctx context.Context, trade contracts.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("audit: load state: %w", err)
	}

	state.Trades = append(state.Trades, trade)
	if over := len(state.Trades) - l.tradeLimit; over > 0 {
		state.Trades = state.Trades[over:]
	}

	if err := l.store.Save(ctx, state); err != nil {
		return fmt.Errorf("audit: save state: %w", err)
	}
	return nil
}

// EntriesFor builds the audit entries of one run, newest (last stage) first
func EntriesFor(result *contracts.RunResult, at time.Time) []contracts.AuditEntry {
	stages := result.CompletedStages()
	entries := make([]contracts.AuditEntry, 0, len(stages))

	for i := len(stages) - 1; i >= 0; i-- {
		stage := stages[i]
		entries = append(entries, contracts.AuditEntry{
			Time:    at.UTC(),
			Agent:   stage.DisplayName(),
			Type:    stage.MessageType(),
			ID:      fmt.Sprintf("%s-%s", result.RunID, stage.ShortName()),
			Summary: summarize(result, stage),
		})
	}
	return entries
}

func summarize(result *contracts.RunResult, stage contracts.Stage) string {
	ticker := result.Event.Ticker

	switch stage {
	case contracts.StageResearcher:
		r := result.Researcher
		return fmt.Sprintf("%s %s (confidence %.2f, %s)", r.Signal, ticker, r.Confidence, r.Regime)
	case contracts.StageSignal:
		s := result.Signal
		return fmt.Sprintf("%s %s %.1f%% @ %.2f", s.Action, s.Ticker, s.SizePct, s.EntryPrice)
	case contracts.StageRisk:
		r := result.Risk
		if r.Veto {
			return fmt.Sprintf("VETOED: %s", r.Reason)
		}
		return fmt.Sprintf("%s, size %.1f%%", r.Verdict, r.EffectiveSize())
	case contracts.StageExecution:
		e := result.Execution
		if e.Status == contracts.ExecutionRejected {
			return fmt.Sprintf("%s: %s", e.Status, e.Reason)
		}
		return fmt.Sprintf("%s via %s on %s (%.1f bps)", e.Status, e.Strategy, e.Venue, e.ExpectedSlippageBps)
	case contracts.StageSupervisor:
		s := result.Supervisor
		return fmt.Sprintf("%s %s, %d messages audited", s.AuditStatus, s.LogID, s.TotalMessagesAudited)
	}
	return ""
}
