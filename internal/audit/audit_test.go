package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/pkg/config"
	"github.com/wonny/tradecraft/pkg/logger"
)

func sizePtr(v float64) *float64 { return &v }

func approvedRun(id string) *contracts.RunResult {
	return &contracts.RunResult{
		RunID:  id,
		Status: contracts.StatusComplete,
		Event:  contracts.Event{Headline: "NVDA beats earnings", Ticker: "NVDA", Source: "NASDAQ Filing"},
		Researcher: &contracts.ResearchPayload{
			Signal: contracts.BiasBullish, Confidence: 0.8, Regime: contracts.RegimeRiskOn,
		},
		Signal: &contracts.SignalPayload{Action: contracts.ActionLong, Ticker: "NVDA", SizePct: 8, EntryPrice: 875},
		Risk: &contracts.RiskPayload{
			Verdict: contracts.VerdictApprovedWithConditions, AdjustedSizePct: sizePtr(5),
		},
		Execution: &contracts.ExecutionPayload{
			Strategy: contracts.StrategyTWAP, Venue: "PAPER_EXCHANGE",
			Status: contracts.ExecutionSimulatedFill, ExpectedSlippageBps: 4.2,
		},
		Supervisor: &contracts.SupervisorPayload{
			AuditStatus: contracts.AuditCompliant, LogID: "TRD-20260101-0042", TotalMessagesAudited: 4,
		},
	}
}

func vetoedRun(id string) *contracts.RunResult {
	return &contracts.RunResult{
		RunID:      id,
		Status:     contracts.StatusComplete,
		Vetoed:     true,
		Event:      contracts.Event{Headline: "Unknown", Ticker: "ZZZZ", Source: "Manual Input"},
		Researcher: &contracts.ResearchPayload{Signal: contracts.BiasNeutral, Confidence: 0.7},
		Signal:     &contracts.SignalPayload{Action: contracts.ActionHold, Ticker: "ZZZZ", SizePct: 8},
		Risk:       &contracts.RiskPayload{Verdict: contracts.VerdictVetoed, Veto: true, Reason: "HOLD signal"},
		Supervisor: &contracts.SupervisorPayload{AuditStatus: contracts.AuditCompliant, TotalMessagesAudited: 3},
	}
}

func TestEntriesFor(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	entries := EntriesFor(approvedRun("run-1"), at)
	require.Len(t, entries, 5)

	// newest (supervisor) first
	assert.Equal(t, "AUDIT_COMPLETE", entries[0].Type)
	assert.Equal(t, "run-1-S5", entries[0].ID)
	assert.Equal(t, "RESEARCH_SIGNAL", entries[4].Type)
	assert.Equal(t, at, entries[4].Time)
	assert.Contains(t, entries[2].Summary, "APPROVED_WITH_CONDITIONS")
	assert.Contains(t, entries[1].Summary, "SIMULATED_FILL")

	vetoed := EntriesFor(vetoedRun("run-2"), at)
	require.Len(t, vetoed, 4)
	for _, e := range vetoed {
		assert.NotEqual(t, "EXECUTION_PLAN", e.Type)
	}
	assert.Contains(t, vetoed[1].Summary, "VETOED")
}

func TestLedgerRecord(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore(), 0, logger.Nop())

	_, err := ledger.Record(ctx, approvedRun("run-1"))
	require.NoError(t, err)
	_, err = ledger.Record(ctx, vetoedRun("run-2"))
	require.NoError(t, err)

	stats, err := ledger.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, contracts.Stats{RunCount: 2, VetoCount: 1, AuditCount: 9}, stats)

	entries, err := ledger.Entries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 9)
	assert.Equal(t, "run-2-S5", entries[0].ID, "latest run first")

	limited, err := ledger.Entries(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

func TestLedgerRecordNil(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), 0, logger.Nop())
	_, err := ledger.Record(context.Background(), nil)
	assert.Error(t, err)
}

func TestLedgerLimit(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore(), 7, logger.Nop())

	for i := 0; i < 3; i++ {
		_, err := ledger.Record(ctx, approvedRun(contracts.RunIDAt(time.UnixMilli(int64(i)))))
		require.NoError(t, err)
	}

	entries, err := ledger.Entries(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 7)
	assert.Equal(t, "run-2-S5", entries[0].ID)

	stats, err := ledger.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, stats.AuditCount, "counter is not bounded by the log limit")
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested")
	store := NewFileStore(dir)

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, state.Entries)
	assert.Empty(t, state.Entries)
	assert.Zero(t, state.Stats)

	ledger := NewLedger(store, 0, logger.Nop())
	_, err = ledger.Record(ctx, vetoedRun("run-9"))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "audit-log.json"))
	assert.FileExists(t, filepath.Join(dir, "stats.json"))

	reopened, err := NewFileStore(dir).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, reopened.Entries, 4)
	assert.Equal(t, 1, reopened.Stats.VetoCount)

	raw, err := os.ReadFile(filepath.Join(dir, "stats.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"runCount": 1`)
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stats.json"), []byte("{nope"), 0o644))

	_, err := NewFileStore(dir).Load(context.Background())
	assert.Error(t, err)
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	state := &State{Entries: []contracts.AuditEntry{{ID: "a"}}}
	require.NoError(t, store.Save(ctx, state))
	state.Entries[0].ID = "mutated"

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", loaded.Entries[0].ID)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		backend string
		want    interface{}
		wantErr bool
	}{
		{"file", config.StorageFile, &FileStore{}, false},
		{"memory", config.StorageMemory, &MemoryStore{}, false},
		{"redis without client", config.StorageRedis, nil, true},
		{"postgres without db", config.StoragePostgres, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Storage: config.StorageConfig{Backend: tt.backend, DataDir: t.TempDir()}}
			store, err := OpenStore(ctx, cfg, nil, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
		})
	}
}
