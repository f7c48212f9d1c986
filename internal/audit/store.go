// Package audit persists the audit log and run counters behind an injectable
// Store, and derives audit entries from completed runs.
package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/pkg/config"
	"github.com/wonny/tradecraft/pkg/database"
	"github.com/wonny/tradecraft/pkg/redis"
)

// Persisted keys. All are plain JSON blobs with no schema versioning.
const (
	KeyAuditLog = "audit_log"
	KeyStats    = "stats"
	KeyTrades   = "trades"
)

// State is everything a Store holds. Trades are oldest first.
type State struct {
	Entries []contracts.AuditEntry  `json:"entries"`
	Stats   contracts.Stats         `json:"stats"`
	Trades  []contracts.TradeRecord `json:"trades"`
}

// Store loads and saves the whole state. Missing data loads as an empty state.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

func emptyState() *State {
	return &State{Entries: []contracts.AuditEntry{}, Trades: []contracts.TradeRecord{}}
}

// normalize replaces nil slices so empty logs encode as []
func (s *State) normalize() *State {
	if s.Entries == nil {
		s.Entries = []contracts.AuditEntry{}
	}
	if s.Trades == nil {
		s.Trades = []contracts.TradeRecord{}
	}
	return s
}

func (s *State) clone() *State {
	c := &State{
		Entries: make([]contracts.AuditEntry, len(s.Entries)),
		Stats:   s.Stats,
		Trades:  make([]contracts.TradeRecord, len(s.Trades)),
	}
	copy(c.Entries, s.Entries)
	copy(c.Trades, s.Trades)
	return c
}

// OpenStore picks the backend named by STORAGE_BACKEND
func OpenStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, db *database.DB) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageRedis:
		if rdb == nil || !rdb.Enabled() {
			return nil, fmt.Errorf("redis storage requires an enabled redis client")
		}
		return NewRedisStore(rdb), nil
	case config.StoragePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres storage requires a database connection")
		}
		repo := NewPostgresStore(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return NewFileStore(cfg.Storage.DataDir), nil
	}
}

// MemoryStore keeps state in process (tests, STORAGE_BACKEND=memory)
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: emptyState()}
}

func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state.clone()
	return nil
}
