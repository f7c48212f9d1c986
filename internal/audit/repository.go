package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore stores the audit state in PostgreSQL (table audit.kv)
// ⭐ SSOT: Audit 데이터 저장/조회는 여기서만
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on an existing pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the schema and key/value table when missing
func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS audit;
		CREATE TABLE IF NOT EXISTS audit.kv (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

// Load reads every key; missing rows load as empty
func (r *PostgresStore) Load(ctx context.Context) (*State, error) {
	state := emptyState()

	if err := r.get(ctx, KeyAuditLog, &state.Entries); err != nil {
		return nil, err
	}
	if err := r.get(ctx, KeyStats, &state.Stats); err != nil {
		return nil, err
	}
	if err := r.get(ctx, KeyTrades, &state.Trades); err != nil {
		return nil, err
	}
	return state.normalize(), nil
}

// Save upserts every key in one transaction
func (r *PostgresStore) Save(ctx context.Context, state *State) error {
	entriesJSON, err := json.Marshal(state.Entries)
	if err != nil {
		return fmt.Errorf("failed to marshal audit log: %w", err)
	}
	statsJSON, err := json.Marshal(state.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	tradesJSON, err := json.Marshal(state.Trades)
	if err != nil {
		return fmt.Errorf("failed to marshal trades: %w", err)
	}

	query := `
		INSERT INTO audit.kv (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, KeyAuditLog, entriesJSON); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, KeyTrades, tradesJSON); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, query, KeyStats, statsJSON)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save audit state: %w", err)
	}

	return nil
}

func (r *PostgresStore) get(ctx context.Context, key string, dest interface{}) error {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM audit.kv WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
