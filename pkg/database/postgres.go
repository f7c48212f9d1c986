package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wonny/tradecraft/pkg/config"
)

// DB wraps the pgxpool.Pool
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool and verifies it with a ping
// ⭐ SSOT: 유일하게 pgxpool.NewWithConfig()를 호출하는 함수
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	if !cfg.Database.Enabled() {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Configure connection pool
	if cfg.Database.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.Database.MinConns)
	}
	if cfg.Database.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	}
	if cfg.Database.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
	}
}

// HealthCheck pings the pool and reports latency plus pool usage
func (db *DB) HealthCheck(ctx context.Context) *HealthStatus {
	status := &HealthStatus{Timestamp: time.Now()}

	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status
	}
	status.ResponseTime = time.Since(start).String()

	stats := db.Pool.Stat()
	status.AcquiredConns = stats.AcquiredConns()
	status.IdleConns = stats.IdleConns()
	status.TotalConns = stats.TotalConns()
	status.MaxConns = stats.MaxConns()
	status.Healthy = true
	return status
}

// HealthStatus is the /health view of the pool
type HealthStatus struct {
	Healthy       bool      `json:"healthy"`
	Timestamp     time.Time `json:"timestamp"`
	ResponseTime  string    `json:"response_time,omitempty"`
	Error         string    `json:"error,omitempty"`
	AcquiredConns int32     `json:"acquired_conns"`
	IdleConns     int32     `json:"idle_conns"`
	TotalConns    int32     `json:"total_conns"`
	MaxConns      int32     `json:"max_conns"`
}
