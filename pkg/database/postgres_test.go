package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecraft/pkg/config"
)

func TestNewRequiresURL(t *testing.T) {
	_, err := New(context.Background(), &config.Config{})
	assert.Error(t, err)
}

func TestNewWithInvalidURL(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			URL:             "invalid://url",
			MaxConns:        5,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
	}

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	// Skip if DATABASE_URL is not set
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := New(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	status := db.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.Greater(t, status.MaxConns, int32(0))

	// Double close should not panic
	db.Close()
}
