package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecraft/pkg/config"
	"github.com/wonny/tradecraft/pkg/logger"
)

func TestServerRunStopsOnCancel(t *testing.T) {
	cfg := &config.Config{Port: "0", Env: "test"}
	cfg.Workflow.PollMaxWait = time.Second

	server := New(cfg, logger.Nop(), http.NotFoundHandler())
	assert.Equal(t, ":0", server.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
