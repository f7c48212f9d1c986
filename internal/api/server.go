package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/tradecraft/pkg/config"
	"github.com/wonny/tradecraft/pkg/logger"
)

// ShutdownTimeout bounds graceful shutdown; in-flight streamed runs get this
// long to finish.
const ShutdownTimeout = 30 * time.Second

// Server represents the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	env        string
}

// New creates a new API server. WriteTimeout covers a paced run plus a remote
// poll, so it follows WORKFLOW_POLL_MAX_WAIT.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      cfg.Workflow.PollMaxWait + 30*time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: log,
		env:    cfg.Env,
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
// A listen failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithFields(map[string]interface{}{
		"addr": s.httpServer.Addr,
		"env":  s.env,
	}).Info("Starting API server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
