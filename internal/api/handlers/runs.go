package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/workflow"
	"github.com/wonny/tradecraft/pkg/logger"
)

// RunsSource lists and loads published runs (workflow.Client)
type RunsSource interface {
	LoadRunsIndex(ctx context.Context) []contracts.RunSummary
	LoadRun(ctx context.Context, runID string) (*contracts.RunResult, error)
}

// RunsHandler serves published run results
type RunsHandler struct {
	source RunsSource
	logger *logger.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(source RunsSource, log *logger.Logger) *RunsHandler {
	return &RunsHandler{source: source, logger: log}
}

// List returns the runs index (empty when unavailable)
// GET /api/runs
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs := h.source.LoadRunsIndex(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// Get returns one run result
// GET /api/runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	result, err := h.source.LoadRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, workflow.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.logger.WithError(err).WithField("run_id", runID).Error("Failed to load run")
		respondError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}

	respondJSON(w, http.StatusOK, result)
}
