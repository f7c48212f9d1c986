package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/sizing"
	"github.com/wonny/tradecraft/pkg/logger"
)

// PerformanceReader summarises the trade log (audit.Analyzer)
type PerformanceReader interface {
	Analyze(ctx context.Context) (*contracts.PerformanceSummary, error)
}

// PolicyReader exposes the learned sizing policy (sizing.Sizer)
type PolicyReader interface {
	Policy() sizing.Policy
}

// PerformanceHandler serves trade performance and the sizing policy
type PerformanceHandler struct {
	tracker PerformanceReader
	sizer   PolicyReader
	logger  *logger.Logger
}

// NewPerformanceHandler creates a performance handler. sizer may be nil.
func NewPerformanceHandler(tracker PerformanceReader, sizer PolicyReader, log *logger.Logger) *PerformanceHandler {
	return &PerformanceHandler{tracker: tracker, sizer: sizer, logger: log}
}

// Summary returns the performance summary
// GET /api/performance
func (h *PerformanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.tracker.Analyze(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to analyze performance")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve performance")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Policy returns the learned sizing policy
// GET /api/sizer/policy
func (h *PerformanceHandler) Policy(w http.ResponseWriter, r *http.Request) {
	if h.sizer == nil {
		respondError(w, http.StatusNotFound, "Position sizer is disabled")
		return
	}
	respondJSON(w, http.StatusOK, h.sizer.Policy())
}
