package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/pkg/logger"
)

const defaultAuditLimit = 50

// AuditReader reads the audit ledger (audit.Ledger)
type AuditReader interface {
	Entries(ctx context.Context, limit int) ([]contracts.AuditEntry, error)
	Stats(ctx context.Context) (contracts.Stats, error)
}

// AuditHandler serves the audit log and run counters
type AuditHandler struct {
	ledger AuditReader
	logger *logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(ledger AuditReader, log *logger.Logger) *AuditHandler {
	return &AuditHandler{ledger: ledger, logger: log}
}

// Log returns the newest audit entries
// GET /api/audit?limit=50
func (h *AuditHandler) Log(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.ledger.Entries(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read audit log")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve audit log")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// Stats returns the run counters
// GET /api/stats
func (h *AuditHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Stats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read stats")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
