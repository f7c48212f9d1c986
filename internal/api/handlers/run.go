package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/events"
	"github.com/wonny/tradecraft/internal/session"
	"github.com/wonny/tradecraft/internal/workflow"
	"github.com/wonny/tradecraft/pkg/logger"
)

// PipelineRunner runs one event (session.Runner)
type PipelineRunner interface {
	Run(ctx context.Context, event contracts.Event, onStage contracts.StageHandler) (*contracts.RunResult, error)
	Mode() string
	Credentials() session.CredentialStore
}

// RunHandler handles pipeline run endpoints
// ⭐ SSOT: 파이프라인 실행 API 핸들러는 여기서만
type RunHandler struct {
	runner  PipelineRunner
	samples []events.Sample
	logger  *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runner PipelineRunner, samples []events.Sample, log *logger.Logger) *RunHandler {
	return &RunHandler{
		runner:  runner,
		samples: samples,
		logger:  log,
	}
}

// Events returns the sample events
// GET /api/events
func (h *RunHandler) Events(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": h.samples,
	})
}

// Run executes the pipeline and returns the full result
// POST /api/run
func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	var event contracts.Event
	if errs := decodeJSON(r, &event); errs != nil {
		respondValidation(w, errs)
		return
	}
	event = event.Normalize()
	if errs := validateRequest(r, &event); errs != nil {
		respondValidation(w, errs)
		return
	}

	result, err := h.runner.Run(r.Context(), event, nil)
	if err != nil {
		status, message := runErrorStatus(err)
		h.logger.WithError(err).WithTicker(event.Ticker).Error("Pipeline run failed")
		respondError(w, status, message)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// runErrorStatus maps a run failure to an HTTP status and user message
func runErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, workflow.ErrPollTimeout):
		return http.StatusGatewayTimeout, "Timed out waiting for the remote pipeline; check the workflow run"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Pipeline run cancelled"
	default:
		return http.StatusInternalServerError, "Pipeline run failed"
	}
}

// CredentialRequest sets the workflow credential
type CredentialRequest struct {
	Credential string `json:"credential" validate:"required,max=512"`
}

// GetCredential reports the current mode; the credential itself is never returned
// GET /api/credential
func (h *RunHandler) GetCredential(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"configured": h.runner.Credentials().Get() != "",
		"mode":       h.runner.Mode(),
	})
}

// SetCredential stores the workflow credential for this process
// PUT /api/credential
func (h *RunHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if errs := decodeRequest(r, &req); errs != nil {
		respondValidation(w, errs)
		return
	}

	h.runner.Credentials().Set(strings.TrimSpace(req.Credential))
	h.logger.WithField("mode", h.runner.Mode()).Info("Workflow credential updated")
	w.WriteHeader(http.StatusNoContent)
}

// ClearCredential removes the workflow credential
// DELETE /api/credential
func (h *RunHandler) ClearCredential(w http.ResponseWriter, r *http.Request) {
	h.runner.Credentials().Clear()
	h.logger.Info("Workflow credential cleared")
	w.WriteHeader(http.StatusNoContent)
}
