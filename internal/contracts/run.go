package contracts

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run status and mode values
const (
	StatusComplete = "complete"

	ModeMock   = "mock"
	ModeRemote = "remote"
)

// RunResult is the outcome of one pipeline invocation. Stage payloads are
// filled in order; a vetoed run has no Execution payload.
// ⭐ SSOT: pipeline-{run_id}.json 스키마
type RunResult struct {
	RunID          string `json:"run_id"`
	Status         string `json:"status"`
	Mode           string `json:"mode,omitempty"`
	Event          Event  `json:"event"`
	Timestamp      string `json:"timestamp"`
	Vetoed         bool   `json:"vetoed"`
	Model          string `json:"model,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`

	Researcher *ResearchPayload   `json:"researcher,omitempty"`
	Signal     *SignalPayload     `json:"signal_agent,omitempty"`
	Risk       *RiskPayload       `json:"risk_manager,omitempty"`
	Execution  *ExecutionPayload  `json:"execution_agent,omitempty"`
	Supervisor *SupervisorPayload `json:"supervisor,omitempty"`

	// Local replay of the execution plan; not part of the remote shape
	Fill        *FillReport   `json:"fill,omitempty"`
	Performance *TradeOutcome `json:"performance,omitempty"`
}

// IsComplete reports whether the result carries the terminal status
func (r *RunResult) IsComplete() bool {
	return r != nil && r.Status == StatusComplete
}

// Payload returns the payload recorded for a stage, or nil
func (r *RunResult) Payload(stage Stage) interface{} {
	switch stage {
	case StageResearcher:
		if r.Researcher != nil {
			return r.Researcher
		}
	case StageSignal:
		if r.Signal != nil {
			return r.Signal
		}
	case StageRisk:
		if r.Risk != nil {
			return r.Risk
		}
	case StageExecution:
		if r.Execution != nil {
			return r.Execution
		}
	case StageSupervisor:
		if r.Supervisor != nil {
			return r.Supervisor
		}
	}
	return nil
}

// CompletedStages returns the stages that produced a payload, in pipeline order
func (r *RunResult) CompletedStages() []Stage {
	stages := make([]Stage, 0, 5)
	for _, stage := range AllStages() {
		if r.Payload(stage) != nil {
			stages = append(stages, stage)
		}
	}
	return stages
}

// Summary builds the runs-index row for this result
func (r *RunResult) Summary() RunSummary {
	return RunSummary{
		RunID:     r.RunID,
		Ticker:    r.Event.Ticker,
		Headline:  r.Event.Headline,
		Timestamp: r.Timestamp,
	}
}

// StageEvent is one stage-completion notification. Final is true only for
// the Supervisor.
type StageEvent struct {
	RunID       string      `json:"run_id"`
	Stage       Stage       `json:"stage"`
	MessageType string      `json:"message_type"`
	MessageID   string      `json:"message_id"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
	Final       bool        `json:"final"`
}

// StageHandler receives stage events as they complete
type StageHandler func(StageEvent)

// RunSummary is one row of runs-index.json
type RunSummary struct {
	RunID     string `json:"run_id"`
	Ticker    string `json:"ticker"`
	Headline  string `json:"headline"`
	Timestamp string `json:"timestamp"`
}

// TimestampFormat is the layout used for RunResult.Timestamp
const TimestampFormat = time.RFC3339

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidRunID reports whether id is safe to use in a URL and a file name
func ValidRunID(id string) bool {
	return runIDPattern.MatchString(id)
}

// RunIDAt formats a run identifier from a wall-clock instant: run-<unix millis>
func RunIDAt(t time.Time) string {
	return fmt.Sprintf("run-%d", t.UnixMilli())
}

// LocalRunID is RunIDAt with an 8-hex suffix, so local runs started in the
// same millisecond get distinct ids: run-<unix millis>-<hex>
func LocalRunID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s", RunIDAt(t), suffix)
}
