package scheduler

import (
	"context"
	"sync"
	"time"
)

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job
	Run(ctx context.Context) error

	// Schedule returns the cron schedule expression (with seconds)
	// Examples: "0 */30 * * * *" (every 30 minutes), "@hourly"
	Schedule() string
}

// JobResult represents the result of a job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

const historyLimit = 100

// JobHistory stores the last historyLimit results of one job. Safe for
// concurrent use.
type JobHistory struct {
	mu      sync.RWMutex
	Results []JobResult
}

// AddResult adds a job result to history
func (h *JobHistory) AddResult(result JobResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Results = append(h.Results, result)
	if len(h.Results) > historyLimit {
		h.Results = h.Results[len(h.Results)-historyLimit:]
	}
}

// Len returns the number of stored results
func (h *JobHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Results)
}

// GetLatestResults returns a copy of the latest n results, oldest first
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > len(h.Results) {
		n = len(h.Results)
	}
	out := make([]JobResult, n)
	copy(out, h.Results[len(h.Results)-n:])
	return out
}

// GetFailedResults returns all failed results
func (h *JobHistory) GetFailedResults() []JobResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// GetSuccessRate returns the success rate (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.Results) == 0 {
		return 0.0
	}

	successCount := 0
	for _, result := range h.Results {
		if result.Success {
			successCount++
		}
	}

	return float64(successCount) / float64(len(h.Results))
}
