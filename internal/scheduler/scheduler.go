package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/tradecraft/internal/metrics"
	"github.com/wonny/tradecraft/pkg/logger"
)

// Scheduler manages scheduled jobs
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	metrics *metrics.Recorder
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
	mu      sync.RWMutex

	// Jobs run under ctx; Stop cancels it
	ctx    context.Context
	cancel context.CancelFunc

	// Retry configuration
	maxRetries int
	retryDelay time.Duration
}

// New creates a new scheduler
func New(log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     log,
		jobs:       make(map[string]Job),
		entries:    make(map[string]cron.EntryID),
		history:    make(map[string]*JobHistory),
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: 2,
		retryDelay: 30 * time.Second,
	}
}

// WithRetry overrides the retry policy (maxRetries extra attempts)
func (s *Scheduler) WithRetry(maxRetries int, delay time.Duration) *Scheduler {
	s.maxRetries = maxRetries
	s.retryDelay = delay
	return s
}

// WithMetrics attaches a metrics recorder
func (s *Scheduler) WithMetrics(rec *metrics.Recorder) *Scheduler {
	s.metrics = rec
	return s
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()

	// Check if job already exists
	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	// Add job to cron
	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(s.ctx, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	// Store job
	s.jobs[jobName] = job
	s.entries[jobName] = id
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobName]; !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	s.cron.Remove(s.entries[jobName])
	delete(s.jobs, jobName)
	delete(s.entries, jobName)
	s.logger.WithField("job", jobName).Info("Job removed from scheduler")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// RunJob runs a specific job immediately (outside of schedule)
func (s *Scheduler) RunJob(jobName string) error {
	job, err := s.job(jobName)
	if err != nil {
		return err
	}

	go s.runJob(s.ctx, job)
	return nil
}

// RunJobSync runs a job now and returns its result
func (s *Scheduler) RunJobSync(ctx context.Context, jobName string) (JobResult, error) {
	job, err := s.job(jobName)
	if err != nil {
		return JobResult{}, err
	}
	return s.runJob(ctx, job), nil
}

func (s *Scheduler) job(jobName string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}
	return job, nil
}

// runJob executes a job with retry logic
func (s *Scheduler) runJob(ctx context.Context, job Job) JobResult {
	jobName := job.Name()
	startTime := time.Now()

	s.logger.WithField("job", jobName).Info("Job started")

	var lastErr error
	var success bool

	// Try running the job with retries
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := job.Run(ctx)
		if err == nil {
			success = true
			break
		}

		lastErr = err
		s.logger.WithFields(map[string]interface{}{
			"job":     jobName,
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Job execution failed, retrying")

		// Wait before retry (except on last attempt)
		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = s.maxRetries
			case <-time.After(s.retryDelay):
			}
		}
	}

	endTime := time.Now()
	duration := endTime.Sub(startTime)

	// Create job result
	result := JobResult{
		JobName:   jobName,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
		Success:   success,
	}

	if !success && lastErr != nil {
		result.Error = lastErr.Error()
	}

	// Store result in history
	s.mu.Lock()
	if history, exists := s.history[jobName]; exists {
		history.AddResult(result)
	}
	s.mu.Unlock()

	if success {
		s.metrics.JobRun(jobName, nil)
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": duration,
		}).Info("Job completed successfully")
	} else {
		s.metrics.JobRun(jobName, lastErr)
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": duration,
			"error":    result.Error,
		}).Error("Job failed after all retries")
	}

	return result
}

// GetJobHistory returns the history for a specific job
func (s *Scheduler) GetJobHistory(jobName string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	return history, nil
}

// GetAllJobs returns all registered job names, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for jobName := range s.jobs {
		jobs = append(jobs, jobName)
	}
	sort.Strings(jobs)

	return jobs
}

// GetJobStats returns statistics for all registered jobs
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats)

	for jobName, job := range s.jobs {
		history := s.history[jobName]
		latestResults := history.GetLatestResults(1)
		failedResults := history.GetFailedResults()

		var lastRun *time.Time
		var lastSuccess *time.Time
		var lastFailure *time.Time

		if len(latestResults) > 0 {
			lastResult := latestResults[len(latestResults)-1]
			lastRun = &lastResult.StartTime

			if lastResult.Success {
				lastSuccess = &lastResult.StartTime
			} else {
				lastFailure = &lastResult.StartTime
			}
		}

		var next *time.Time
		if entry := s.cron.Entry(s.entries[jobName]); !entry.Next.IsZero() {
			next = &entry.Next
		}

		stats[jobName] = JobStats{
			JobName:      jobName,
			Schedule:     job.Schedule(),
			TotalRuns:    history.Len(),
			SuccessCount: history.Len() - len(failedResults),
			FailureCount: len(failedResults),
			SuccessRate:  history.GetSuccessRate(),
			LastRun:      lastRun,
			LastSuccess:  lastSuccess,
			LastFailure:  lastFailure,
			NextRun:      next,
		}
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}
