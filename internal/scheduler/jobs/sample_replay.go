package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/tradecraft/internal/events"
	"github.com/wonny/tradecraft/pkg/logger"
)

// SampleReplayJob runs the sample events one per tick, in rotation
type SampleReplayJob struct {
	samples  []events.Sample
	runner   EventRunner
	schedule string
	logger   *logger.Logger

	mu   sync.Mutex
	next int
}

// NewSampleReplayJob creates a new sample replay job
func NewSampleReplayJob(samples []events.Sample, runner EventRunner, log *logger.Logger) *SampleReplayJob {
	return &SampleReplayJob{
		samples:  samples,
		runner:   runner,
		schedule: "0 0 * * * *", // hourly
		logger:   log,
	}
}

// WithSchedule overrides the cron expression
func (j *SampleReplayJob) WithSchedule(schedule string) *SampleReplayJob {
	j.schedule = schedule
	return j
}

// Name returns the job name
func (j *SampleReplayJob) Name() string {
	return "sample_replay"
}

// Schedule returns the cron schedule
func (j *SampleReplayJob) Schedule() string {
	return j.schedule
}

// Run executes the next sample. The rotation only advances on success, so a
// retried attempt replays the same sample.
func (j *SampleReplayJob) Run(ctx context.Context) error {
	if len(j.samples) == 0 {
		return fmt.Errorf("no sample events loaded")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	sample := j.samples[j.next%len(j.samples)]
	result, err := j.runner.Run(ctx, sample.Event, nil)
	if err != nil {
		return fmt.Errorf("sample %s: %w", sample.ID, err)
	}
	j.next++

	j.logger.WithRun(result.RunID).WithFields(map[string]interface{}{
		"sample": sample.ID,
		"ticker": sample.Ticker,
		"vetoed": result.Vetoed,
	}).Info("Sample replayed")

	return nil
}
