package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/external/news"
	"github.com/wonny/tradecraft/pkg/logger"
)

// EventRunner runs one event through the pipeline (session.Runner)
type EventRunner interface {
	Run(ctx context.Context, event contracts.Event, onStage contracts.StageHandler) (*contracts.RunResult, error)
}

// HeadlineSource provides ticker headlines (news.Client)
type HeadlineSource interface {
	TopHeadlines(ctx context.Context, ticker string, max int) []news.Headline
}

// NewsPipelineJob runs the pipeline on the latest headline of every
// watchlist ticker
// ⭐ SSOT: 워치리스트 자동 실행은 이 Job에서만
type NewsPipelineJob struct {
	feed      HeadlineSource
	runner    EventRunner
	watchlist []string
	schedule  string
	logger    *logger.Logger
}

// NewNewsPipelineJob creates a new news pipeline job
func NewNewsPipelineJob(feed HeadlineSource, runner EventRunner, watchlist []string, log *logger.Logger) *NewsPipelineJob {
	return &NewsPipelineJob{
		feed:      feed,
		runner:    runner,
		watchlist: watchlist,
		schedule:  "0 */30 13-21 * * MON-FRI", // US session, UTC
		logger:    log,
	}
}

// WithSchedule overrides the cron expression
func (j *NewsPipelineJob) WithSchedule(schedule string) *NewsPipelineJob {
	j.schedule = schedule
	return j
}

// Name returns the job name
func (j *NewsPipelineJob) Name() string {
	return "news_pipeline"
}

// Schedule returns the cron schedule
func (j *NewsPipelineJob) Schedule() string {
	return j.schedule
}

// Run executes one pass over the watchlist. Tickers whose feed only returns
// the fallback headline are skipped. Every ticker is attempted; failures are
// joined.
func (j *NewsPipelineJob) Run(ctx context.Context) error {
	var errs []error
	ran, skipped := 0, 0

	for _, ticker := range j.watchlist {
		if err := ctx.Err(); err != nil {
			return err
		}

		top := j.feed.TopHeadlines(ctx, ticker, 1)
		if len(top) == 0 || top[0].IsFallback() {
			skipped++
			j.logger.WithTicker(ticker).Debug("No live headline, skipping")
			continue
		}

		event := contracts.Event{Headline: top[0].Headline, Ticker: ticker, Source: top[0].Source}
		result, err := j.runner.Run(ctx, event, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ticker, err))
			continue
		}

		ran++
		j.logger.WithRun(result.RunID).WithFields(map[string]interface{}{
			"ticker": ticker,
			"vetoed": result.Vetoed,
		}).Info("Watchlist run completed")
	}

	j.logger.WithFields(map[string]interface{}{
		"ran":     ran,
		"skipped": skipped,
		"failed":  len(errs),
	}).Info("News pipeline pass finished")

	return errors.Join(errs...)
}
