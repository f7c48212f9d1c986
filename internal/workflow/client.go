// Package workflow dispatches a remote pipeline run and polls for its JSON
// result.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/creasty/defaults"

	"github.com/wonny/tradecraft/internal/contracts"
	"github.com/wonny/tradecraft/internal/metrics"
	"github.com/wonny/tradecraft/pkg/config"
	"github.com/wonny/tradecraft/pkg/httputil"
	"github.com/wonny/tradecraft/pkg/logger"
	"github.com/wonny/tradecraft/pkg/redis"
)

// Client talks to the workflow dispatch endpoint and the result data directory
// ⭐ SSOT: 원격 워크플로 호출은 여기서만
type Client struct {
	http        *httputil.Client
	dispatchURL string
	dataURL     string
	ref         string
	cache       *redis.Cache
	metrics     *metrics.Recorder
	logger      *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// PollOptions bounds one poll loop. Zero durations take the defaults.
type PollOptions struct {
	MaxWait  time.Duration `default:"5m"`
	Interval time.Duration `default:"5s"`

	// OnTick receives the remaining seconds once per interval. Display only.
	OnTick func(remainingSeconds int)
}

// NewClient creates a client with its own HTTP client. Dispatch and poll
// never retry at the transport level; the poll loop is the retry.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	httpClient := httputil.NewWithTimeout(cfg, log, 15*time.Second).
		DisableRetry().
		WithLocalLimit(cfg.Workflow.RatePerSecond)

	ref := cfg.Workflow.Ref
	if ref == "" {
		ref = "main"
	}

	return &Client{
		http:        httpClient,
		dispatchURL: cfg.Workflow.DispatchURL,
		dataURL:     cfg.Workflow.DataURL,
		ref:         ref,
		logger:      log,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// WithRedis enables the result cache and the distributed rate limiter
func (c *Client) WithRedis(client *redis.Client) *Client {
	if client == nil || !client.Enabled() {
		return c
	}
	c.cache = redis.NewCache(client, client.Prefix())
	c.http.WithRateLimiter(redis.NewRateLimiter(client, client.Prefix()), redis.WorkflowRateLimit)
	return c
}

// WithMetrics attaches a metrics recorder
func (c *Client) WithMetrics(rec *metrics.Recorder) *Client {
	c.metrics = rec
	return c
}

// NewRunID returns a fresh identifier: run-<unix millis>
func NewRunID() string {
	return contracts.RunIDAt(time.Now())
}

// dispatchRequest is the workflow_dispatch body
type dispatchRequest struct {
	Ref    string         `json:"ref"`
	Inputs dispatchInputs `json:"inputs"`
}

type dispatchInputs struct {
	Headline string `json:"headline"`
	Ticker   string `json:"ticker"`
	Source   string `json:"source"`
	RunID    string `json:"run_id"`
}

// Dispatch asks the remote system to start a run for event and returns the
// run id. A single attempt: any non-2xx is a *DispatchError.
func (c *Client) Dispatch(ctx context.Context, event contracts.Event, credential string) (string, error) {
	if credential == "" {
		return "", ErrMissingCredential
	}

	event = event.Normalize()
	runID := contracts.RunIDAt(c.now())

	body := dispatchRequest{
		Ref: c.ref,
		Inputs: dispatchInputs{
			Headline: event.Headline,
			Ticker:   event.Ticker,
			Source:   event.Source,
			RunID:    runID,
		},
	}

	resp, err := c.http.PostJSON(ctx, c.dispatchURL, body,
		httputil.WithBearer(credential),
		httputil.WithHeader("Accept", "application/vnd.github+json"))
	if err != nil {
		c.metrics.DispatchResult(false)
		return "", fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.DispatchResult(false)
		dispatchErr := &DispatchError{StatusCode: resp.StatusCode}

		var remote struct {
			Message string `json:"message"`
		}
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil {
			if json.Unmarshal(data, &remote) == nil {
				dispatchErr.Message = remote.Message
			}
		}
		return "", dispatchErr
	}

	c.metrics.DispatchResult(true)
	c.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"ticker": event.Ticker,
		"status": resp.StatusCode,
	}).Info("Workflow dispatched")

	return runID, nil
}

// PollForResult fetches pipeline-{runID}.json once per interval until it
// reports status "complete". Makes at most ceil(MaxWait/Interval) attempts;
// every other outcome is retried silently. Exhausting the budget returns
// ErrPollTimeout.
func (c *Client) PollForResult(ctx context.Context, runID string, opts PollOptions) (*contracts.RunResult, error) {
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("poll options: %w", err)
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("poll options: interval must be positive")
	}
	if !contracts.ValidRunID(runID) {
		return nil, fmt.Errorf("%w: invalid run id %q", ErrRunNotFound, runID)
	}

	attempts := int(math.Ceil(float64(opts.MaxWait) / float64(opts.Interval)))
	started := c.now()
	log := c.logger.WithRun(runID)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.sleep(ctx, opts.Interval); err != nil {
			c.metrics.PollFinished("cancelled", c.now().Sub(started))
			return nil, err
		}

		if opts.OnTick != nil {
			remaining := opts.MaxWait - time.Duration(attempt)*opts.Interval
			opts.OnTick(int(math.Max(0, remaining.Seconds())))
		}

		c.metrics.PollAttempt()
		result, err := c.fetchResult(ctx, runID)
		if err != nil {
			log.WithFields(map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			}).Debug("Result not ready")
			continue
		}
		if !result.IsComplete() {
			log.WithField("attempt", attempt).Debug("Result incomplete")
			continue
		}

		c.metrics.PollFinished("complete", c.now().Sub(started))
		c.cacheResult(ctx, result)
		log.WithField("attempts", attempt).Info("Pipeline result received")
		return result, nil
	}

	c.metrics.PollFinished("timeout", c.now().Sub(started))
	return nil, fmt.Errorf("%w: run %s after %s", ErrPollTimeout, runID, opts.MaxWait)
}

// LoadRunsIndex reads runs-index.json. Any failure yields an empty list.
func (c *Client) LoadRunsIndex(ctx context.Context) []contracts.RunSummary {
	var runs []contracts.RunSummary
	url := fmt.Sprintf("%s/runs-index.json?t=%d", c.dataURL, c.now().UnixMilli())
	if err := c.http.GetJSON(ctx, url, &runs); err != nil {
		c.logger.WithError(err).Debug("Runs index unavailable")
		return []contracts.RunSummary{}
	}
	if runs == nil {
		return []contracts.RunSummary{}
	}
	return runs
}

// LoadRun reads one result. Completed results are served from the cache when
// Redis is enabled. Any failure is ErrRunNotFound.
func (c *Client) LoadRun(ctx context.Context, runID string) (*contracts.RunResult, error) {
	if !contracts.ValidRunID(runID) {
		return nil, fmt.Errorf("%w: invalid run id %q", ErrRunNotFound, runID)
	}

	if c.cache != nil {
		var cached contracts.RunResult
		if found, err := c.cache.Get(ctx, redis.RunResultKey(runID), &cached); err == nil && found {
			return &cached, nil
		}
	}

	result, err := c.fetchResult(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRunNotFound, runID, err)
	}
	if result.IsComplete() {
		c.cacheResult(ctx, result)
	}
	return result, nil
}

func (c *Client) fetchResult(ctx context.Context, runID string) (*contracts.RunResult, error) {
	url := fmt.Sprintf("%s/pipeline-%s.json?t=%d", c.dataURL, runID, c.now().UnixMilli())

	var result contracts.RunResult
	if err := c.http.GetJSON(ctx, url, &result); err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("status %d", statusErr.StatusCode)
		}
		return nil, err
	}
	// the body's run_id is not trusted; it later names files and cache keys
	result.RunID = runID
	return &result, nil
}

func (c *Client) cacheResult(ctx context.Context, result *contracts.RunResult) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, redis.RunResultKey(result.RunID), result, redis.TTLLong); err != nil {
		c.logger.WithError(err).Warn("Failed to cache pipeline result")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
