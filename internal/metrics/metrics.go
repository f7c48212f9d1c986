// Package metrics records pipeline, workflow and HTTP metrics with Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds every collector. A nil *Recorder is valid and records nothing.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	dispatchTotal *prometheus.CounterVec
	pollAttempts  prometheus.Counter
	pollDuration  *prometheus.HistogramVec
	auditEntries  prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	schedulerRuns *prometheus.CounterVec
	fillSlippage  *prometheus.HistogramVec
	tradeOutcomes *prometheus.CounterVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecraft_runs_total",
				Help: "Completed pipeline runs",
			},
			[]string{"mode", "outcome"}, // outcome: executed|vetoed
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecraft_stage_duration_seconds",
				Help:    "Stage simulator duration, excluding pacing",
				Buckets: []float64{0.001, 0.01, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2},
			},
			[]string{"stage"},
		),
		dispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecraft_workflow_dispatch_total",
				Help: "Workflow dispatch attempts by result",
			},
			[]string{"result"}, // ok|failed
		),
		pollAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tradecraft_workflow_poll_attempts_total",
				Help: "Result fetch attempts while polling",
			},
		),
		pollDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecraft_workflow_poll_duration_seconds",
				Help:    "Time from first poll to terminal outcome",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"}, // complete|timeout|cancelled
		),
		auditEntries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tradecraft_audit_entries_total",
				Help: "Audit entries written",
			},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecraft_http_requests_total",
				Help: "HTTP requests served",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecraft_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
		schedulerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecraft_scheduler_job_runs_total",
				Help: "Scheduled job executions by job and result",
			},
			[]string{"job", "result"},
		),
		fillSlippage: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecraft_fill_slippage_bps",
				Help:    "Simulated fill slippage against arrival mid",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250},
			},
			[]string{"strategy"},
		),
		tradeOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecraft_trade_outcomes_total",
				Help: "Tracked trades by outcome",
			},
			[]string{"outcome"}, // WIN|LOSS|FLAT|VETOED
		),
	}
}

// Handler exposes the registry in the Prometheus text format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveStage records one stage duration
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RunCompleted counts a finished run
func (r *Recorder) RunCompleted(mode string, vetoed bool) {
	if r == nil {
		return
	}
	outcome := "executed"
	if vetoed {
		outcome = "vetoed"
	}
	r.runsTotal.WithLabelValues(mode, outcome).Inc()
}

// DispatchResult counts one dispatch attempt
func (r *Recorder) DispatchResult(ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.dispatchTotal.WithLabelValues(result).Inc()
}

// PollAttempt counts one result fetch
func (r *Recorder) PollAttempt() {
	if r == nil {
		return
	}
	r.pollAttempts.Inc()
}

// PollFinished records how a poll loop ended
func (r *Recorder) PollFinished(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.pollDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// AuditRecorded counts audit entries written
func (r *Recorder) AuditRecorded(n int) {
	if r == nil {
		return
	}
	r.auditEntries.Add(float64(n))
}

// HTTPRequest records one served request. route must be a template, not a raw path.
func (r *Recorder) HTTPRequest(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// JobRun counts one scheduler job execution
func (r *Recorder) JobRun(job string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failed"
	}
	r.schedulerRuns.WithLabelValues(job, result).Inc()
}

// FillSimulated records the slippage of one simulated execution
func (r *Recorder) FillSimulated(strategy string, slippageBps float64) {
	if r == nil {
		return
	}
	r.fillSlippage.WithLabelValues(strategy).Observe(slippageBps)
}

// TradeRecorded counts one tracked trade
func (r *Recorder) TradeRecorded(outcome string) {
	if r == nil {
		return
	}
	r.tradeOutcomes.WithLabelValues(outcome).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
