package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wonny/tradecraft/internal/agents"
	"github.com/wonny/tradecraft/internal/audit"
	"github.com/wonny/tradecraft/internal/brain"
	"github.com/wonny/tradecraft/internal/events"
	"github.com/wonny/tradecraft/internal/execution"
	"github.com/wonny/tradecraft/internal/external/news"
	"github.com/wonny/tradecraft/internal/metrics"
	"github.com/wonny/tradecraft/internal/publish"
	"github.com/wonny/tradecraft/internal/session"
	"github.com/wonny/tradecraft/internal/sizing"
	"github.com/wonny/tradecraft/internal/workflow"
	"github.com/wonny/tradecraft/pkg/config"
	"github.com/wonny/tradecraft/pkg/database"
	"github.com/wonny/tradecraft/pkg/logger"
	"github.com/wonny/tradecraft/pkg/redis"
)

// app wires every component once per command
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Recorder

	redis *redis.Client
	db    *database.DB

	ledger       *audit.Ledger
	analyzer     *audit.Analyzer
	sizer        *sizing.Sizer
	publisher    *publish.Publisher
	workflow     *workflow.Client
	news         *news.Client
	orchestrator *brain.Orchestrator
	runner       *session.Runner
	samples      []events.Sample
}

// resultsDir holds pipeline-{runId}.json and runs-index.json (served as /data/)
func resultsDir(cfg *config.Config) string {
	return filepath.Join(cfg.Storage.DataDir, "runs")
}

func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if noPacing {
		cfg.Pipeline.Pacing = false
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	// 3. Metrics
	a.registry = prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		a.metrics = metrics.New(a.registry)
	}

	// 4. Redis (optional)
	a.redis, err = redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 5. Database (postgres storage only)
	if cfg.Storage.Backend == config.StoragePostgres {
		a.db, err = database.New(ctx, cfg)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
	}

	// 6. Audit ledger
	store, err := audit.OpenStore(ctx, cfg, a.redis, a.db)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	a.ledger = audit.NewLedger(store, cfg.Storage.AuditLimit, log).WithMetrics(a.metrics)
	a.analyzer = audit.NewAnalyzer(a.ledger, cfg.Pipeline.NAVUSD, log).WithMetrics(a.metrics)

	// 7. Sample events
	a.samples, err = events.Load(cfg.EventsFile)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load events: %w", err)
	}

	// 8. Pipeline
	rng := agents.NewLockedSource(cfg.Pipeline.Seed)
	sim := agents.NewSimulator(rng, agents.RiskLimits{
		MaxPositionPct: cfg.Pipeline.MaxPositionPct,
		HardVetoPct:    cfg.Pipeline.HardVetoPct,
	})
	pacing := brain.NoPacing()
	if cfg.Pipeline.Pacing {
		pacing = brain.DefaultPacing()
	}
	a.orchestrator = brain.NewOrchestrator(sim, rng, pacing, log).WithMetrics(a.metrics)

	// 9. External clients
	a.workflow = workflow.NewClient(cfg, log).WithRedis(a.redis).WithMetrics(a.metrics)
	a.news = news.NewClient(cfg, log).WithRedis(a.redis)
	a.publisher = publish.New(resultsDir(cfg), log)

	// 10. Session runner
	a.runner = session.NewRunner(a.orchestrator, a.workflow,
		session.NewMemoryCredentials(cfg.Workflow.Token), a.ledger, log).
		WithPublisher(a.publisher).
		WithPollOptions(workflow.PollOptions{
			MaxWait:  cfg.Workflow.PollMaxWait,
			Interval: cfg.Workflow.PollInterval,
		}).
		WithMetrics(a.metrics).
		WithTracker(a.analyzer)

	// 11. Fill simulation + position sizing
	if cfg.Pipeline.FillSimulation {
		a.runner.WithFills(execution.NewSimulator(rng, cfg.Pipeline.NAVUSD, log).WithMetrics(a.metrics))
	}
	if cfg.Sizer.Enabled {
		sizerStore, err := sizing.OpenStore(cfg, a.redis)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open sizer store: %w", err)
		}
		a.sizer = sizing.NewSizer(cfg.Sizer, sizerStore, rng, log)
		if err := a.sizer.Load(ctx); err != nil {
			a.close()
			return nil, err
		}
		a.runner.WithSizer(a.sizer)
	}

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}
