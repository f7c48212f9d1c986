package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/tradecraft/internal/api"
	"github.com/wonny/tradecraft/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST + WebSocket API 서버를 시작합니다.

이 명령어는:
- 파이프라인 실행 엔드포인트 제공 (mock / remote)
- 스테이지 결과를 WebSocket으로 스트리밍
- 감사 로그 / 통계 / 실행 기록 조회

Endpoints:
  GET    /health              - Health check
  GET    /api/events          - Sample events
  POST   /api/run             - Run one event
  GET    /api/run/stream      - WebSocket stage stream
  GET    /api/credential      - Credential status
  PUT    /api/credential      - Set workflow credential
  DELETE /api/credential      - Clear workflow credential
  GET    /api/audit           - Audit log
  GET    /api/stats           - Run statistics
  GET    /api/performance     - Trade performance
  GET    /api/sizer/policy    - Learned position sizing policy
  GET    /api/runs            - Runs index
  GET    /api/runs/{id}       - One run result
  GET    /data/...            - Published result files
  GET    /metrics             - Prometheus metrics

Example:
  go run ./cmd/tradecraft api
  go run ./cmd/tradecraft api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "스케줄러를 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Tradecraft API Server ===")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port":    a.cfg.Port,
		"env":     a.cfg.Env,
		"mode":    a.runner.Mode(),
		"storage": a.cfg.Storage.Backend,
	}).Info("Initializing API server")

	// 1. Handlers
	h := api.Handlers{
		Health: handlers.NewHealthHandler("tradecraft", a.db, a.redis),
		Run:    handlers.NewRunHandler(a.runner, a.samples, a.log),
		Audit:  handlers.NewAuditHandler(a.ledger, a.log),
		Runs:   handlers.NewRunsHandler(a.workflow, a.log),

		Performance: handlers.NewPerformanceHandler(a.analyzer, sizerPolicy(a), a.log),
	}

	// 2. Router
	opts := api.RouterOptions{
		DataDir: a.cfg.Storage.DataDir,
		Metrics: a.metrics,
	}
	if a.cfg.MetricsEnabled {
		opts.Gatherer = a.registry
	}
	router := api.NewRouter(h, opts, a.log)

	// 3. Optional scheduler
	if apiWithScheduler {
		sched, err := initScheduler(a)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// 4. Serve until interrupted
	server := api.New(a.cfg, a.log, router)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s (mode: %s)\n", a.cfg.Port, a.runner.Mode())
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}

	a.log.Info("Server stopped")
	return nil
}

// sizerPolicy keeps a disabled sizer a nil interface
func sizerPolicy(a *app) handlers.PolicyReader {
	if a.sizer == nil {
		return nil
	}
	return a.sizer
}
