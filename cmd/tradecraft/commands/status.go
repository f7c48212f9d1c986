package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tradecraft/pkg/database"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "설정 및 연결 상태 확인",
	Long: `현재 설정과 외부 의존성 연결 상태를 표시합니다.

표시 정보:
- 실행 모드 (mock / remote)
- 저장소 백엔드와 감사 통계
- Redis / PostgreSQL 연결 상태
- 샘플 이벤트 수

Example:
  go run ./cmd/tradecraft status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	defer a.close()

	PrintTitle("Tradecraft Status")
	PrintSeparator()
	fmt.Printf("  Env          : %s\n", a.cfg.Env)
	fmt.Printf("  Mode         : %s\n", a.runner.Mode())
	fmt.Printf("  Dispatch URL : %s\n", a.cfg.Workflow.DispatchURL)
	fmt.Printf("  Data URL     : %s\n", a.cfg.Workflow.DataURL)
	fmt.Printf("  Pacing       : %t\n", a.cfg.Pipeline.Pacing)
	fmt.Printf("  Samples      : %d\n", len(a.samples))
	fmt.Printf("  Watchlist    : %v\n", a.cfg.News.Watchlist)
	PrintSeparator()

	// Storage
	stats, err := a.ledger.Stats(ctx)
	if err != nil {
		fmt.Printf("❌ Storage (%s): %v\n", a.cfg.Storage.Backend, err)
	} else {
		fmt.Printf("✅ Storage (%s): %d runs, %d vetoes, %d audit entries\n",
			a.cfg.Storage.Backend, stats.RunCount, stats.VetoCount, stats.AuditCount)
	}

	// Redis
	switch {
	case !a.redis.Enabled():
		fmt.Println("⚪ Redis: disabled")
	case a.redis.Ping(ctx) != nil:
		fmt.Println("❌ Redis: unreachable")
	default:
		fmt.Println("✅ Redis: connected")
	}

	// PostgreSQL
	db := a.db
	if db == nil && a.cfg.Database.Enabled() {
		if db, err = database.New(ctx, a.cfg); err != nil {
			fmt.Printf("❌ PostgreSQL (%s): %v\n", maskPassword(a.cfg.Database.URL), err)
			return nil
		}
		defer db.Close()
	}
	if db == nil {
		fmt.Println("⚪ PostgreSQL: not configured")
		return nil
	}

	status := db.HealthCheck(ctx)
	if !status.Healthy {
		fmt.Printf("❌ PostgreSQL: %s\n", status.Error)
		return nil
	}
	fmt.Printf("✅ PostgreSQL: %s (conns %d/%d)\n", status.ResponseTime, status.TotalConns, status.MaxConns)
	return nil
}

// maskPassword hides the password portion of a connection URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
