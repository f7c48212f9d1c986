package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/tradecraft/internal/scheduler"
	"github.com/wonny/tradecraft/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

이 명령어는:
- 스케줄러 데몬 시작
- 등록된 작업 조회
- 작업 즉시 실행

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/tradecraft scheduler start
  go run ./cmd/tradecraft scheduler list
  go run ./cmd/tradecraft scheduler run news_pipeline`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- news_pipeline: 평일 미국장 시간 30분마다 (워치리스트 헤드라인 실행)
- sample_replay: 매시간 (샘플 이벤트 순환 실행)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Tradecraft Scheduler ===")
	fmt.Println()

	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// Start scheduler
	sched.Start()

	fmt.Println("✅ Scheduler started successfully")
	fmt.Printf("   Mode: %s\n", a.runner.Mode())
	fmt.Println("\nRegistered jobs:")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printJobStats(sched)
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJobSync(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("job %s failed after %s: %s", jobName, result.Duration, result.Error)
	}
	fmt.Printf("✅ Job %s completed in %.2fs\n", jobName, result.Duration.Seconds())
	return nil
}

// initScheduler registers every pipeline job on a fresh scheduler
func initScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log).WithMetrics(a.metrics)

	newsJob := jobs.NewNewsPipelineJob(a.news, a.runner, a.cfg.News.Watchlist, a.log)
	if err := sched.AddJob(newsJob); err != nil {
		return nil, err
	}

	replayJob := jobs.NewSampleReplayJob(a.samples, a.runner, a.log)
	if err := sched.AddJob(replayJob); err != nil {
		return nil, err
	}

	return sched, nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %-15s %s\n", jobName, stats[jobName].Schedule)
	}
}

func printJobStats(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println()
	for _, jobName := range names {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}
