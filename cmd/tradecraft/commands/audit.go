package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log and run statistics",
	Long: `Inspect the audit ledger written after every run.

Subcommands:
  log    - most recent audit entries (newest first)
  stats        - run / veto / audit counters
  performance  - trade performance of finished runs`,
}

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent audit entries",
	RunE:  runAuditLog,
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run statistics",
	RunE:  runAuditStats,
}

var auditPerformanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Show trade performance",
	RunE:  runAuditPerformance,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditLogCmd)
	auditCmd.AddCommand(auditStatsCmd)
	auditCmd.AddCommand(auditPerformanceCmd)

	auditLogCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "number of entries")
	auditLogCmd.Flags().BoolVar(&runJSON, "json", false, "print as JSON")
	auditStatsCmd.Flags().BoolVar(&runJSON, "json", false, "print as JSON")
	auditPerformanceCmd.Flags().BoolVar(&runJSON, "json", false, "print as JSON")
}

func runAuditLog(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	entries, err := a.ledger.Entries(ctx, auditLimit)
	if err != nil {
		return fmt.Errorf("load audit log: %w", err)
	}
	if runJSON {
		return printJSON(entries)
	}

	fmt.Println("=== Audit Log ===")
	fmt.Println()
	if len(entries) == 0 {
		fmt.Println("No audit entries yet")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-26s %-16s %-18s %s\n",
			e.Time.Format("2006-01-02 15:04:05"), e.ID, e.Agent, e.Type, e.Summary)
	}
	fmt.Printf("\nShowing %d entries\n", len(entries))
	return nil
}

func runAuditStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.ledger.Stats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	if runJSON {
		return printJSON(stats)
	}

	fmt.Println("📊 Run Statistics")
	PrintSeparator()
	fmt.Printf("  Storage     : %s\n", a.cfg.Storage.Backend)
	fmt.Printf("  Runs        : %d\n", stats.RunCount)
	fmt.Printf("  Vetoes      : %d\n", stats.VetoCount)
	fmt.Printf("  Audit items : %d\n", stats.AuditCount)
	if stats.RunCount > 0 {
		fmt.Printf("  Veto rate   : %.1f%%\n", float64(stats.VetoCount)/float64(stats.RunCount)*100)
	}
	PrintSeparator()
	return nil
}

func runAuditPerformance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := a.analyzer.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("analyze performance: %w", err)
	}
	if runJSON {
		return printJSON(summary)
	}

	fmt.Println("📈 Trade Performance")
	PrintSeparator()
	if summary.TotalRuns == 0 {
		fmt.Println("  No trades yet")
	}
	for _, line := range performanceLines(summary) {
		fmt.Printf("  %s\n", line)
	}
	if a.sizer != nil {
		p := a.sizer.Policy()
		fmt.Printf("  Sizer         : step %d, epsilon %.4f, %d states\n", p.Step, p.Epsilon, p.StatesVisited)
	}
	PrintSeparator()
	return nil
}
