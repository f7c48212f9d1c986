package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/wonny/tradecraft/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Terminal output
// 모든 커맨드가 동일한 카드/구분선 포맷을 사용
// ═══════════════════════════════════════════════════════════

const separator = "═══════════════════════════════════════════════════════════"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(72)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	vetoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

// stageColors keeps the stage cards distinguishable at a glance
var stageColors = map[contracts.Stage]lipgloss.Color{
	contracts.StageResearcher: lipgloss.Color("#3B82F6"),
	contracts.StageSignal:     lipgloss.Color("#8B5CF6"),
	contracts.StageRisk:       lipgloss.Color("#F59E0B"),
	contracts.StageExecution:  lipgloss.Color("#10B981"),
	contracts.StageSupervisor: lipgloss.Color("#EF4444"),
}

// PrintSeparator prints the section separator
func PrintSeparator() {
	fmt.Println(separator)
}

// PrintTitle prints a styled command title
func PrintTitle(title string) {
	fmt.Println(titleStyle.Render(title))
}

func printEvent(event contracts.Event, mode string) {
	PrintSeparator()
	fmt.Printf("  Ticker   : %s\n", event.Ticker)
	fmt.Printf("  Headline : %s\n", event.Headline)
	fmt.Printf("  Source   : %s\n", event.Source)
	fmt.Printf("  Mode     : %s\n", mode)
	PrintSeparator()
}

// renderStage renders one completed stage as a bordered card
func renderStage(ev contracts.StageEvent) string {
	header := fmt.Sprintf("%s · %s  %s",
		ev.Stage.ShortName(), ev.Stage.DisplayName(), labelStyle.Render(ev.MessageType))

	lines := []string{header}
	lines = append(lines, stageLines(ev.Payload)...)

	return cardStyle.
		BorderForeground(stageColors[ev.Stage]).
		Render(strings.Join(lines, "\n"))
}

func stageLines(payload interface{}) []string {
	switch p := payload.(type) {
	case *contracts.ResearchPayload:
		return []string{
			fmt.Sprintf("signal %s  confidence %.2f  regime %s", p.Signal, p.Confidence, p.Regime),
			p.Summary,
			labelStyle.Render("risks: " + strings.Join(p.KeyRisks, ", ")),
		}
	case *contracts.SignalPayload:
		return []string{
			fmt.Sprintf("%s %s  size %.1f%%  entry %.2f", p.Action, p.Ticker, p.SizePct, p.EntryPrice),
			fmt.Sprintf("stop %.2f  target %.2f  sharpe %.2f  exp %.1f%%",
				p.StopLoss, p.TakeProfit, p.BacktestSharpe, p.ExpectedReturnPct),
			p.Rationale,
		}
	case *contracts.RiskPayload:
		verdict := okStyle.Render(p.Verdict)
		switch {
		case p.Veto:
			verdict = vetoStyle.Render(p.Verdict)
		case p.Verdict == contracts.VerdictApprovedWithConditions:
			verdict = warnStyle.Render(p.Verdict)
		}
		lines := []string{verdict}
		if p.AdjustedSizePct != nil {
			lines = append(lines, fmt.Sprintf("adjusted size %.1f%%", *p.AdjustedSizePct))
		}
		return append(lines, p.Reason)
	case *contracts.ExecutionPayload:
		lines := []string{fmt.Sprintf("%s via %s on %s", p.Status, p.Strategy, p.Venue)}
		if p.LimitPrice != nil {
			lines = append(lines, fmt.Sprintf("limit %.2f", *p.LimitPrice))
		}
		return append(lines, fmt.Sprintf("%d child orders over %d min, slippage %.1f bps",
			p.ChildOrders, p.DurationMin, p.ExpectedSlippageBps))
	case *contracts.SupervisorPayload:
		status := okStyle.Render(p.AuditStatus)
		if p.AuditStatus != contracts.AuditCompliant {
			status = vetoStyle.Render(p.AuditStatus)
		}
		lines := []string{fmt.Sprintf("%s  log %s  messages %d", status, p.LogID, p.TotalMessagesAudited)}
		if len(p.Flags) > 0 {
			lines = append(lines, warnStyle.Render("flags: "+strings.Join(p.Flags, ", ")))
		}
		if p.HumanReviewRequired {
			lines = append(lines, warnStyle.Render("human review required"))
		}
		return append(lines, p.ComplianceNotes)
	default:
		data, _ := json.Marshal(p)
		return []string{string(data)}
	}
}

// printStages renders every stage recorded on a stored result
func printStages(result *contracts.RunResult) {
	for _, stage := range result.CompletedStages() {
		fmt.Println(renderStage(contracts.StageEvent{
			RunID:       result.RunID,
			Stage:       stage,
			MessageType: stage.MessageType(),
			Payload:     result.Payload(stage),
			Final:       stage == contracts.StageSupervisor,
		}))
	}
}

// printOutcome prints the one-line verdict after the cards
func printOutcome(result *contracts.RunResult) {
	PrintSeparator()
	if result.Vetoed {
		fmt.Printf("  %s %s\n", vetoStyle.Render("⛔ VETOED"), result.RunID)
	} else {
		fmt.Printf("  %s %s\n", okStyle.Render("✅ EXECUTED"), result.RunID)
	}
	fmt.Printf("  Mode: %s  Model: %s\n", result.Mode, result.Model)
	if result.FallbackReason != "" {
		fmt.Printf("  %s %s\n", warnStyle.Render("Fallback:"), result.FallbackReason)
	}
	for _, line := range tradeLines(result) {
		fmt.Printf("  %s\n", line)
	}
	PrintSeparator()
}

// tradeLines describes the simulated fill and the booked outcome
func tradeLines(result *contracts.RunResult) []string {
	var lines []string
	if f := result.Fill; f != nil {
		lines = append(lines, fmt.Sprintf("Fill: %s %s %.0f/%.0f @ %.4f (%.1f%%)",
			f.Strategy, f.Side, f.FilledQty, f.TargetQty, f.AvgFillPrice, f.FillRatePct))
		lines = append(lines, fmt.Sprintf("Slippage: %.2f bps (plan %.2f, %+.2f)",
			f.ActualSlippageBps, f.ExpectedSlippageBps, f.SlippageDeltaBps))
	}
	if p := result.Performance; p != nil {
		line := fmt.Sprintf("Outcome: %s %+.1f bps", p.Outcome, p.PnLBps)
		if p.RLSizePct != nil {
			line += fmt.Sprintf("  RL size: %.1f%%", *p.RLSizePct)
		}
		lines = append(lines, line)
	}
	return lines
}

// performanceLines renders a performance summary
func performanceLines(s *contracts.PerformanceSummary) []string {
	lines := []string{
		fmt.Sprintf("Runs          : %d (%d executed, %d vetoed)", s.TotalRuns, s.ExecutedTrades, s.VetoedTrades),
		fmt.Sprintf("Win rate      : %.1f%%", s.WinRatePct),
		fmt.Sprintf("Cum PnL       : %+.2f bps / $%.2f", s.CumPnLBps, s.CumPnLUSD),
		fmt.Sprintf("Avg win/loss  : %+.2f / %+.2f bps", s.AvgWinBps, s.AvgLossBps),
		fmt.Sprintf("Profit factor : %.2f", s.ProfitFactor),
		fmt.Sprintf("Sharpe        : %.3f", s.SharpeRatio),
		fmt.Sprintf("Max drawdown  : %.2f bps", s.MaxDrawdownBps),
		fmt.Sprintf("Avg slippage  : %.2f bps", s.AvgSlippageBps),
		fmt.Sprintf("RL advised    : %.1f%%", s.RLAdoptionPct),
	}

	tickers := make([]string, 0, len(s.ByTicker))
	for t := range s.ByTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	for _, t := range tickers {
		tp := s.ByTicker[t]
		lines = append(lines, fmt.Sprintf("  %-6s %d trades, %d wins, %+.1f bps", t, tp.Trades, tp.Wins, tp.PnLBps))
	}
	return lines
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// promptCredential asks for the workflow credential without echoing it
func promptCredential() (string, error) {
	var credential string
	prompt := &survey.Password{
		Message: "Workflow credential (leave empty for mock mode):",
	}
	if err := survey.AskOne(prompt, &credential); err != nil {
		return "", err
	}
	return strings.TrimSpace(credential), nil
}

// promptSample lets the user pick one of the configured sample events
func promptSample(options []string) (int, error) {
	var index int
	prompt := &survey.Select{
		Message: "Select a sample event:",
		Options: options,
	}
	if err := survey.AskOne(prompt, &index, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}
	return index, nil
}
