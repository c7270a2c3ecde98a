package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d | Pools: %d\n\n", r.RunCount, r.PoolCount))

	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Run | Pool | Strategy | From | To | Events | ValueX | ValueY | APY X | APY Y | gAPY |\n")
		sb.WriteString("|-----|------|----------|------|----|--------|--------|--------|-------|-------|------|\n")
		for _, run := range r.Runs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
				run.RunID, run.PoolAddress, run.StrategyName,
				run.FromTs.UTC().Format(time.RFC3339), run.ToTs.UTC().Format(time.RFC3339),
				run.EventCount,
				run.PortfolioValueX, run.PortfolioValueY,
				run.PortfolioAPYX, run.PortfolioAPYY, run.GAPY))
		}
	} else {
		sb.WriteString("No runs recorded.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Strategy Summary\n\n")
	if len(r.StrategySummaries) > 0 {
		sb.WriteString("| Strategy | Runs | Mean gAPY | Best gAPY | Worst gAPY |\n")
		sb.WriteString("|----------|------|-----------|-----------|------------|\n")
		for _, s := range r.StrategySummaries {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.4f | %.4f |\n",
				s.StrategyName, s.Runs, s.MeanGAPY, s.BestGAPY, s.WorstGAPY))
		}
	} else {
		sb.WriteString("No strategy summary available.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Fold Scores\n\n")
	if len(r.FoldScores) > 0 {
		sb.WriteString("| Run | Fold | From | To | Events | gAPY |\n")
		sb.WriteString("|-----|------|------|----|--------|------|\n")
		for _, f := range r.FoldScores {
			gapy := fmt.Sprintf("%.4f", f.GAPY)
			if f.Skipped {
				gapy = "skipped"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %d | %s |\n",
				f.RunID, f.FoldIndex,
				f.FromTs.UTC().Format(time.RFC3339), f.ToTs.UTC().Format(time.RFC3339),
				f.EventCount, gapy))
		}
	} else {
		sb.WriteString("No fold scores recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
