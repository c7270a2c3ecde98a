package reporting

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"amm-strategy-lab/internal/history"
)

// WriteTableCSV writes a history table as CSV: a timestamp column followed
// by the table's columns in their stable first-seen order. NaN cells render
// as empty fields.
func WriteTableCSV(w io.Writer, t *history.Table) error {
	cols := t.Columns()
	header := append([]string{"timestamp"}, cols...)
	if _, err := io.WriteString(w, strings.Join(header, ",")+"\n"); err != nil {
		return err
	}

	timestamps := t.Timestamps()
	rows := t.Rows()
	fields := make([]string, 0, len(cols)+1)
	for i, row := range rows {
		fields = fields[:0]
		fields = append(fields, timestamps[i].UTC().Format(time.RFC3339Nano))
		for _, v := range row {
			fields = append(fields, formatCell(v))
		}
		if _, err := io.WriteString(w, strings.Join(fields, ",")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteStatsCSV computes the portfolio analytics table and writes it as CSV.
func WriteStatsCSV(w io.Writer, h *history.PortfolioHistory) error {
	stats, err := h.ComputeStats()
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}
	return WriteTableCSV(w, stats)
}

// RenderRunsCSV renders run summary rows as a CSV string.
func RenderRunsCSV(rows []RunSummaryRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,pool,strategy,from,to,events,")
	sb.WriteString("value_x,value_y,apy_x,apy_y,g_apy\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%.6f,%.6f,%.6f,%.6f,%.6f\n",
			r.RunID,
			r.PoolAddress,
			r.StrategyName,
			r.FromTs.UTC().Format(time.RFC3339),
			r.ToTs.UTC().Format(time.RFC3339),
			r.EventCount,
			r.PortfolioValueX,
			r.PortfolioValueY,
			r.PortfolioAPYX,
			r.PortfolioAPYY,
			r.GAPY,
		))
	}

	return sb.String()
}

// RenderFoldScoresCSV renders fold score rows as a CSV string.
func RenderFoldScoresCSV(rows []FoldScoreRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,fold,from,to,events,skipped,g_apy\n")

	for _, f := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%s,%d,%t,%.6f\n",
			f.RunID,
			f.FoldIndex,
			f.FromTs.UTC().Format(time.RFC3339),
			f.ToTs.UTC().Format(time.RFC3339),
			f.EventCount,
			f.Skipped,
			f.GAPY,
		))
	}

	return sb.String()
}

// formatCell renders one table cell. The shortest round-trippable form keeps
// re-rendered tables byte-identical across runs.
func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
