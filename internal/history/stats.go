package history

import (
	"math"
	"strings"
	"time"
)

// ComputeStats derives portfolio statistics from the appended snapshots:
// summed values in X and Y, forward-filled impermanent loss and fee totals,
// value re-denominated fully into either token, a hold baseline priced from
// the first snapshot's balances, and annualized return columns for the
// portfolio, the hold baseline, and their ratio (g_apy).
//
// Value columns are matched by substring: every position contributes its
// "<name>_value_x|y" fields; "il_to_x|y" and "fees_x|y" fields are
// forward-filled per column first, so a snapshot lacking a position still
// carries its last known loss and fee figures.
func (h *PortfolioHistory) ComputeStats() (*Table, error) {
	if len(h.snapshots) == 0 {
		return nil, ErrEmptyHistory
	}
	base := h.ToTable()
	n := base.Len()
	price := base.columns["price"]

	totalValueX := sumMatching(base, "value_x", false)
	totalValueY := sumMatching(base, "value_y", false)
	totalILToX := sumMatching(base, "il_to_x", true)
	totalILToY := sumMatching(base, "il_to_y", true)
	totalFeesX := sumMatching(base, "fees_x", true)
	totalFeesY := sumMatching(base, "fees_y", true)

	totalValueToX := make([]float64, n)
	totalValueToY := make([]float64, n)
	totalFeesToX := make([]float64, n)
	totalFeesToY := make([]float64, n)
	holdToX := make([]float64, n)
	holdToY := make([]float64, n)
	ratio := make([]float64, n)
	for i := 0; i < n; i++ {
		totalValueToX[i] = totalValueX[i] + totalValueY[i]/price[i]
		totalValueToY[i] = totalValueX[i]*price[i] + totalValueY[i]
		totalFeesToX[i] = totalFeesX[i] + totalFeesY[i]/price[i]
		totalFeesToY[i] = totalFeesX[i]*price[i] + totalFeesY[i]
		holdToX[i] = totalValueX[0] + totalValueY[0]/price[i]
		holdToY[i] = totalValueX[0]*price[i] + totalValueY[0]
		ratio[i] = totalValueToX[i] / holdToX[i]
	}

	days := daysElapsed(base.timestamps)

	out := &Table{
		timestamps: base.Timestamps(),
		columns:    make(map[string][]float64),
	}
	out.setColumn("price", base.Column("price"))
	out.setColumn("total_value_x", totalValueX)
	out.setColumn("total_value_y", totalValueY)
	out.setColumn("total_il_to_x", totalILToX)
	out.setColumn("total_il_to_y", totalILToY)
	out.setColumn("total_fees_x", totalFeesX)
	out.setColumn("total_fees_y", totalFeesY)
	out.setColumn("total_value_to_x", totalValueToX)
	out.setColumn("total_value_to_y", totalValueToY)
	out.setColumn("total_fees_to_x", totalFeesToX)
	out.setColumn("total_fees_to_y", totalFeesToY)
	out.setColumn("hold_to_x", holdToX)
	out.setColumn("hold_to_y", holdToY)
	out.setColumn("portfolio_apy_x", annualized(totalValueToX, days))
	out.setColumn("portfolio_apy_y", annualized(totalValueToY, days))
	out.setColumn("hold_apy_x", annualized(holdToX, days))
	out.setColumn("hold_apy_y", annualized(holdToY, days))
	out.setColumn("g_apy", annualizedRatio(ratio, days))
	return out, nil
}

// sumMatching sums all base columns whose name contains substr, row-wise,
// treating NaN cells as zero. With fill set, each column is forward-filled
// before summing, so gaps after a position's first appearance carry its last
// value while rows before it contribute nothing.
func sumMatching(base *Table, substr string, fill bool) []float64 {
	sum := make([]float64, base.Len())
	for _, name := range base.order {
		if !strings.Contains(name, substr) {
			continue
		}
		col := base.columns[name]
		if fill {
			col = forwardFill(col)
		}
		for i, v := range col {
			if !math.IsNaN(v) {
				sum[i] += v
			}
		}
	}
	return sum
}

// forwardFill replaces each NaN with the last preceding non-NaN value.
// Leading NaNs are kept.
func forwardFill(col []float64) []float64 {
	out := make([]float64, len(col))
	last := math.NaN()
	for i, v := range col {
		if !math.IsNaN(v) {
			last = v
		}
		out[i] = last
	}
	return out
}

// daysElapsed returns, per row, the whole number of 24h periods since the
// first row.
func daysElapsed(timestamps []time.Time) []float64 {
	out := make([]float64, len(timestamps))
	if len(timestamps) == 0 {
		return out
	}
	first := timestamps[0]
	for i, ts := range timestamps {
		out[i] = float64(ts.Sub(first) / (24 * time.Hour))
	}
	return out
}

// annualized computes 100*((s_t/s_0)^(365/days_t) - 1) per row, 0 where no
// whole day has elapsed yet.
func annualized(series, days []float64) []float64 {
	out := make([]float64, len(series))
	for i := range series {
		if days[i] == 0 {
			continue
		}
		out[i] = 100 * (math.Pow(series[i]/series[0], 365/days[i]) - 1)
	}
	return out
}

// annualizedRatio is annualized for a series that is already a performance
// ratio (1 at the first row), so it is not renormalized.
func annualizedRatio(ratio, days []float64) []float64 {
	out := make([]float64, len(ratio))
	for i := range ratio {
		if days[i] == 0 {
			continue
		}
		out[i] = 100 * (math.Pow(ratio[i], 365/days[i]) - 1)
	}
	return out
}
