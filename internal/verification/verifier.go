// Package verification checks the lab's determinism guarantees: identical
// event sequences must produce identical histories, and stored run summaries
// must match a fresh replay.
package verification

import (
	"fmt"
	"math"

	"amm-strategy-lab/internal/backtest"
	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/history"
	"amm-strategy-lab/internal/portfolio"
	"amm-strategy-lab/internal/strategy"
)

// FloatTolerance is the tolerance for stored-vs-replayed float comparisons.
const FloatTolerance = 1e-7

// TableDivergence pinpoints one mismatching cell between two rendered
// history tables.
type TableDivergence struct {
	Table    string
	Row      int
	Column   string
	Expected float64
	Actual   float64
}

func (d TableDivergence) String() string {
	return fmt.Sprintf("%s[%d].%s: %v != %v", d.Table, d.Row, d.Column, d.Expected, d.Actual)
}

// DeterminismResult contains the outcome of a determinism check.
type DeterminismResult struct {
	Runs        int
	Match       bool
	Divergences []TableDivergence
}

// StrategyFactory builds a fresh strategy instance per replay.
type StrategyFactory func() (strategy.Strategy, error)

// PortfolioFactory builds a fresh root portfolio per replay.
type PortfolioFactory func() *portfolio.Portfolio

// VerifyDeterminism replays the identical event sequence through fresh
// engines and compares every rendered history table cell for cell. Replays
// beyond the first are compared against it; the first divergence of each
// pair is collected, not just the first overall.
func VerifyDeterminism(newStrategy StrategyFactory, newPortfolio PortfolioFactory, events []*domain.Event, runs int) (*DeterminismResult, error) {
	if runs < 2 {
		runs = 2
	}
	if newPortfolio == nil {
		newPortfolio = func() *portfolio.Portfolio { return portfolio.NewPortfolio("main") }
	}

	var reference *backtest.Results
	result := &DeterminismResult{Runs: runs}
	for i := 0; i < runs; i++ {
		strat, err := newStrategy()
		if err != nil {
			return nil, fmt.Errorf("build strategy for replay %d: %w", i, err)
		}
		res, err := backtest.NewEngine().Run(strat, newPortfolio(), events)
		if err != nil {
			return nil, fmt.Errorf("replay %d: %w", i, err)
		}
		if i == 0 {
			reference = res
			continue
		}
		result.Divergences = append(result.Divergences, compareResults(reference, res)...)
	}

	result.Match = len(result.Divergences) == 0
	return result, nil
}

// compareResults diffs every table a replay renders.
func compareResults(a, b *backtest.Results) []TableDivergence {
	var divs []TableDivergence
	divs = append(divs, compareTables("portfolio", a.PortfolioHistory.ToTable(), b.PortfolioHistory.ToTable())...)

	statsA, errA := a.PortfolioHistory.ComputeStats()
	statsB, errB := b.PortfolioHistory.ComputeStats()
	if errA == nil && errB == nil {
		divs = append(divs, compareTables("stats", statsA, statsB)...)
	}

	divs = append(divs, compareActions(a.ActionHistory, b.ActionHistory)...)
	divs = append(divs, compareIntervals(a.IntervalHistory, b.IntervalHistory)...)
	return divs
}

// compareTables reports every cell where two tables differ. Both NaNs in a
// cell count as equal; determinism demands bit-identical floats, so no
// tolerance applies here.
func compareTables(name string, a, b *history.Table) []TableDivergence {
	var divs []TableDivergence
	if a.Len() != b.Len() {
		return []TableDivergence{{
			Table:    name,
			Column:   "len",
			Expected: float64(a.Len()),
			Actual:   float64(b.Len()),
		}}
	}

	colsA, colsB := a.Columns(), b.Columns()
	if len(colsA) != len(colsB) {
		return []TableDivergence{{
			Table:    name,
			Column:   "columns",
			Expected: float64(len(colsA)),
			Actual:   float64(len(colsB)),
		}}
	}

	tsA, tsB := a.Timestamps(), b.Timestamps()
	for i := range tsA {
		if !tsA[i].Equal(tsB[i]) {
			divs = append(divs, TableDivergence{
				Table:    name,
				Row:      i,
				Column:   "timestamp",
				Expected: float64(tsA[i].UnixNano()),
				Actual:   float64(tsB[i].UnixNano()),
			})
		}
	}

	for _, col := range colsA {
		va, vb := a.Column(col), b.Column(col)
		if vb == nil {
			// Column present in one table only.
			divs = append(divs, TableDivergence{Table: name, Column: col, Expected: 1, Actual: 0})
			continue
		}
		for i := range va {
			if math.Float64bits(va[i]) != math.Float64bits(vb[i]) && !(math.IsNaN(va[i]) && math.IsNaN(vb[i])) {
				divs = append(divs, TableDivergence{
					Table:    name,
					Row:      i,
					Column:   col,
					Expected: va[i],
					Actual:   vb[i],
				})
			}
		}
	}
	return divs
}

func compareActions(a, b *history.ActionHistory) []TableDivergence {
	ra, rb := a.Records(), b.Records()
	if len(ra) != len(rb) {
		return []TableDivergence{{Table: "actions", Column: "len", Expected: float64(len(ra)), Actual: float64(len(rb))}}
	}
	var divs []TableDivergence
	for i := range ra {
		if ra[i].Action != rb[i].Action || !ra[i].Timestamp.Equal(rb[i].Timestamp) {
			divs = append(divs, TableDivergence{Table: "actions", Row: i, Column: "action"})
		}
	}
	return divs
}

func compareIntervals(a, b *history.PositionIntervalHistory) []TableDivergence {
	ra, rb := a.ToTable(), b.ToTable()
	if len(ra) != len(rb) {
		return []TableDivergence{{Table: "intervals", Column: "len", Expected: float64(len(ra)), Actual: float64(len(rb))}}
	}
	var divs []TableDivergence
	for i := range ra {
		switch {
		case ra[i].Name != rb[i].Name || !ra[i].Timestamp.Equal(rb[i].Timestamp):
			divs = append(divs, TableDivergence{Table: "intervals", Row: i, Column: "identity"})
		case ra[i].LowerPrice != rb[i].LowerPrice:
			divs = append(divs, TableDivergence{Table: "intervals", Row: i, Column: "lower_price", Expected: ra[i].LowerPrice, Actual: rb[i].LowerPrice})
		case ra[i].UpperPrice != rb[i].UpperPrice:
			divs = append(divs, TableDivergence{Table: "intervals", Row: i, Column: "upper_price", Expected: ra[i].UpperPrice, Actual: rb[i].UpperPrice})
		case ra[i].Liquidity != rb[i].Liquidity:
			divs = append(divs, TableDivergence{Table: "intervals", Row: i, Column: "liquidity", Expected: ra[i].Liquidity, Actual: rb[i].Liquidity})
		}
	}
	return divs
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
