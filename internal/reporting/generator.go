package reporting

import (
	"context"
	"sort"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

// Generator assembles a Report from stored runs and fold scores.
type Generator struct {
	runs  storage.RunStore
	folds storage.FoldScoreStore
	now   func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator. folds may be nil when no
// cross-validation results exist.
func NewGenerator(runs storage.RunStore, folds storage.FoldScoreStore) *Generator {
	return &Generator{
		runs:  runs,
		folds: folds,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads every stored run and its fold scores and builds the report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	records, err := g.runs.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	// The store orders by wall-clock completion; re-sort on stable fields so
	// the same data always renders the same document.
	sorted := make([]*domain.RunRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.PoolAddress != b.PoolAddress {
			return a.PoolAddress < b.PoolAddress
		}
		if a.StrategyName != b.StrategyName {
			return a.StrategyName < b.StrategyName
		}
		if !a.FromTs.Equal(b.FromTs) {
			return a.FromTs.Before(b.FromTs)
		}
		return a.RunID < b.RunID
	})

	pools := make(map[string]struct{})
	rows := make([]RunSummaryRow, len(sorted))
	for i, r := range sorted {
		pools[r.PoolAddress] = struct{}{}
		rows[i] = RunSummaryRow{
			RunID:           r.RunID,
			PoolAddress:     r.PoolAddress,
			StrategyName:    r.StrategyName,
			FromTs:          r.FromTs,
			ToTs:            r.ToTs,
			EventCount:      r.EventCount,
			PortfolioValueX: r.PortfolioValueX,
			PortfolioValueY: r.PortfolioValueY,
			PortfolioAPYX:   r.PortfolioAPYX,
			PortfolioAPYY:   r.PortfolioAPYY,
			GAPY:            r.GAPY,
		}
	}

	foldRows, err := g.collectFoldScores(ctx, sorted)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:       g.now(),
		PoolCount:         len(pools),
		RunCount:          len(rows),
		Runs:              rows,
		StrategySummaries: summarizeStrategies(rows),
		FoldScores:        foldRows,
	}, nil
}

// collectFoldScores loads fold scores per run, keeping run order. Runs
// without fold scores contribute nothing.
func (g *Generator) collectFoldScores(ctx context.Context, runs []*domain.RunRecord) ([]FoldScoreRow, error) {
	if g.folds == nil {
		return nil, nil
	}

	var rows []FoldScoreRow
	for _, r := range runs {
		scores, err := g.folds.GetByRunID(ctx, r.RunID)
		if err != nil {
			return nil, err
		}
		for _, s := range scores {
			rows = append(rows, FoldScoreRow{
				RunID:      s.RunID,
				FoldIndex:  s.FoldIndex,
				FromTs:     s.FromTs,
				ToTs:       s.ToTs,
				EventCount: s.EventCount,
				Skipped:    s.Skipped,
				GAPY:       s.GAPY,
			})
		}
	}
	return rows, nil
}

// summarizeStrategies aggregates final gAPY per strategy name.
func summarizeStrategies(rows []RunSummaryRow) []StrategySummaryRow {
	byName := make(map[string]*StrategySummaryRow)
	var order []string

	for _, r := range rows {
		s, ok := byName[r.StrategyName]
		if !ok {
			s = &StrategySummaryRow{
				StrategyName: r.StrategyName,
				BestGAPY:     r.GAPY,
				WorstGAPY:    r.GAPY,
			}
			byName[r.StrategyName] = s
			order = append(order, r.StrategyName)
		}
		s.Runs++
		s.MeanGAPY += r.GAPY
		if r.GAPY > s.BestGAPY {
			s.BestGAPY = r.GAPY
		}
		if r.GAPY < s.WorstGAPY {
			s.WorstGAPY = r.GAPY
		}
	}

	sort.Strings(order)
	out := make([]StrategySummaryRow, 0, len(order))
	for _, name := range order {
		s := byName[name]
		s.MeanGAPY /= float64(s.Runs)
		out = append(out, *s)
	}
	return out
}
