// Package reporting renders stored backtest results as CSV and Markdown.
// Output ordering is deterministic: identical store contents render
// byte-identical documents.
package reporting

import "time"

// Report is a rendered view over the run and fold-score stores.
type Report struct {
	GeneratedAt time.Time
	PoolCount   int
	RunCount    int

	// Runs sorted by (pool, strategy, from, run_id).
	Runs []RunSummaryRow

	// StrategySummaries aggregates runs per strategy name, sorted by name.
	StrategySummaries []StrategySummaryRow

	// FoldScores sorted by (run_id, fold_index).
	FoldScores []FoldScoreRow
}

// RunSummaryRow is one completed run.
type RunSummaryRow struct {
	RunID        string
	PoolAddress  string
	StrategyName string
	FromTs       time.Time
	ToTs         time.Time
	EventCount   int

	PortfolioValueX float64
	PortfolioValueY float64
	PortfolioAPYX   float64
	PortfolioAPYY   float64
	GAPY            float64
}

// StrategySummaryRow aggregates final gAPY across a strategy's runs.
type StrategySummaryRow struct {
	StrategyName string
	Runs         int
	MeanGAPY     float64
	BestGAPY     float64
	WorstGAPY    float64
}

// FoldScoreRow is one cross-validation fold of a run.
type FoldScoreRow struct {
	RunID      string
	FoldIndex  int
	FromTs     time.Time
	ToTs       time.Time
	EventCount int
	Skipped    bool
	GAPY       float64
}
