package domain

import "time"

// RunRecord summarizes one completed backtest run for persistence.
// Corresponds to the backtest_runs table in PostgreSQL.
type RunRecord struct {
	RunID        string    // deterministic run identifier (idhash)
	PoolAddress  string    // pool the run replayed
	StrategyName string    // strategy identifier
	ConfigJSON   string    // strategy configuration as JSON
	FromTs       time.Time // first event timestamp
	ToTs         time.Time // last event timestamp
	EventCount   int       // events replayed
	FinishedAt   time.Time // wall-clock completion time (UTC)

	// Final-row analytics from the portfolio history stats table.
	PortfolioValueX float64 // total_value_to_x at the last tick
	PortfolioValueY float64 // total_value_to_y at the last tick
	PortfolioAPYX   float64 // portfolio_apy_x at the last tick
	PortfolioAPYY   float64 // portfolio_apy_y at the last tick
	GAPY            float64 // g_apy at the last tick
}

// SnapshotRow is one portfolio history field flattened for persistence:
// one row per (timestamp, column) pair of a run's history table.
// Corresponds to the portfolio_snapshots table in ClickHouse.
type SnapshotRow struct {
	RunID     string
	Timestamp time.Time
	Price     float64
	Column    string  // snapshot field name, e.g. "vault_value_x"
	Value     float64 // NaN when the field was absent at this tick
}

// FoldScore is one cross-validation fold result.
// Corresponds to the fold_scores table in PostgreSQL.
type FoldScore struct {
	RunID      string    // parent cross-validation run
	FoldID     string    // deterministic fold identifier (idhash)
	FoldIndex  int       // zero-based position in the split
	FromTs     time.Time // fold start (inclusive)
	ToTs       time.Time // fold end (exclusive)
	EventCount int       // events replayed in the fold
	Skipped    bool      // true when the fold was empty
	GAPY       float64   // g_apy at the fold's last tick (0 when skipped)
}
