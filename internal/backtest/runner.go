package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/idhash"
	"amm-strategy-lab/internal/portfolio"
	"amm-strategy-lab/internal/replay"
	"amm-strategy-lab/internal/storage"
	"amm-strategy-lab/internal/strategy"
)

// Runner executes store-backed runs: it loads a pool's events, replays them
// through a fresh engine, and persists the run record plus its portfolio
// history.
type Runner struct {
	events    storage.EventStore
	runs      storage.RunStore
	snapshots storage.SnapshotStore
	logger    *log.Logger
}

// NewRunner creates a runner over the given stores. The run and snapshot
// stores may be nil, in which case results are returned without persisting.
func NewRunner(events storage.EventStore, runs storage.RunStore, snapshots storage.SnapshotStore, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{events: events, runs: runs, snapshots: snapshots, logger: logger}
}

// Run loads the pool's events in [from, to], replays them through the
// strategy built from cfg, and persists the run. Returns the replay results
// together with the persisted record.
func (r *Runner) Run(ctx context.Context, pool *domain.Pool, from, to time.Time, cfg domain.StrategyConfig) (*Results, *domain.RunRecord, error) {
	strat, err := strategy.FromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build strategy: %w", err)
	}

	events, err := r.events.GetByTimeRange(ctx, pool.Address, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("load events: %w", err)
	}
	if err := replay.ValidateOrdering(events); err != nil {
		return nil, nil, err
	}

	results, err := NewEngine().Run(strat, portfolio.NewPortfolio("main"), events)
	if err != nil {
		return nil, nil, err
	}

	record, err := buildRunRecord(pool, cfg, results)
	if err != nil {
		return nil, nil, err
	}

	if r.runs != nil {
		if err := r.runs.Insert(ctx, record); err != nil {
			return nil, nil, fmt.Errorf("persist run %s: %w", record.RunID, err)
		}
	}
	if r.snapshots != nil {
		rows := SnapshotRows(record.RunID, results)
		if err := r.snapshots.InsertBulk(ctx, rows); err != nil {
			return nil, nil, fmt.Errorf("persist snapshots for run %s: %w", record.RunID, err)
		}
	}

	r.logger.Printf("run %s: strategy=%s pool=%s events=%d g_apy=%.4f",
		record.RunID, record.StrategyName, pool.Name(), record.EventCount, record.GAPY)
	return results, record, nil
}

// buildRunRecord derives the persisted summary from the replay results.
func buildRunRecord(pool *domain.Pool, cfg domain.StrategyConfig, results *Results) (*domain.RunRecord, error) {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal strategy config: %w", err)
	}

	record := &domain.RunRecord{
		RunID: idhash.ComputeRunID(pool.Address, results.StrategyName, string(configJSON),
			results.FirstTimestamp.Unix(), results.LastTimestamp.Unix()),
		PoolAddress:  pool.Address,
		StrategyName: results.StrategyName,
		ConfigJSON:   string(configJSON),
		FromTs:       results.FirstTimestamp,
		ToTs:         results.LastTimestamp,
		EventCount:   results.EventCount,
		FinishedAt:   time.Now().UTC(),
	}

	if results.PortfolioHistory.Len() == 0 {
		return record, nil
	}
	stats, err := results.PortfolioHistory.ComputeStats()
	if err != nil {
		return nil, fmt.Errorf("compute stats: %w", err)
	}
	last := stats.Len() - 1
	record.PortfolioValueX = stats.Column("total_value_to_x")[last]
	record.PortfolioValueY = stats.Column("total_value_to_y")[last]
	record.PortfolioAPYX = stats.Column("portfolio_apy_x")[last]
	record.PortfolioAPYY = stats.Column("portfolio_apy_y")[last]
	record.GAPY = stats.Column("g_apy")[last]
	return record, nil
}

// SnapshotRows flattens the portfolio history into one row per snapshot
// field, keyed by run, for bulk persistence.
func SnapshotRows(runID string, results *Results) []*domain.SnapshotRow {
	table := results.PortfolioHistory.ToTable()
	timestamps := table.Timestamps()
	columns := table.Columns()

	rows := make([]*domain.SnapshotRow, 0, len(timestamps)*len(columns))
	price := table.Column("price")
	for _, name := range columns {
		if name == "price" {
			continue
		}
		col := table.Column(name)
		for i, ts := range timestamps {
			rows = append(rows, &domain.SnapshotRow{
				RunID:     runID,
				Timestamp: ts,
				Price:     price[i],
				Column:    name,
				Value:     col[i],
			})
		}
	}
	return rows
}
