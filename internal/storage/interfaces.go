// Package storage defines the persistence interfaces of the lab and their
// shared sentinel errors. Pools, runs and fold scores live in PostgreSQL;
// the high-volume event and snapshot series live in ClickHouse; every store
// also has an in-memory implementation for tests and single-shot runs.
package storage

import (
	"context"
	"time"

	"amm-strategy-lab/internal/domain"
)

// PoolStore provides access to pool descriptors.
type PoolStore interface {
	// Insert adds a new pool. Returns ErrDuplicateKey if the address exists.
	Insert(ctx context.Context, p *domain.Pool) error

	// GetByAddress retrieves a pool by its address. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Pool, error)

	// GetAll retrieves every known pool, ordered by address.
	GetAll(ctx context.Context) ([]*domain.Pool, error)
}

// EventStore provides access to the raw ordered event series per pool.
type EventStore interface {
	// InsertBulk adds multiple events for a pool. Fails the entire batch on
	// any duplicate (pool, block_number, log_index, kind, timestamp) row.
	InsertBulk(ctx context.Context, pool string, events []*domain.Event) error

	// GetByPool retrieves all events for a pool in canonical replay order.
	GetByPool(ctx context.Context, pool string) ([]*domain.Event, error)

	// GetByTimeRange retrieves a pool's events with timestamp in [from, to],
	// in canonical replay order.
	GetByTimeRange(ctx context.Context, pool string, from, to time.Time) ([]*domain.Event, error)

	// GetByBlockRange retrieves a pool's events with block number in
	// [from, to], in canonical replay order.
	GetByBlockRange(ctx context.Context, pool string, from, to int64) ([]*domain.Event, error)
}

// RunStore provides access to backtest run records. Runs are append-only:
// a run is written once, after it completed.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetByPool retrieves all runs for a pool, newest first.
	GetByPool(ctx context.Context, pool string) ([]*domain.RunRecord, error)

	// GetAll retrieves every run, newest first.
	GetAll(ctx context.Context) ([]*domain.RunRecord, error)
}

// SnapshotStore provides access to flattened portfolio history rows.
type SnapshotStore interface {
	// InsertBulk adds multiple snapshot rows. Fails the entire batch on any
	// duplicate (run_id, timestamp, column) row.
	InsertBulk(ctx context.Context, rows []*domain.SnapshotRow) error

	// GetByRunID retrieves a run's snapshot rows ordered by
	// (timestamp, column).
	GetByRunID(ctx context.Context, runID string) ([]*domain.SnapshotRow, error)
}

// FoldScoreStore provides access to cross-validation fold scores.
type FoldScoreStore interface {
	// InsertBulk adds multiple fold scores atomically. Fails the entire
	// batch on any duplicate fold_id.
	InsertBulk(ctx context.Context, scores []*domain.FoldScore) error

	// GetByRunID retrieves a run's fold scores ordered by fold index.
	GetByRunID(ctx context.Context, runID string) ([]*domain.FoldScore, error)
}
