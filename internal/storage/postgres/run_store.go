package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, pool_address, strategy_name, config_json,
	from_ts, to_ts, event_count, finished_at,
	portfolio_value_x, portfolio_value_y,
	portfolio_apy_x, portfolio_apy_y, g_apy
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	query := `
		INSERT INTO backtest_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID,
		r.PoolAddress,
		r.StrategyName,
		r.ConfigJSON,
		r.FromTs.UTC(),
		r.ToTs.UTC(),
		r.EventCount,
		r.FinishedAt.UTC(),
		r.PortfolioValueX,
		r.PortfolioValueY,
		r.PortfolioAPYX,
		r.PortfolioAPYY,
		r.GAPY,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// GetByPool retrieves all runs for a pool, newest first.
func (s *RunStore) GetByPool(ctx context.Context, pool string) ([]*domain.RunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM backtest_runs
		WHERE pool_address = $1
		ORDER BY finished_at DESC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, pool)
	if err != nil {
		return nil, fmt.Errorf("get runs by pool: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetAll retrieves every run, newest first.
func (s *RunStore) GetAll(ctx context.Context) ([]*domain.RunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM backtest_runs
		ORDER BY finished_at DESC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord
	var fromTs, toTs, finishedAt time.Time
	err := row.Scan(
		&r.RunID,
		&r.PoolAddress,
		&r.StrategyName,
		&r.ConfigJSON,
		&fromTs,
		&toTs,
		&r.EventCount,
		&finishedAt,
		&r.PortfolioValueX,
		&r.PortfolioValueY,
		&r.PortfolioAPYX,
		&r.PortfolioAPYY,
		&r.GAPY,
	)
	if err != nil {
		return nil, err
	}
	r.FromTs = fromTs.UTC()
	r.ToTs = toTs.UTC()
	r.FinishedAt = finishedAt.UTC()
	return &r, nil
}

func scanRuns(rows pgx.Rows) ([]*domain.RunRecord, error) {
	var runs []*domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
