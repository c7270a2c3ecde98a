package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

// FoldScoreStore implements storage.FoldScoreStore using PostgreSQL.
type FoldScoreStore struct {
	pool *Pool
}

// NewFoldScoreStore creates a new FoldScoreStore.
func NewFoldScoreStore(pool *Pool) *FoldScoreStore {
	return &FoldScoreStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FoldScoreStore = (*FoldScoreStore)(nil)

// InsertBulk adds multiple fold scores in a single transaction.
// Fails the entire batch on any duplicate fold_id.
func (s *FoldScoreStore) InsertBulk(ctx context.Context, scores []*domain.FoldScore) error {
	if len(scores) == 0 {
		return nil
	}

	// Check for intra-batch duplicates before touching the database
	seen := make(map[string]struct{}, len(scores))
	for _, sc := range scores {
		if _, exists := seen[sc.FoldID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[sc.FoldID] = struct{}{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO fold_scores (
			fold_id, run_id, fold_index, from_ts, to_ts,
			event_count, skipped, g_apy
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, sc := range scores {
		_, err := tx.Exec(ctx, query,
			sc.FoldID,
			sc.RunID,
			sc.FoldIndex,
			sc.FromTs.UTC(),
			sc.ToTs.UTC(),
			sc.EventCount,
			sc.Skipped,
			sc.GAPY,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert fold score: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit fold scores: %w", err)
	}
	return nil
}

// GetByRunID retrieves a run's fold scores ordered by fold index.
func (s *FoldScoreStore) GetByRunID(ctx context.Context, runID string) ([]*domain.FoldScore, error) {
	query := `
		SELECT fold_id, run_id, fold_index, from_ts, to_ts,
		       event_count, skipped, g_apy
		FROM fold_scores
		WHERE run_id = $1
		ORDER BY fold_index ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get fold scores by run id: %w", err)
	}
	defer rows.Close()

	var scores []*domain.FoldScore
	for rows.Next() {
		sc, err := scanFoldScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fold score: %w", err)
		}
		scores = append(scores, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fold scores: %w", err)
	}
	return scores, nil
}

func scanFoldScore(row pgx.Row) (*domain.FoldScore, error) {
	var sc domain.FoldScore
	var fromTs, toTs time.Time
	err := row.Scan(
		&sc.FoldID,
		&sc.RunID,
		&sc.FoldIndex,
		&fromTs,
		&toTs,
		&sc.EventCount,
		&sc.Skipped,
		&sc.GAPY,
	)
	if err != nil {
		return nil, err
	}
	sc.FromTs = fromTs.UTC()
	sc.ToTs = toTs.UTC()
	return &sc, nil
}
