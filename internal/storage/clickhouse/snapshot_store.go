package clickhouse

import (
	"context"
	"fmt"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

type snapshotKey struct {
	runID  string
	tsNano int64
	column string
}

// InsertBulk adds multiple snapshot rows. Fails entire batch on duplicate.
// A run's rows are written in one batch after the run completes, so the
// duplicate check loads existing keys per run rather than per row.
func (s *SnapshotStore) InsertBulk(ctx context.Context, rows []*domain.SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[snapshotKey]struct{}, len(rows))
	runSet := make(map[string]struct{})
	var runIDs []string
	for _, r := range rows {
		k := snapshotKey{r.RunID, r.Timestamp.UnixNano(), r.Column}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		if _, known := runSet[r.RunID]; !known {
			runSet[r.RunID] = struct{}{}
			runIDs = append(runIDs, r.RunID)
		}
	}

	existing, err := s.existingKeys(ctx, runIDs)
	if err != nil {
		return fmt.Errorf("check existing snapshots: %w", err)
	}
	for k := range seen {
		if _, dup := existing[k]; dup {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO portfolio_snapshots (run_id, ts, price, column_name, value)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		// NaN marks a field absent at this tick; Float64 carries it as is.
		err = batch.Append(r.RunID, r.Timestamp.UTC(), r.Price, r.Column, r.Value)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves a run's snapshot rows ordered by (timestamp, column).
func (s *SnapshotStore) GetByRunID(ctx context.Context, runID string) ([]*domain.SnapshotRow, error) {
	query := `
		SELECT run_id, ts, price, column_name, value
		FROM portfolio_snapshots
		WHERE run_id = ?
		ORDER BY ts ASC, column_name ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by run id: %w", err)
	}
	defer rows.Close()

	var out []*domain.SnapshotRow
	for rows.Next() {
		var r domain.SnapshotRow
		var ts time.Time
		if err := rows.Scan(&r.RunID, &ts, &r.Price, &r.Column, &r.Value); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		r.Timestamp = ts.UTC()
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return out, nil
}

func (s *SnapshotStore) existingKeys(ctx context.Context, runIDs []string) (map[snapshotKey]struct{}, error) {
	query := `
		SELECT run_id, ts, column_name
		FROM portfolio_snapshots
		WHERE run_id IN (?)
	`

	rows, err := s.conn.Query(ctx, query, runIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[snapshotKey]struct{})
	for rows.Next() {
		var runID, column string
		var ts time.Time
		if err := rows.Scan(&runID, &ts, &column); err != nil {
			return nil, err
		}
		existing[snapshotKey{runID, ts.UnixNano(), column}] = struct{}{}
	}
	return existing, rows.Err()
}
