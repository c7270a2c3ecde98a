package clickhouse

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

func snapshotRow(runID string, hour int, column string, value float64) *domain.SnapshotRow {
	return &domain.SnapshotRow{
		RunID:     runID,
		Timestamp: time.Date(2024, 5, 1, hour, 0, 0, 0, time.UTC),
		Price:     2000 + float64(hour),
		Column:    column,
		Value:     value,
	}
}

func TestSnapshotStore_InsertAndGetOrdered(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(conn)
	ctx := context.Background()

	rows := []*domain.SnapshotRow{
		snapshotRow("run-001", 2, "total_value_to_x", 2.02),
		snapshotRow("run-001", 1, "vault_value_x", 1.0),
		snapshotRow("run-001", 1, "total_value_to_x", 2.01),
		snapshotRow("run-001", 2, "vault_value_x", 1.01),
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	result, err := store.GetByRunID(ctx, "run-001")
	require.NoError(t, err)
	require.Len(t, result, 4)

	// Ordered by (timestamp, column).
	assert.Equal(t, "total_value_to_x", result[0].Column)
	assert.Equal(t, "vault_value_x", result[1].Column)
	assert.Equal(t, "total_value_to_x", result[2].Column)
	assert.Equal(t, "vault_value_x", result[3].Column)
	assert.True(t, result[0].Timestamp.Before(result[2].Timestamp))

	assert.InDelta(t, 2.01, result[0].Value, 1e-12)
	assert.InDelta(t, 2001.0, result[0].Price, 1e-12)
}

func TestSnapshotStore_NaNRoundTrips(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(conn)
	ctx := context.Background()

	// A field absent at a tick is stored as NaN, not dropped.
	rows := []*domain.SnapshotRow{
		snapshotRow("run-nan", 1, "pos_fees_x", math.NaN()),
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	result, err := store.GetByRunID(ctx, "run-nan")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, math.IsNaN(result[0].Value))
}

func TestSnapshotStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(conn)
	ctx := context.Background()

	rows := []*domain.SnapshotRow{
		snapshotRow("run-dup", 1, "total_value_to_x", 2.01),
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	err := store.InsertBulk(ctx, rows)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same coordinates under another run are a distinct row.
	other := []*domain.SnapshotRow{
		snapshotRow("run-other", 1, "total_value_to_x", 2.01),
	}
	require.NoError(t, store.InsertBulk(ctx, other))
}

func TestSnapshotStore_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(conn)
	ctx := context.Background()

	rows := []*domain.SnapshotRow{
		snapshotRow("run-intra", 1, "total_value_to_x", 2.01),
		snapshotRow("run-intra", 1, "total_value_to_x", 2.02),
	}
	err := store.InsertBulk(ctx, rows)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	result, err := store.GetByRunID(ctx, "run-intra")
	require.NoError(t, err)
	assert.Empty(t, result)
}
