package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

func testFoldScores(runID string, n int) []*domain.FoldScore {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	scores := make([]*domain.FoldScore, 0, n)
	for i := 0; i < n; i++ {
		scores = append(scores, &domain.FoldScore{
			RunID:      runID,
			FoldID:     runID + "-fold-" + string(rune('a'+i)),
			FoldIndex:  i,
			FromTs:     base.AddDate(0, 0, 7*i),
			ToTs:       base.AddDate(0, 0, 7*(i+1)),
			EventCount: 100 * (i + 1),
			GAPY:       0.05 * float64(i+1),
		})
	}
	return scores
}

func TestFoldScoreStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFoldScoreStore(pool)
	ctx := context.Background()

	scores := testFoldScores("cv-run-001", 3)
	require.NoError(t, store.InsertBulk(ctx, scores))

	retrieved, err := store.GetByRunID(ctx, "cv-run-001")
	require.NoError(t, err)
	require.Len(t, retrieved, 3)

	for i, sc := range retrieved {
		assert.Equal(t, i, sc.FoldIndex)
		assert.Equal(t, scores[i].FoldID, sc.FoldID)
		assert.True(t, scores[i].FromTs.Equal(sc.FromTs))
		assert.True(t, scores[i].ToTs.Equal(sc.ToTs))
		assert.Equal(t, scores[i].EventCount, sc.EventCount)
		assert.False(t, sc.Skipped)
		assert.InDelta(t, scores[i].GAPY, sc.GAPY, 1e-12)
	}
}

func TestFoldScoreStore_InsertBulkDuplicateRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFoldScoreStore(pool)
	ctx := context.Background()

	first := testFoldScores("cv-run-dup", 2)
	require.NoError(t, store.InsertBulk(ctx, first))

	// Second batch collides on the first fold; nothing from it may land.
	second := testFoldScores("cv-run-dup", 3)
	err := store.InsertBulk(ctx, second)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	retrieved, err := store.GetByRunID(ctx, "cv-run-dup")
	require.NoError(t, err)
	assert.Len(t, retrieved, 2)
}

func TestFoldScoreStore_IntraBatchDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFoldScoreStore(pool)
	ctx := context.Background()

	scores := testFoldScores("cv-run-intra", 2)
	scores[1].FoldID = scores[0].FoldID

	err := store.InsertBulk(ctx, scores)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	retrieved, err := store.GetByRunID(ctx, "cv-run-intra")
	require.NoError(t, err)
	assert.Empty(t, retrieved)
}

func TestFoldScoreStore_SkippedFold(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFoldScoreStore(pool)
	ctx := context.Background()

	scores := testFoldScores("cv-run-skip", 1)
	scores[0].Skipped = true
	scores[0].EventCount = 0
	scores[0].GAPY = 0

	require.NoError(t, store.InsertBulk(ctx, scores))

	retrieved, err := store.GetByRunID(ctx, "cv-run-skip")
	require.NoError(t, err)
	require.Len(t, retrieved, 1)
	assert.True(t, retrieved[0].Skipped)
	assert.Zero(t, retrieved[0].EventCount)
}
