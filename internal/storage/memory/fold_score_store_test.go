package memory

import (
	"context"
	"errors"
	"testing"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

func TestFoldScoreStore_InsertAndGetOrdered(t *testing.T) {
	store := NewFoldScoreStore()
	ctx := context.Background()

	scores := []*domain.FoldScore{
		{RunID: "run1", FoldID: "f2", FoldIndex: 2, GAPY: 1.5},
		{RunID: "run1", FoldID: "f0", FoldIndex: 0, GAPY: -0.5},
		{RunID: "run1", FoldID: "f1", FoldIndex: 1, Skipped: true},
	}
	if err := store.InsertBulk(ctx, scores); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 scores, got %d", len(got))
	}
	for i, sc := range got {
		if sc.FoldIndex != i {
			t.Errorf("Score %d has fold index %d", i, sc.FoldIndex)
		}
	}
	if !got[1].Skipped {
		t.Error("Skipped flag lost")
	}
}

func TestFoldScoreStore_DuplicateFoldID(t *testing.T) {
	store := NewFoldScoreStore()
	ctx := context.Background()

	sc := &domain.FoldScore{RunID: "run1", FoldID: "f0", FoldIndex: 0}
	if err := store.InsertBulk(ctx, []*domain.FoldScore{sc}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.InsertBulk(ctx, []*domain.FoldScore{sc}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestFoldScoreStore_InvalidInput(t *testing.T) {
	store := NewFoldScoreStore()
	err := store.InsertBulk(context.Background(), []*domain.FoldScore{{RunID: "run1"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for missing fold_id, got %v", err)
	}
}
