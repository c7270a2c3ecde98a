package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

func TestSnapshotStore_InsertAndGetOrdered(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := []*domain.SnapshotRow{
		{RunID: "run1", Timestamp: base.Add(time.Hour), Column: "vault_value_x", Value: 2},
		{RunID: "run1", Timestamp: base, Column: "vault_value_y", Value: 3},
		{RunID: "run1", Timestamp: base, Column: "vault_value_x", Value: 1},
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(got))
	}
	// Ordered by (timestamp, column).
	if got[0].Column != "vault_value_x" || got[1].Column != "vault_value_y" || got[2].Column != "vault_value_x" {
		t.Errorf("Rows not ordered by (timestamp, column): %v, %v, %v", got[0].Column, got[1].Column, got[2].Column)
	}
	if !got[2].Timestamp.Equal(base.Add(time.Hour)) {
		t.Error("Later timestamp did not sort last")
	}
}

func TestSnapshotStore_DuplicateKey(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	row := &domain.SnapshotRow{RunID: "run1", Timestamp: time.Now().UTC(), Column: "price", Value: 1}
	if err := store.InsertBulk(ctx, []*domain.SnapshotRow{row}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.InsertBulk(ctx, []*domain.SnapshotRow{row}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSnapshotStore_EmptyRun(t *testing.T) {
	store := NewSnapshotStore()
	got, err := store.GetByRunID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no rows, got %d", len(got))
	}
}
