package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

func ts(hour int) time.Time {
	return time.Date(2024, 5, 1, hour, 0, 0, 0, time.UTC)
}

func TestEventStore_InsertAndReplayOrder(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	// Inserted out of order on purpose.
	events := []*domain.Event{
		{Kind: domain.EventSwap, Timestamp: ts(3), BlockNumber: 300, LogIndex: 1, Price: 12},
		{Kind: domain.EventSwap, Timestamp: ts(1), BlockNumber: 100, LogIndex: 4, Price: 10},
		{Kind: domain.EventMint, Timestamp: ts(2), BlockNumber: 200, LogIndex: 2},
	}
	if err := store.InsertBulk(ctx, "0xpool", events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByPool(ctx, "0xpool")
	if err != nil {
		t.Fatalf("GetByPool failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(result))
	}
	if result[0].BlockNumber != 100 || result[1].BlockNumber != 200 || result[2].BlockNumber != 300 {
		t.Error("Events not returned in canonical replay order")
	}
}

func TestEventStore_DuplicateKey(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := &domain.Event{Kind: domain.EventSwap, Timestamp: ts(1), BlockNumber: 100, LogIndex: 1}
	if err := store.InsertBulk(ctx, "0xpool", []*domain.Event{e}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.InsertBulk(ctx, "0xpool", []*domain.Event{e}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same coordinates under another pool are a distinct row.
	if err := store.InsertBulk(ctx, "0xother", []*domain.Event{e}); err != nil {
		t.Errorf("Insert under other pool failed: %v", err)
	}
}

func TestEventStore_IntraBatchDuplicate(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := &domain.Event{Kind: domain.EventSwap, Timestamp: ts(1), BlockNumber: 100, LogIndex: 1}
	dup := *e
	err := store.InsertBulk(ctx, "0xpool", []*domain.Event{e, &dup})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Failed batch must not be partially applied.
	result, _ := store.GetByPool(ctx, "0xpool")
	if len(result) != 0 {
		t.Errorf("Failed batch left %d events behind", len(result))
	}
}

func TestEventStore_GetByTimeRange(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	var events []*domain.Event
	for i := 1; i <= 5; i++ {
		events = append(events, &domain.Event{
			Kind: domain.EventSwap, Timestamp: ts(i), BlockNumber: int64(i * 100), LogIndex: 0,
		})
	}
	if err := store.InsertBulk(ctx, "0xpool", events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "0xpool", ts(2), ts(4))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 3 {
		t.Errorf("Expected 3 events in [2h, 4h], got %d", len(result))
	}
}

func TestEventStore_GetByBlockRange(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	var events []*domain.Event
	for i := 1; i <= 5; i++ {
		events = append(events, &domain.Event{
			Kind: domain.EventSwap, Timestamp: ts(i), BlockNumber: int64(i * 100), LogIndex: 0,
		})
	}
	if err := store.InsertBulk(ctx, "0xpool", events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByBlockRange(ctx, "0xpool", 200, 400)
	if err != nil {
		t.Fatalf("GetByBlockRange failed: %v", err)
	}
	if len(result) != 3 {
		t.Errorf("Expected 3 events in blocks [200, 400], got %d", len(result))
	}
}

func TestEventStore_CopiesOnReadAndWrite(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := &domain.Event{Kind: domain.EventSwap, Timestamp: ts(1), BlockNumber: 100, Price: 10}
	if err := store.InsertBulk(ctx, "0xpool", []*domain.Event{e}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	e.Price = 999 // caller mutation must not reach the store

	result, _ := store.GetByPool(ctx, "0xpool")
	if result[0].Price != 10 {
		t.Errorf("Store shared memory with the caller: price = %v", result[0].Price)
	}
	result[0].Price = 555
	again, _ := store.GetByPool(ctx, "0xpool")
	if again[0].Price != 10 {
		t.Errorf("Store shared memory with the reader: price = %v", again[0].Price)
	}
}
