package backtest

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
	"amm-strategy-lab/internal/storage/memory"
)

func fptr(v float64) *float64 { return &v }

func testPool() *domain.Pool {
	return &domain.Pool{
		Address: "0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8",
		Token0:  domain.Token{Symbol: "USDC", Decimals: 6},
		Token1:  domain.Token{Symbol: "WETH", Decimals: 18},
		Fee:     domain.FeeMiddle,
	}
}

func passiveRangeConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		StrategyType: domain.StrategyTypePassiveRange,
		LowerPrice:   fptr(90),
		UpperPrice:   fptr(110),
		FeePercent:   fptr(0.003),
	}
}

func seededRunner(t *testing.T, events []*domain.Event) (*Runner, *memory.RunStore, *memory.SnapshotStore) {
	t.Helper()
	eventStore := memory.NewEventStore()
	if err := eventStore.InsertBulk(context.Background(), testPool().Address, events); err != nil {
		t.Fatalf("seed events: %v", err)
	}
	runs := memory.NewRunStore()
	snapshots := memory.NewSnapshotStore()
	logger := log.New(io.Discard, "", 0)
	return NewRunner(eventStore, runs, snapshots, logger), runs, snapshots
}

func TestRunnerPersistsRecordAndSnapshots(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	events := syntheticTicks(24, start, 100)
	runner, runs, snapshots := seededRunner(t, events)
	ctx := context.Background()

	results, record, err := runner.Run(ctx, testPool(), start, start.Add(48*time.Hour), passiveRangeConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results.EventCount != len(events) {
		t.Fatalf("replayed %d events, want %d", results.EventCount, len(events))
	}
	if record.RunID == "" {
		t.Fatal("record has empty run id")
	}
	if record.StrategyName != domain.StrategyTypePassiveRange {
		t.Errorf("strategy name = %q", record.StrategyName)
	}
	if !record.FromTs.Equal(events[0].Timestamp) || !record.ToTs.Equal(events[len(events)-1].Timestamp) {
		t.Error("record window does not match the replayed events")
	}
	if math.IsNaN(record.GAPY) || math.IsInf(record.GAPY, 0) {
		t.Errorf("g_apy = %v", record.GAPY)
	}

	stored, err := runs.GetByID(ctx, record.RunID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.ConfigJSON != record.ConfigJSON {
		t.Error("stored config differs from returned record")
	}

	rows, err := snapshots.GetByRunID(ctx, record.RunID)
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("no snapshot rows persisted")
	}
	for _, row := range rows {
		if row.Column == "price" {
			t.Fatal("price flattened as a value column")
		}
		if row.Price <= 0 {
			t.Fatalf("row at %s has price %v", row.Timestamp, row.Price)
		}
	}
}

func TestRunnerDeterministicRunID(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	events := syntheticTicks(12, start, 100)

	runnerA, _, _ := seededRunner(t, events)
	runnerB, _, _ := seededRunner(t, events)
	ctx := context.Background()

	_, recordA, err := runnerA.Run(ctx, testPool(), start, start.Add(24*time.Hour), passiveRangeConfig())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, recordB, err := runnerB.Run(ctx, testPool(), start, start.Add(24*time.Hour), passiveRangeConfig())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if recordA.RunID != recordB.RunID {
		t.Errorf("run ids differ: %s vs %s", recordA.RunID, recordB.RunID)
	}
}

func TestRunnerRerunSameWindowIsDuplicate(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	events := syntheticTicks(12, start, 100)
	runner, _, _ := seededRunner(t, events)
	ctx := context.Background()

	if _, _, err := runner.Run(ctx, testPool(), start, start.Add(24*time.Hour), passiveRangeConfig()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, _, err := runner.Run(ctx, testPool(), start, start.Add(24*time.Hour), passiveRangeConfig())
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey on rerun, got %v", err)
	}
}

func TestRunnerWithoutPersistence(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	events := syntheticTicks(12, start, 100)
	eventStore := memory.NewEventStore()
	ctx := context.Background()
	if err := eventStore.InsertBulk(ctx, testPool().Address, events); err != nil {
		t.Fatalf("seed events: %v", err)
	}

	runner := NewRunner(eventStore, nil, nil, log.New(io.Discard, "", 0))
	results, record, err := runner.Run(ctx, testPool(), start, start.Add(24*time.Hour), passiveRangeConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results == nil || record == nil {
		t.Fatal("results not returned without stores")
	}
}

func TestRunnerEmptyWindow(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	events := syntheticTicks(12, start, 100)
	runner, _, _ := seededRunner(t, events)
	ctx := context.Background()

	_, _, err := runner.Run(ctx, testPool(), start.AddDate(0, 1, 0), start.AddDate(0, 2, 0), passiveRangeConfig())
	if !errors.Is(err, ErrNoEvents) {
		t.Errorf("expected ErrNoEvents, got %v", err)
	}
}

func TestRunnerUnknownStrategy(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	runner, _, _ := seededRunner(t, syntheticTicks(3, start, 100))

	cfg := domain.StrategyConfig{StrategyType: "MARTINGALE"}
	_, _, err := runner.Run(context.Background(), testPool(), start, start.Add(time.Hour), cfg)
	if err == nil {
		t.Fatal("expected error for unknown strategy type")
	}
}
