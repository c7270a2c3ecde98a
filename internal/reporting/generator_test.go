package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage/memory"
)

var reportClock = time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC)

func seedStores(t *testing.T) (*memory.RunStore, *memory.FoldScoreStore) {
	t.Helper()
	ctx := context.Background()

	runs := memory.NewRunStore()
	folds := memory.NewFoldScoreStore()

	from := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	records := []*domain.RunRecord{
		{
			RunID: "run-hold", PoolAddress: "0xaaa", StrategyName: "HOLD",
			FromTs: from, ToTs: to, EventCount: 48,
			FinishedAt: reportClock, GAPY: 1.0,
		},
		{
			RunID: "run-pr-2", PoolAddress: "0xaaa", StrategyName: "PASSIVE_RANGE",
			FromTs: from.Add(time.Hour), ToTs: to, EventCount: 46,
			FinishedAt: reportClock.Add(time.Minute), GAPY: 1.3,
		},
		{
			RunID: "run-pr-1", PoolAddress: "0xbbb", StrategyName: "PASSIVE_RANGE",
			FromTs: from, ToTs: to, EventCount: 48,
			FinishedAt: reportClock.Add(2 * time.Minute), GAPY: 1.1,
		},
	}
	for _, r := range records {
		if err := runs.Insert(ctx, r); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}

	scores := []*domain.FoldScore{
		{RunID: "run-pr-1", FoldID: "f0", FoldIndex: 0, FromTs: from, ToTs: from.Add(12 * time.Hour), EventCount: 24, GAPY: 1.05},
		{RunID: "run-pr-1", FoldID: "f1", FoldIndex: 1, FromTs: from.Add(12 * time.Hour), ToTs: to, EventCount: 0, Skipped: true},
	}
	if err := folds.InsertBulk(ctx, scores); err != nil {
		t.Fatalf("InsertBulk fold scores failed: %v", err)
	}

	return runs, folds
}

func TestGenerate(t *testing.T) {
	runs, folds := seedStores(t)
	gen := NewGenerator(runs, folds).WithClock(func() time.Time { return reportClock })

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(reportClock) {
		t.Errorf("GeneratedAt = %v, want %v", report.GeneratedAt, reportClock)
	}
	if report.RunCount != 3 {
		t.Errorf("RunCount = %d, want 3", report.RunCount)
	}
	if report.PoolCount != 2 {
		t.Errorf("PoolCount = %d, want 2", report.PoolCount)
	}

	// Sorted by pool, then strategy, regardless of completion order.
	wantOrder := []string{"run-hold", "run-pr-2", "run-pr-1"}
	for i, want := range wantOrder {
		if report.Runs[i].RunID != want {
			t.Errorf("Runs[%d].RunID = %q, want %q", i, report.Runs[i].RunID, want)
		}
	}

	if len(report.FoldScores) != 2 {
		t.Fatalf("expected 2 fold scores, got %d", len(report.FoldScores))
	}
	if report.FoldScores[0].FoldIndex != 0 || report.FoldScores[1].FoldIndex != 1 {
		t.Error("fold scores not ordered by index")
	}
	if !report.FoldScores[1].Skipped {
		t.Error("fold 1 should be marked skipped")
	}
}

func TestGenerateStrategySummaries(t *testing.T) {
	runs, folds := seedStores(t)
	gen := NewGenerator(runs, folds).WithClock(func() time.Time { return reportClock })

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.StrategySummaries) != 2 {
		t.Fatalf("expected 2 strategy summaries, got %d", len(report.StrategySummaries))
	}

	hold := report.StrategySummaries[0]
	if hold.StrategyName != "HOLD" || hold.Runs != 1 || hold.MeanGAPY != 1.0 {
		t.Errorf("HOLD summary = %+v", hold)
	}

	pr := report.StrategySummaries[1]
	if pr.StrategyName != "PASSIVE_RANGE" || pr.Runs != 2 {
		t.Fatalf("PASSIVE_RANGE summary = %+v", pr)
	}
	if pr.BestGAPY != 1.3 || pr.WorstGAPY != 1.1 {
		t.Errorf("best/worst = %v/%v, want 1.3/1.1", pr.BestGAPY, pr.WorstGAPY)
	}
	if diff := pr.MeanGAPY - 1.2; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("MeanGAPY = %v, want 1.2", pr.MeanGAPY)
	}
}

func TestGenerateWithoutFoldStore(t *testing.T) {
	runs, _ := seedStores(t)
	gen := NewGenerator(runs, nil).WithClock(func() time.Time { return reportClock })

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(report.FoldScores) != 0 {
		t.Errorf("expected no fold scores, got %d", len(report.FoldScores))
	}
}

func TestGenerateEmptyStores(t *testing.T) {
	gen := NewGenerator(memory.NewRunStore(), memory.NewFoldScoreStore()).
		WithClock(func() time.Time { return reportClock })

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.RunCount != 0 || len(report.StrategySummaries) != 0 {
		t.Errorf("empty stores should yield an empty report: %+v", report)
	}

	md := RenderMarkdown(report)
	if !strings.Contains(md, "No runs recorded.") {
		t.Error("markdown should state that no runs exist")
	}
}

func TestRenderMarkdown(t *testing.T) {
	runs, folds := seedStores(t)
	gen := NewGenerator(runs, folds).WithClock(func() time.Time { return reportClock })

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Backtest Report",
		"Generated: 2022-06-01T12:00:00Z",
		"Runs: 3 | Pools: 2",
		"## Strategy Summary",
		"| run-pr-1 | 0xbbb | PASSIVE_RANGE |",
		"| run-pr-1 | 1 | ",
		"skipped",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	// Same stores, same clock: byte-identical output.
	report2, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}
	if RenderMarkdown(report2) != md {
		t.Error("two generations over the same data differ")
	}
}
