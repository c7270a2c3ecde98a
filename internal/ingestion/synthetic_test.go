package ingestion

import (
	"testing"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/normalization"
	"amm-strategy-lab/internal/replay"
)

func TestGenerateSyntheticDeterministic(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	a := GenerateSynthetic(cfg)
	b := GenerateSynthetic(cfg)
	if len(a) != cfg.Count || len(b) != cfg.Count {
		t.Fatalf("lengths = %d, %d, want %d", len(a), len(b), cfg.Count)
	}
	for i := range a {
		if a[i].Price != b[i].Price || !a[i].Timestamp.Equal(b[i].Timestamp) {
			t.Fatalf("event %d differs across identical configs", i)
		}
	}
}

func TestGenerateSyntheticSeedChangesPath(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	a := GenerateSynthetic(cfg)
	cfg.Seed = 7
	b := GenerateSynthetic(cfg)

	same := true
	for i := 1; i < len(a); i++ {
		if a[i].Price != b[i].Price {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical paths")
	}
}

func TestGenerateSyntheticSeries(t *testing.T) {
	cfg := SyntheticConfig{
		Start:     time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
		Step:      time.Hour,
		Count:     48,
		InitPrice: 100,
		Sigma:     0.02,
		Seed:      1,
	}
	events := GenerateSynthetic(cfg)
	if len(events) != 48 {
		t.Fatalf("got %d events, want 48", len(events))
	}
	if events[0].Price != 100 {
		t.Fatalf("first price = %g, want the initial price", events[0].Price)
	}
	if err := replay.ValidateOrdering(events); err != nil {
		t.Fatalf("series not replay-ordered: %v", err)
	}
	for i, e := range events {
		if e.Kind != domain.EventTick {
			t.Fatalf("event %d kind = %s, want tick", i, e.Kind)
		}
		if e.Price <= 0 {
			t.Fatalf("event %d price = %g", i, e.Price)
		}
		if e.Tick != normalization.PriceToTick(e.Price) {
			t.Errorf("event %d tick = %d, want %d", i, e.Tick, normalization.PriceToTick(e.Price))
		}
	}

	// Shift-and-fill edges.
	if events[0].PriceBefore != events[0].Price {
		t.Errorf("leading PriceBefore = %g", events[0].PriceBefore)
	}
	if events[47].PriceNext != events[47].Price {
		t.Errorf("trailing PriceNext = %g", events[47].PriceNext)
	}
	if events[1].PriceBefore != events[0].Price {
		t.Errorf("PriceBefore not shifted from predecessor")
	}
}

func TestGenerateSyntheticEmpty(t *testing.T) {
	if got := GenerateSynthetic(SyntheticConfig{Count: 0}); got != nil {
		t.Fatalf("got %d events, want none", len(got))
	}
}
