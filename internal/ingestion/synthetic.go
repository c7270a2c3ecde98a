package ingestion

import (
	"math"
	"math/rand"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/normalization"
)

// SyntheticConfig parameterizes a geometric-Brownian-motion price series.
// Log returns are drawn from N(Mu, Sigma) per step, so the defaults give a
// driftless series with 10% per-step volatility.
type SyntheticConfig struct {
	Start     time.Time
	Step      time.Duration
	Count     int
	InitPrice float64
	Mu        float64
	Sigma     float64
	Seed      int64
}

// DefaultSyntheticConfig returns the generator defaults: one year of daily
// ticks starting at price 1.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Start:     time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		Step:      24 * time.Hour,
		Count:     365,
		InitPrice: 1,
		Mu:        0,
		Sigma:     0.1,
		Seed:      42,
	}
}

// GenerateSynthetic samples a GBM price path and wraps it as a tick-event
// series. The same config always produces the same series.
func GenerateSynthetic(cfg SyntheticConfig) []*domain.Event {
	if cfg.Count <= 0 {
		return nil
	}
	if cfg.InitPrice <= 0 {
		cfg.InitPrice = 1
	}
	if cfg.Step <= 0 {
		cfg.Step = 24 * time.Hour
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	events := make([]*domain.Event, cfg.Count)
	price := cfg.InitPrice
	for i := 0; i < cfg.Count; i++ {
		if i > 0 {
			price *= math.Exp(cfg.Mu + cfg.Sigma*rng.NormFloat64())
		}
		events[i] = &domain.Event{
			Kind:      domain.EventTick,
			Timestamp: cfg.Start.Add(time.Duration(i) * cfg.Step).UTC(),
			Price:     price,
			Tick:      normalization.PriceToTick(price),
		}
	}

	// Shift-and-fill, edges reuse their own price.
	for i, e := range events {
		if i > 0 {
			e.PriceBefore = events[i-1].Price
		} else {
			e.PriceBefore = e.Price
		}
		if i < cfg.Count-1 {
			e.PriceNext = events[i+1].Price
		} else {
			e.PriceNext = e.Price
		}
	}
	return events
}
