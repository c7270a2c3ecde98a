package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/portfolio"
	"amm-strategy-lab/internal/position"
)

func tickEvent(ts time.Time, price float64) *domain.Event {
	return &domain.Event{
		Kind:        domain.EventTick,
		Timestamp:   ts,
		Price:       price,
		PriceBefore: price,
	}
}

func TestHoldCreatesVaultOnFirstEvent(t *testing.T) {
	s := NewHoldStrategy(HoldConfig{InitialX: 2, InitialY: 100, XInterest: 0.001, YInterest: 0.001})
	pf := portfolio.NewPortfolio("main")

	action, err := s.Decide(tickEvent(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), 10), pf)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if action != ActionMint {
		t.Errorf("expected mint action on the funding tick, got %q", action)
	}
	pos, ok := pf.Get(VaultName)
	if !ok {
		t.Fatal("vault was not created")
	}
	vault := pos.(*position.BiCurrencyPosition)
	x, y := vault.Balances()
	if x != 2 || y != 100 {
		t.Errorf("vault funded with (%v, %v), want (2, 100)", x, y)
	}
}

func TestHoldCompoundsOncePerDay(t *testing.T) {
	s := NewHoldStrategy(HoldConfig{InitialX: 1, InitialY: 1, XInterest: 0.01, YInterest: 0.02})
	pf := portfolio.NewPortfolio("main")

	day1 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	if _, err := s.Decide(tickEvent(day1, 10), pf); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	// Later same day: no gain.
	if _, err := s.Decide(tickEvent(day1.Add(6*time.Hour), 10), pf); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	pos, _ := pf.Get(VaultName)
	x, y := pos.(*position.BiCurrencyPosition).Balances()
	if x != 1 || y != 1 {
		t.Errorf("intra-day tick compounded interest: (%v, %v)", x, y)
	}

	// Next day: one gain.
	if _, err := s.Decide(tickEvent(day1.Add(24*time.Hour), 10), pf); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	x, y = pos.(*position.BiCurrencyPosition).Balances()
	if math.Abs(x-1.01) > 1e-12 || math.Abs(y-1.02) > 1e-12 {
		t.Errorf("after one day got (%v, %v), want (1.01, 1.02)", x, y)
	}
}

func TestPassiveRangeMintsOnceAndAccruesFees(t *testing.T) {
	s := NewPassiveRangeStrategy(PassiveRangeConfig{
		LowerPrice: 9000,
		UpperPrice: 11000,
		FeePercent: 0.003,
		SwapFee:    0.003,
	})
	pf := portfolio.NewPortfolio("main")

	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	action, err := s.Decide(tickEvent(ts, 10000), pf)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if action != ActionMint {
		t.Errorf("first event action = %q, want mint", action)
	}
	pos, ok := pf.Get("passive_range")
	if !ok {
		t.Fatal("interval position was not created")
	}
	conc := pos.(*position.ConcentratedPosition)
	if conc.Liquidity() <= 0 {
		t.Fatalf("no liquidity minted, got %v", conc.Liquidity())
	}

	// A price move inside the range accrues fees on the second tick.
	ev := tickEvent(ts.Add(time.Hour), 10500)
	ev.PriceBefore = 10000
	action, err = s.Decide(ev, pf)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if action != NoAction {
		t.Errorf("second event action = %q, want none", action)
	}
	feesX, feesY := conc.CollectFees()
	if feesX <= 0 && feesY <= 0 {
		t.Errorf("no fees accrued over the move: (%v, %v)", feesX, feesY)
	}

	il, err := conc.ImpermanentLossToY(10500)
	if err != nil {
		t.Fatalf("ImpermanentLossToY: %v", err)
	}
	if il <= 0 {
		t.Errorf("expected positive impermanent loss after the move, got %v", il)
	}
}

func TestPassiveRangeMintIsOptimal(t *testing.T) {
	// The vault swap must leave amounts the position accepts in full; a
	// non-optimal pair would make Mint fail and surface as a Decide error.
	cases := []float64{9100, 10000, 10900, 8000, 12000}
	for _, price := range cases {
		s := NewPassiveRangeStrategy(PassiveRangeConfig{
			LowerPrice: 9000,
			UpperPrice: 11000,
			FeePercent: 0.003,
			SwapFee:    0.003,
		})
		pf := portfolio.NewPortfolio("main")
		if _, err := s.Decide(tickEvent(time.Now().UTC(), price), pf); err != nil {
			t.Errorf("price %v: %v", price, err)
		}
	}
}

func TestAddressReplayMirrorsOwnerEvents(t *testing.T) {
	s := NewAddressReplayStrategy(AddressReplayConfig{
		Address:    "0xabc",
		FeePercent: 0.003,
	})
	pf := portfolio.NewPortfolio("main")
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	price := tickToPrice(200100, 0) // inside [200000, 200200]

	mint := &domain.Event{
		Kind:      domain.EventMint,
		Timestamp: ts,
		Price:     price,
		Owner:     "0xabc",
		Amount0:   1,
		Amount1:   2,
		TickLower: 200000,
		TickUpper: 200200,
		Liquidity: 5000,
	}
	action, err := s.Decide(mint, pf)
	if err != nil {
		t.Fatalf("Decide mint: %v", err)
	}
	if action != ActionMint {
		t.Errorf("mint action = %q", action)
	}
	pos, ok := pf.Get("pos_200000_200200")
	if !ok {
		t.Fatal("interval position not opened")
	}
	conc := pos.(*position.ConcentratedPosition)
	if conc.Liquidity() != 5000 {
		t.Errorf("liquidity = %v, want 5000", conc.Liquidity())
	}

	// A mint by someone else is ignored.
	other := *mint
	other.Owner = "0xother"
	other.TickLower, other.TickUpper = 100000, 100200
	if action, err = s.Decide(&other, pf); err != nil {
		t.Fatalf("Decide foreign mint: %v", err)
	}
	if action != NoAction {
		t.Errorf("foreign mint action = %q, want none", action)
	}
	if _, ok := pf.Get("pos_100000_100200"); ok {
		t.Error("foreign mint opened a position")
	}

	burn := &domain.Event{
		Kind:      domain.EventBurn,
		Timestamp: ts.Add(time.Hour),
		Price:     price,
		Owner:     "0xabc",
		Amount0:   0.5,
		Amount1:   1,
		TickLower: 200000,
		TickUpper: 200200,
		Liquidity: 5000,
	}
	if action, err = s.Decide(burn, pf); err != nil {
		t.Fatalf("Decide burn: %v", err)
	}
	if action != ActionBurn {
		t.Errorf("burn action = %q", action)
	}
	// Fully burned position is dust and pruned.
	if _, ok := pf.Get("pos_200000_200200"); ok {
		t.Error("drained position was not pruned")
	}
}

func TestAddressReplayChargesFeesOnEverySwap(t *testing.T) {
	s := NewAddressReplayStrategy(AddressReplayConfig{
		Address:    "0xabc",
		FeePercent: 0.003,
	})
	pf := portfolio.NewPortfolio("main")
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p0 := tickToPrice(200050, 0)

	mint := &domain.Event{
		Kind: domain.EventMint, Timestamp: ts, Price: p0, Owner: "0xabc",
		Amount0: 1, Amount1: 2, TickLower: 200000, TickUpper: 200200, Liquidity: 5000,
	}
	if _, err := s.Decide(mint, pf); err != nil {
		t.Fatalf("Decide mint: %v", err)
	}

	p1 := tickToPrice(200150, 0)
	swap := &domain.Event{
		Kind: domain.EventSwap, Timestamp: ts.Add(time.Minute),
		Price: p1, PriceBefore: p0, Owner: "0xother",
	}
	if _, err := s.Decide(swap, pf); err != nil {
		t.Fatalf("Decide swap: %v", err)
	}
	pos, _ := pf.Get("pos_200000_200200")
	feesX, feesY := pos.(*position.ConcentratedPosition).CollectFees()
	if feesX <= 0 && feesY <= 0 {
		t.Errorf("swap accrued no fees: (%v, %v)", feesX, feesY)
	}
}

func TestFromConfig(t *testing.T) {
	lower, upper, fee := 9000.0, 11000.0, 0.003
	addr := "0xabc"

	cases := []struct {
		name    string
		cfg     domain.StrategyConfig
		wantErr error
	}{
		{"hold", domain.StrategyConfig{StrategyType: domain.StrategyTypeHold}, nil},
		{"passive range", domain.StrategyConfig{
			StrategyType: domain.StrategyTypePassiveRange,
			LowerPrice:   &lower, UpperPrice: &upper, FeePercent: &fee,
		}, nil},
		{"passive range missing bound", domain.StrategyConfig{
			StrategyType: domain.StrategyTypePassiveRange,
			LowerPrice:   &lower, FeePercent: &fee,
		}, ErrMissingParameter},
		{"address replay", domain.StrategyConfig{
			StrategyType: domain.StrategyTypeAddressReplay,
			Address:      &addr, FeePercent: &fee,
		}, nil},
		{"address replay missing address", domain.StrategyConfig{
			StrategyType: domain.StrategyTypeAddressReplay,
			FeePercent:   &fee,
		}, ErrMissingParameter},
		{"unknown", domain.StrategyConfig{StrategyType: "CUSTOM"}, ErrUnknownStrategyType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := FromConfig(tc.cfg)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromConfig: %v", err)
			}
			if s.Name() != tc.cfg.StrategyType {
				t.Errorf("Name() = %q, want %q", s.Name(), tc.cfg.StrategyType)
			}
		})
	}
}

func TestCloneSharesNoReplayState(t *testing.T) {
	s := NewHoldStrategy(HoldConfig{InitialX: 1, InitialY: 1})
	pf := portfolio.NewPortfolio("main")
	if _, err := s.Decide(tickEvent(time.Now().UTC(), 10), pf); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	clone := s.Clone().(*HoldStrategy)
	if !clone.prevGainDate.IsZero() {
		t.Error("clone inherited the previous gain date")
	}

	// The clone drives its own portfolio from scratch.
	pf2 := portfolio.NewPortfolio("main")
	action, err := clone.Decide(tickEvent(time.Now().UTC(), 10), pf2)
	if err != nil {
		t.Fatalf("clone Decide: %v", err)
	}
	if action != ActionMint {
		t.Errorf("clone first action = %q, want mint", action)
	}
}
