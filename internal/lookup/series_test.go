package lookup

import (
	"errors"
	"testing"
	"time"

	"amm-strategy-lab/internal/domain"
)

func seriesOf(t *testing.T, prices ...float64) (*Series, time.Time) {
	t.Helper()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	events := make([]*domain.Event, len(prices))
	for i, p := range prices {
		events[i] = &domain.Event{
			Kind:      domain.EventTick,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Price:     p,
		}
	}
	return NewSeries(events), start
}

func TestAsOfForwardFills(t *testing.T) {
	s, start := seriesOf(t, 10, 11, 12)

	// Between events: last known one wins.
	e, err := s.AsOf(start.Add(90 * time.Minute))
	if err != nil {
		t.Fatalf("AsOf: %v", err)
	}
	if e.Price != 11 {
		t.Errorf("price = %v, want 11", e.Price)
	}

	// Exactly on an event.
	p, err := s.PriceAsOf(start.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("PriceAsOf: %v", err)
	}
	if p != 12 {
		t.Errorf("price = %v, want 12", p)
	}

	// After the series: last event.
	p, err = s.PriceAsOf(start.Add(48 * time.Hour))
	if err != nil {
		t.Fatalf("PriceAsOf: %v", err)
	}
	if p != 12 {
		t.Errorf("price = %v, want 12", p)
	}
}

func TestAsOfSentinels(t *testing.T) {
	empty := NewSeries(nil)
	if _, err := empty.AsOf(time.Now()); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}

	s, start := seriesOf(t, 10)
	if _, err := s.AsOf(start.Add(-time.Minute)); !errors.Is(err, ErrBeforeSeries) {
		t.Errorf("expected ErrBeforeSeries, got %v", err)
	}
}

func TestAtExactMatchOnly(t *testing.T) {
	s, start := seriesOf(t, 10, 11)
	if e, ok := s.At(start.Add(time.Hour)); !ok || e.Price != 11 {
		t.Errorf("At exact = (%v, %v), want price 11", e, ok)
	}
	if _, ok := s.At(start.Add(30 * time.Minute)); ok {
		t.Error("At matched a timestamp with no event")
	}
}

func TestRangeHalfOpen(t *testing.T) {
	s, start := seriesOf(t, 10, 11, 12, 13)
	got := s.Range(start.Add(time.Hour), start.Add(3*time.Hour))
	if len(got) != 2 || got[0].Price != 11 || got[1].Price != 12 {
		t.Errorf("Range returned %d events, want [11 12]", len(got))
	}
	if len(s.Range(start.Add(10*time.Hour), start.Add(20*time.Hour))) != 0 {
		t.Error("out-of-series range was not empty")
	}
}

func TestNewSeriesSortsInput(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	events := []*domain.Event{
		{Timestamp: start.Add(2 * time.Hour), Price: 12},
		{Timestamp: start, Price: 10},
		{Timestamp: start.Add(time.Hour), Price: 11},
	}
	s := NewSeries(events)
	p, err := s.PriceAsOf(start.Add(30 * time.Minute))
	if err != nil {
		t.Fatalf("PriceAsOf: %v", err)
	}
	if p != 10 {
		t.Errorf("price = %v, want 10", p)
	}
}
