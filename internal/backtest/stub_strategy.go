package backtest

import (
	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/portfolio"
	"amm-strategy-lab/internal/strategy"
)

// StubStrategy is a no-op strategy for testing. It collects the events it
// was shown, in the order it was shown them, and never acts.
type StubStrategy struct {
	events []*domain.Event
}

var _ strategy.Strategy = (*StubStrategy)(nil)

// NewStubStrategy creates a new stub strategy.
func NewStubStrategy() *StubStrategy {
	return &StubStrategy{events: make([]*domain.Event, 0)}
}

// Decide collects the event and does nothing.
func (s *StubStrategy) Decide(event *domain.Event, _ *portfolio.Portfolio) (strategy.Action, error) {
	s.events = append(s.events, event)
	return strategy.NoAction, nil
}

// Name returns the strategy identifier.
func (s *StubStrategy) Name() string { return "stub" }

// Clone returns a fresh stub with its own event log.
func (s *StubStrategy) Clone() strategy.Strategy { return NewStubStrategy() }

// Events returns collected events for test verification.
func (s *StubStrategy) Events() []*domain.Event { return s.events }
