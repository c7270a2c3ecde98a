// Package backtest drives the deterministic replay loop: events feed the
// strategy in order, one simulation tick per event, and the portfolio state
// after every tick is recorded into append-only histories.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/history"
	"amm-strategy-lab/internal/portfolio"
	"amm-strategy-lab/internal/position"
	"amm-strategy-lab/internal/strategy"
)

// Engine errors.
var (
	// ErrEngineReused is returned when Run is called on an engine that
	// already ran. One engine serves exactly one replay.
	ErrEngineReused = errors.New("engine already ran: create a fresh engine per run")

	// ErrNoEvents is returned when Run is given an empty event series.
	ErrNoEvents = errors.New("no events to replay")
)

// State tracks the engine's lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
)

// Results holds the output of one replay: the three histories plus run
// metadata.
type Results struct {
	StrategyName   string
	EventCount     int
	FirstTimestamp time.Time
	LastTimestamp  time.Time

	PortfolioHistory *history.PortfolioHistory
	ActionHistory    *history.ActionHistory
	IntervalHistory  *history.PositionIntervalHistory
}

// Engine replays one ordered event series through a strategy. It owns the
// history stores for its single run and transitions Idle -> Running -> Done;
// a failed tick aborts the run with the engine left in Done.
type Engine struct {
	state State

	portfolioHistory *history.PortfolioHistory
	actionHistory    *history.ActionHistory
	intervalHistory  *history.PositionIntervalHistory
}

// NewEngine creates an idle engine with empty histories.
func NewEngine() *Engine {
	return &Engine{
		portfolioHistory: history.NewPortfolioHistory(),
		actionHistory:    history.NewActionHistory(),
		intervalHistory:  history.NewPositionIntervalHistory(),
	}
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State { return e.state }

// Run replays events through strat against pf, strictly in the given order.
// Per event it calls the strategy, snapshots the portfolio after the
// strategy's mutation, records the action tag (no-action ticks included) and
// the interval state of every concentrated position. Any strategy or
// position error aborts the run immediately; a partially replayed history is
// not a valid result and is not returned.
func (e *Engine) Run(strat strategy.Strategy, pf *portfolio.Portfolio, events []*domain.Event) (*Results, error) {
	if e.state != StateIdle {
		return nil, ErrEngineReused
	}
	if len(events) == 0 {
		e.state = StateDone
		return nil, ErrNoEvents
	}
	e.state = StateRunning

	for i, event := range events {
		action, err := strat.Decide(event, pf)
		if err != nil {
			e.state = StateDone
			return nil, fmt.Errorf("tick %d at %s: %w", i, event.Timestamp.Format(time.RFC3339), err)
		}

		if pf.Len() > 0 {
			snap, err := pf.Snapshot(event.Timestamp, event.Price)
			if err != nil {
				e.state = StateDone
				return nil, fmt.Errorf("snapshot tick %d at %s: %w", i, event.Timestamp.Format(time.RFC3339), err)
			}
			e.portfolioHistory.Append(snap)
		}
		e.actionHistory.Append(event.Timestamp, string(action))
		e.appendIntervals(event.Timestamp, pf)
	}

	e.state = StateDone
	return &Results{
		StrategyName:     strat.Name(),
		EventCount:       len(events),
		FirstTimestamp:   events[0].Timestamp,
		LastTimestamp:    events[len(events)-1].Timestamp,
		PortfolioHistory: e.portfolioHistory,
		ActionHistory:    e.actionHistory,
		IntervalHistory:  e.intervalHistory,
	}, nil
}

// appendIntervals records bounds and liquidity of every concentrated
// position, descending into nested portfolios.
func (e *Engine) appendIntervals(ts time.Time, pf *portfolio.Portfolio) {
	for _, pos := range pf.Positions() {
		switch p := pos.(type) {
		case *position.ConcentratedPosition:
			e.intervalHistory.Append(ts, p.Name(), p.LowerPrice(), p.UpperPrice(), p.Liquidity())
		case *portfolio.Portfolio:
			e.appendIntervals(ts, p)
		}
	}
}
