package strategy

import (
	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/portfolio"
)

// Action tags what a strategy did on one event tick.
type Action string

const (
	// NoAction marks a tick the strategy let pass. ActionHistory keeps the
	// tick and filters it at render time.
	NoAction Action = ""

	ActionMint      Action = "mint"
	ActionBurn      Action = "burn"
	ActionSwap      Action = "swap"
	ActionRebalance Action = "rebalance"
	ActionSkip      Action = "skip"
)

// Strategy decides, per replayed event, how to mutate the portfolio.
type Strategy interface {
	// Decide reads the event, mutates the portfolio through its public
	// operations, and tags what it did. Any error aborts the running
	// backtest.
	Decide(event *domain.Event, pf *portfolio.Portfolio) (Action, error)

	// Name returns the strategy identifier, used as a position name prefix
	// and in run records.
	Name() string

	// Clone returns a fresh copy with the same parameters and no replay
	// state. Cross-validation folds each run their own copy.
	Clone() Strategy
}
