// Package position implements the holdings a strategy mutates during a
// backtest: a plain two-token vault (BiCurrencyPosition) and a
// concentrated-liquidity interval stake (ConcentratedPosition). Both satisfy
// Position, the capability surface the portfolio aggregates over.
//
// Prices are always units of Y per unit of X and must be positive. Every
// mutating operation validates its inputs and returns a sentinel error on
// violation; positions are never left half-mutated by a failed call.
package position

import (
	"fmt"
	"math"
	"time"

	"amm-strategy-lab/internal/amm"
	"amm-strategy-lab/internal/domain"
)

// Position is the capability every holding exposes: identity, valuation in
// either token, and a keyed snapshot for history recording.
type Position interface {
	Name() string
	Rename(newName string)
	ToX(price float64) (float64, error)
	ToY(price float64) (float64, error)
	ToXY(price float64) (float64, float64, error)
	Snapshot(ts time.Time, price float64) (*domain.Snapshot, error)
}

// checkPrice validates the positive-price precondition shared by every
// valuation operation.
func checkPrice(price float64) error {
	if !(price > 0) || math.IsInf(price, 1) || math.IsNaN(price) {
		return fmt.Errorf("%w: price=%v", amm.ErrInvalidPrice, price)
	}
	return nil
}
