// Package portfolio implements the named collection of positions a strategy
// mutates during a backtest. A Portfolio aggregates valuation and snapshots
// over its children in insertion order and itself satisfies
// position.Position, so portfolios nest.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"time"

	"amm-strategy-lab/internal/amm"
	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/position"
)

// ErrUnknownPosition is returned when an operation names a position the
// portfolio does not hold.
var ErrUnknownPosition = errors.New("unknown position")

// Portfolio maps unique names to positions, preserving insertion order for
// snapshot column stability.
type Portfolio struct {
	name   string
	order  []string
	byName map[string]position.Position
}

var _ position.Position = (*Portfolio)(nil)

// NewPortfolio creates a portfolio holding the given positions. Duplicate
// names keep the last position under that name, like repeated Append calls.
func NewPortfolio(name string, positions ...position.Position) *Portfolio {
	p := &Portfolio{
		name:   name,
		byName: make(map[string]position.Position),
	}
	for _, pos := range positions {
		p.Append(pos)
	}
	return p
}

// Name returns the portfolio's name.
func (p *Portfolio) Name() string { return p.name }

// Rename changes the portfolio's name.
func (p *Portfolio) Rename(newName string) { p.name = newName }

// Append adds pos under its name. An existing position with the same name is
// replaced in place, keeping its snapshot column slot.
func (p *Portfolio) Append(pos position.Position) {
	name := pos.Name()
	if _, ok := p.byName[name]; !ok {
		p.order = append(p.order, name)
	}
	p.byName[name] = pos
}

// Remove deletes the named position.
func (p *Portfolio) Remove(name string) error {
	if _, ok := p.byName[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPosition, name)
	}
	delete(p.byName, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// RenamePosition renames a held position, keeping its insertion slot. If a
// position already exists under newName it is replaced.
func (p *Portfolio) RenamePosition(currentName, newName string) error {
	pos, ok := p.byName[currentName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPosition, currentName)
	}
	if newName == currentName {
		return nil
	}
	if _, exists := p.byName[newName]; exists {
		if err := p.Remove(newName); err != nil {
			return err
		}
	}
	pos.Rename(newName)
	delete(p.byName, currentName)
	p.byName[newName] = pos
	for i, n := range p.order {
		if n == currentName {
			p.order[i] = newName
			break
		}
	}
	return nil
}

// Get returns the named position.
func (p *Portfolio) Get(name string) (position.Position, bool) {
	pos, ok := p.byName[name]
	return pos, ok
}

// Positions returns the held positions in insertion order.
func (p *Portfolio) Positions() []position.Position {
	out := make([]position.Position, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.byName[name])
	}
	return out
}

// Names returns the position names in insertion order.
func (p *Portfolio) Names() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of held positions.
func (p *Portfolio) Len() int { return len(p.order) }

// ToX sums the children's value in X units.
func (p *Portfolio) ToX(price float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	var total float64
	for _, name := range p.order {
		v, err := p.byName[name].ToX(price)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// ToY sums the children's value in Y units.
func (p *Portfolio) ToY(price float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	var total float64
	for _, name := range p.order {
		v, err := p.byName[name].ToY(price)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// ToXY sums the children's token amounts.
func (p *Portfolio) ToXY(price float64) (float64, float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, 0, err
	}
	var totalX, totalY float64
	for _, name := range p.order {
		x, y, err := p.byName[name].ToXY(price)
		if err != nil {
			return 0, 0, err
		}
		totalX += x
		totalY += y
	}
	return totalX, totalY, nil
}

// Snapshot merges every child's snapshot in insertion order under one
// (timestamp, price) header.
func (p *Portfolio) Snapshot(ts time.Time, price float64) (*domain.Snapshot, error) {
	if err := checkPrice(price); err != nil {
		return nil, err
	}
	snap := domain.NewSnapshot(ts, price)
	for _, name := range p.order {
		child, err := p.byName[name].Snapshot(ts, price)
		if err != nil {
			return nil, err
		}
		snap.Merge(child)
	}
	return snap, nil
}

// SwapToOptimal executes, on the named bi-currency vault, the single swap
// that makes (x, y) optimal for minting into [lowerPrice, upperPrice] at
// price, and returns the post-swap amounts ready to withdraw and mint. With
// (x, y) already optimal no swap happens; beyond an interval bound the whole
// wrong side is swapped. The vault's own swap fee feeds the computation, so
// the returned amounts match its real post-fee balances.
func (p *Portfolio) SwapToOptimal(vaultName string, x, y, price, lowerPrice, upperPrice float64) (float64, float64, error) {
	pos, ok := p.byName[vaultName]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownPosition, vaultName)
	}
	vault, ok := pos.(*position.BiCurrencyPosition)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q is not a bi-currency vault", ErrUnknownPosition, vaultName)
	}
	aligner, err := amm.NewLiquidityAligner(lowerPrice, upperPrice)
	if err != nil {
		return 0, 0, err
	}
	dx, dy, err := aligner.OptimalSwap(price, x, y, vault.SwapFee())
	if err != nil {
		return 0, 0, err
	}
	if dx > 0 {
		if _, err := vault.SwapXToY(dx, price); err != nil {
			return 0, 0, err
		}
	}
	if dy > 0 {
		if _, err := vault.SwapYToX(dy, price); err != nil {
			return 0, 0, err
		}
	}
	return aligner.AmountsAfterOptimalSwap(price, x, y, vault.SwapFee())
}

func checkPrice(price float64) error {
	if !(price > 0) || math.IsInf(price, 1) || math.IsNaN(price) {
		return fmt.Errorf("%w: price=%v", amm.ErrInvalidPrice, price)
	}
	return nil
}
