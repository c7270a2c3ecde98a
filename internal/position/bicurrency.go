package position

import (
	"errors"
	"fmt"
	"math"
	"time"

	"amm-strategy-lab/internal/amm"
	"amm-strategy-lab/internal/domain"
)

// Vault invariant violations.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOutOfOrderDate      = errors.New("interest date not after previous gain")
	ErrInvalidFractions    = errors.New("fractions must be in [0, 1] and sum to 1")
)

// fractionTolerance absorbs float error in rebalance target fractions.
const fractionTolerance = 1e-6

// BiCurrencyConfig parametrizes a two-token vault.
type BiCurrencyConfig struct {
	Name          string
	SwapFee       float64 // fraction of every swap lost to the pool, in [0, 1]
	RebalanceCost float64 // fixed cost accrued per executed swap, in Y units
	X             float64 // initial X balance
	Y             float64 // initial Y balance
	XInterest     float64 // daily compounding yield on the X balance
	YInterest     float64 // daily compounding yield on the Y balance
}

// BiCurrencyPosition is a vault holding two tokens outside any AMM interval.
// It executes swaps at an externally supplied price, compounds optional
// daily interest, and accumulates the fixed cost of every swap it performs.
type BiCurrencyPosition struct {
	name string

	x float64
	y float64

	swapFee       float64
	rebalanceCost float64
	xInterest     float64
	yInterest     float64

	totalRebalanceCosts float64
	lastInterestDate    time.Time
}

var _ Position = (*BiCurrencyPosition)(nil)

// NewBiCurrencyPosition creates a vault from cfg.
func NewBiCurrencyPosition(cfg BiCurrencyConfig) (*BiCurrencyPosition, error) {
	if cfg.X < 0 || cfg.Y < 0 {
		return nil, fmt.Errorf("%w: x=%v y=%v", amm.ErrNegativeAmount, cfg.X, cfg.Y)
	}
	if cfg.SwapFee < 0 || cfg.SwapFee > 1 {
		return nil, fmt.Errorf("%w: fee=%v", amm.ErrInvalidSwapFee, cfg.SwapFee)
	}
	if cfg.RebalanceCost < 0 {
		return nil, fmt.Errorf("%w: rebalance cost=%v", amm.ErrNegativeAmount, cfg.RebalanceCost)
	}
	if cfg.XInterest < 0 || cfg.YInterest < 0 {
		return nil, fmt.Errorf("%w: xInterest=%v yInterest=%v", amm.ErrNegativeAmount, cfg.XInterest, cfg.YInterest)
	}
	return &BiCurrencyPosition{
		name:          cfg.Name,
		x:             cfg.X,
		y:             cfg.Y,
		swapFee:       cfg.SwapFee,
		rebalanceCost: cfg.RebalanceCost,
		xInterest:     cfg.XInterest,
		yInterest:     cfg.YInterest,
	}, nil
}

// Name returns the vault's unique name.
func (p *BiCurrencyPosition) Name() string { return p.name }

// Rename changes the vault's name.
func (p *BiCurrencyPosition) Rename(newName string) { p.name = newName }

// SwapFee returns the fee fraction applied to every swap.
func (p *BiCurrencyPosition) SwapFee() float64 { return p.swapFee }

// Balances returns the raw token balances.
func (p *BiCurrencyPosition) Balances() (float64, float64) { return p.x, p.y }

// Deposit adds both tokens to the vault.
func (p *BiCurrencyPosition) Deposit(x, y float64) error {
	if x < 0 || y < 0 {
		return fmt.Errorf("%w: x=%v y=%v", amm.ErrNegativeAmount, x, y)
	}
	p.x += x
	p.y += y
	return nil
}

// Withdraw removes both tokens from the vault and echoes the amounts taken.
// Requesting more than held fails without clamping.
func (p *BiCurrencyPosition) Withdraw(x, y float64) (float64, float64, error) {
	if x < 0 || y < 0 {
		return 0, 0, fmt.Errorf("%w: x=%v y=%v", amm.ErrNegativeAmount, x, y)
	}
	if x > p.x || y > p.y {
		return 0, 0, fmt.Errorf("%w: requested (%v, %v), held (%v, %v)", ErrInsufficientBalance, x, y, p.x, p.y)
	}
	p.x -= x
	p.y -= y
	return x, y, nil
}

// WithdrawFraction removes the same fraction of both balances.
func (p *BiCurrencyPosition) WithdrawFraction(fraction float64) (float64, float64, error) {
	if fraction < 0 || fraction > 1 {
		return 0, 0, fmt.Errorf("%w: fraction=%v", ErrInvalidFractions, fraction)
	}
	return p.Withdraw(p.x*fraction, p.y*fraction)
}

// SwapXToY sells dx of X at price, crediting Y at price scaled by
// (1 - swapFee), and accrues the fixed swap cost. Returns the Y credited.
func (p *BiCurrencyPosition) SwapXToY(dx, price float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	if dx < 0 {
		return 0, fmt.Errorf("%w: dx=%v", amm.ErrNegativeAmount, dx)
	}
	if dx > p.x {
		return 0, fmt.Errorf("%w: swap dx=%v, held x=%v", ErrInsufficientBalance, dx, p.x)
	}
	dy := price * (1 - p.swapFee) * dx
	p.x -= dx
	p.y += dy
	p.totalRebalanceCosts += p.rebalanceCost
	return dy, nil
}

// SwapYToX sells dy of Y at price, crediting X at (1 - swapFee) / price, and
// accrues the fixed swap cost. Returns the X credited.
func (p *BiCurrencyPosition) SwapYToX(dy, price float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	if dy < 0 {
		return 0, fmt.Errorf("%w: dy=%v", amm.ErrNegativeAmount, dy)
	}
	if dy > p.y {
		return 0, fmt.Errorf("%w: swap dy=%v, held y=%v", ErrInsufficientBalance, dy, p.y)
	}
	dx := (1 - p.swapFee) * dy / price
	p.y -= dy
	p.x += dx
	p.totalRebalanceCosts += p.rebalanceCost
	return dx, nil
}

// Rebalance executes at most one swap so that the vault's value splits into
// xFraction and yFraction at price. Reports whether a swap happened.
func (p *BiCurrencyPosition) Rebalance(xFraction, yFraction, price float64) (bool, error) {
	if err := checkPrice(price); err != nil {
		return false, err
	}
	if xFraction < 0 || xFraction > 1 || yFraction < 0 || yFraction > 1 ||
		math.Abs(xFraction+yFraction-1) > fractionTolerance {
		return false, fmt.Errorf("%w: x=%v y=%v", ErrInvalidFractions, xFraction, yFraction)
	}
	if p.x <= fractionTolerance && p.y <= fractionTolerance {
		return false, fmt.Errorf("%w: vault is empty, x=%v y=%v", ErrInsufficientBalance, p.x, p.y)
	}
	dv := yFraction*price*p.x - xFraction*p.y
	switch {
	case dv > 0:
		if _, err := p.SwapXToY(dv/price, price); err != nil {
			return false, err
		}
		return true, nil
	case dv < 0:
		if _, err := p.SwapYToX(-dv, price); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// InterestGain compounds both balances once per whole 24h period elapsed
// since the previous gain. The first call only anchors the date; a call
// dated at or before the previous gain fails.
func (p *BiCurrencyPosition) InterestGain(date time.Time) error {
	if !p.lastInterestDate.IsZero() {
		if !date.After(p.lastInterestDate) {
			return fmt.Errorf("%w: date=%s, last=%s",
				ErrOutOfOrderDate, date.Format(time.RFC3339), p.lastInterestDate.Format(time.RFC3339))
		}
		days := float64(date.Sub(p.lastInterestDate) / (24 * time.Hour))
		p.x *= math.Pow(1+p.xInterest, days)
		p.y *= math.Pow(1+p.yInterest, days)
	}
	p.lastInterestDate = date
	return nil
}

// ToX values the whole vault in X units.
func (p *BiCurrencyPosition) ToX(price float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	return p.x + p.y/price, nil
}

// ToY values the whole vault in Y units.
func (p *BiCurrencyPosition) ToY(price float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	return p.x*price + p.y, nil
}

// ToXY returns the raw balances.
func (p *BiCurrencyPosition) ToXY(price float64) (float64, float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, 0, err
	}
	return p.x, p.y, nil
}

// Snapshot reports the balances and the accumulated swap costs under the
// vault's key prefix.
func (p *BiCurrencyPosition) Snapshot(ts time.Time, price float64) (*domain.Snapshot, error) {
	if err := checkPrice(price); err != nil {
		return nil, err
	}
	snap := domain.NewSnapshot(ts, price)
	snap.Set(p.name+"_value_x", p.x)
	snap.Set(p.name+"_value_y", p.y)
	snap.Set(p.name+"_total_rebalance_costs", p.totalRebalanceCosts)
	return snap, nil
}
