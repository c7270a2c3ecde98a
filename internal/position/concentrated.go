package position

import (
	"errors"
	"fmt"
	"time"

	"amm-strategy-lab/internal/amm"
	"amm-strategy-lab/internal/domain"
)

// Interval position invariant violations.
var (
	ErrMintNotOptimal        = errors.New("deposit is not optimal for the interval")
	ErrInsufficientLiquidity = errors.New("burn exceeds position liquidity")
	ErrNegativeFee           = errors.New("negative fee computed")
)

// ConcentratedConfig parametrizes an interval stake.
type ConcentratedConfig struct {
	Name       string
	LowerPrice float64
	UpperPrice float64
	FeePercent float64 // share of the modeled volume accrued as fees
	MintCost   float64 // fixed cost accrued per mint or burn, in Y units
}

// ConcentratedPosition is liquidity staked on one price interval. Besides
// the staked liquidity it tracks a custody baseline (what simply holding
// every deposit would be worth) for impermanent-loss accounting, uncollected
// fees per token, and the loss already locked in by partial burns.
type ConcentratedPosition struct {
	name    string
	aligner *amm.LiquidityAligner

	feePercent float64
	mintCost   float64

	liquidity float64

	xHold float64
	yHold float64

	feesX float64
	feesY float64

	realizedLossToX float64
	realizedLossToY float64

	totalMintCosts float64
}

var _ Position = (*ConcentratedPosition)(nil)

// NewConcentratedPosition creates an empty stake on [LowerPrice, UpperPrice].
func NewConcentratedPosition(cfg ConcentratedConfig) (*ConcentratedPosition, error) {
	aligner, err := amm.NewLiquidityAligner(cfg.LowerPrice, cfg.UpperPrice)
	if err != nil {
		return nil, err
	}
	if cfg.FeePercent < 0 || cfg.FeePercent > 1 {
		return nil, fmt.Errorf("%w: fee percent=%v", amm.ErrInvalidSwapFee, cfg.FeePercent)
	}
	if cfg.MintCost < 0 {
		return nil, fmt.Errorf("%w: mint cost=%v", amm.ErrNegativeAmount, cfg.MintCost)
	}
	return &ConcentratedPosition{
		name:       cfg.Name,
		aligner:    aligner,
		feePercent: cfg.FeePercent,
		mintCost:   cfg.MintCost,
	}, nil
}

// Name returns the position's unique name.
func (p *ConcentratedPosition) Name() string { return p.name }

// Rename changes the position's name.
func (p *ConcentratedPosition) Rename(newName string) { p.name = newName }

// Liquidity returns the currently staked liquidity.
func (p *ConcentratedPosition) Liquidity() float64 { return p.liquidity }

// LowerPrice returns the interval's lower bound.
func (p *ConcentratedPosition) LowerPrice() float64 { return p.aligner.LowerPrice() }

// UpperPrice returns the interval's upper bound.
func (p *ConcentratedPosition) UpperPrice() float64 { return p.aligner.UpperPrice() }

// Mint stakes (x, y) at price. The deposit must already be optimal for the
// interval; on failure the position is untouched. The minted amounts also
// raise the custody baseline, and the fixed operation cost accrues.
func (p *ConcentratedPosition) Mint(x, y, price float64) error {
	ok, liqX, liqY, err := p.aligner.CheckIsOptimal(price, x, y)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: x=%v y=%v liqX=%v liqY=%v interval=[%v, %v] price=%v",
			ErrMintNotOptimal, x, y, liqX, liqY, p.LowerPrice(), p.UpperPrice(), price)
	}
	liq, err := p.aligner.XYToLiquidity(price, x, y)
	if err != nil {
		return err
	}
	p.liquidity += liq
	p.xHold += x
	p.yHold += y
	p.totalMintCosts += p.mintCost
	return nil
}

// MintExact stakes a liquidity figure observed on chain together with the
// deposited amounts, skipping the optimality precondition and the operation
// cost. Replayed mints carry whatever shape their owner used, so alignment
// cannot be demanded of them.
func (p *ConcentratedPosition) MintExact(x, y, liquidity float64) error {
	if x < 0 || y < 0 {
		return fmt.Errorf("%w: x=%v y=%v", amm.ErrNegativeAmount, x, y)
	}
	if liquidity < 0 {
		return fmt.Errorf("%w: liquidity=%v", amm.ErrNegativeLiquidity, liquidity)
	}
	p.liquidity += liquidity
	p.xHold += x
	p.yHold += y
	return nil
}

// Burn releases liq of the staked liquidity at price and returns the token
// amounts freed. The impermanent loss attributable to the burned fraction is
// moved from unrealized to realized, and the custody baseline shrinks by the
// same fraction.
func (p *ConcentratedPosition) Burn(liq, price float64) (float64, float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, 0, err
	}
	if liq <= 0 || liq > p.liquidity {
		return 0, 0, fmt.Errorf("%w: liq=%v, staked=%v", ErrInsufficientLiquidity, liq, p.liquidity)
	}

	ilX0, err := p.ImpermanentLossToX(price)
	if err != nil {
		return 0, 0, err
	}
	ilY0, err := p.ImpermanentLossToY(price)
	if err != nil {
		return 0, 0, err
	}

	xOut, yOut, err := p.aligner.LiquidityToXY(price, liq)
	if err != nil {
		return 0, 0, err
	}

	fraction := liq / p.liquidity
	p.xHold -= p.xHold * fraction
	p.yHold -= p.yHold * fraction
	p.liquidity -= liq

	ilX1, err := p.ImpermanentLossToX(price)
	if err != nil {
		return 0, 0, err
	}
	ilY1, err := p.ImpermanentLossToY(price)
	if err != nil {
		return 0, 0, err
	}
	p.realizedLossToX += ilX0 - ilX1
	p.realizedLossToY += ilY0 - ilY1

	p.totalMintCosts += p.mintCost
	return xOut, yOut, nil
}

// Withdraw burns all staked liquidity and collects fees in one step.
func (p *ConcentratedPosition) Withdraw(price float64) (float64, float64, error) {
	xOut, yOut, err := p.Burn(p.liquidity, price)
	if err != nil {
		return 0, 0, err
	}
	feesX, feesY := p.CollectFees()
	return xOut + feesX, yOut + feesY, nil
}

// ChargeFees models the fee income earned between two observed prices. The
// position's amounts are compared at both prices (out-of-range prices
// collapse to the interval bounds): whichever token the move produced more
// of earns feePercent of the difference. A negative computed fee means the
// price pair is inconsistent with the amounts and is rejected.
func (p *ConcentratedPosition) ChargeFees(priceBefore, priceAfter float64) error {
	x0, y0, err := p.ToXY(priceBefore)
	if err != nil {
		return err
	}
	x1, y1, err := p.ToXY(priceAfter)
	if err != nil {
		return err
	}
	if y0 >= y1 {
		feeX := (x1 - x0) * p.feePercent
		if feeX < 0 {
			return fmt.Errorf("%w: feeX=%v before=%v after=%v", ErrNegativeFee, feeX, priceBefore, priceAfter)
		}
		p.feesX += feeX
	} else {
		feeY := (y1 - y0) * p.feePercent
		if feeY < 0 {
			return fmt.Errorf("%w: feeY=%v before=%v after=%v", ErrNegativeFee, feeY, priceBefore, priceAfter)
		}
		p.feesY += feeY
	}
	return nil
}

// CollectFees zeroes and returns the uncollected fees.
func (p *ConcentratedPosition) CollectFees() (float64, float64) {
	feesX, feesY := p.feesX, p.feesY
	p.feesX, p.feesY = 0, 0
	return feesX, feesY
}

// ImpermanentLoss returns hold minus stake separately per token.
func (p *ConcentratedPosition) ImpermanentLoss(price float64) (float64, float64, error) {
	xStake, yStake, err := p.ToXY(price)
	if err != nil {
		return 0, 0, err
	}
	return p.xHold - xStake, p.yHold - yStake, nil
}

// ImpermanentLossToX returns hold value minus stake value, in X units.
func (p *ConcentratedPosition) ImpermanentLossToX(price float64) (float64, error) {
	stake, err := p.ToX(price)
	if err != nil {
		return 0, err
	}
	hold := p.xHold + p.yHold/price
	return hold - stake, nil
}

// ImpermanentLossToY returns hold value minus stake value, in Y units.
func (p *ConcentratedPosition) ImpermanentLossToY(price float64) (float64, error) {
	stake, err := p.ToY(price)
	if err != nil {
		return 0, err
	}
	hold := p.xHold*price + p.yHold
	return hold - stake, nil
}

// ToX values the staked amounts in X units. Uncollected fees are excluded.
func (p *ConcentratedPosition) ToX(price float64) (float64, error) {
	x, y, err := p.ToXY(price)
	if err != nil {
		return 0, err
	}
	return x + y/price, nil
}

// ToY values the staked amounts in Y units. Uncollected fees are excluded.
func (p *ConcentratedPosition) ToY(price float64) (float64, error) {
	x, y, err := p.ToXY(price)
	if err != nil {
		return 0, err
	}
	return x*price + y, nil
}

// ToXY returns the token amounts currently backing the staked liquidity.
func (p *ConcentratedPosition) ToXY(price float64) (float64, float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, 0, err
	}
	return p.aligner.LiquidityToXY(price, p.liquidity)
}

// Snapshot reports values (stake plus uncollected fees), fees, impermanent
// loss (realized plus current) and accumulated operation costs under the
// position's key prefix.
func (p *ConcentratedPosition) Snapshot(ts time.Time, price float64) (*domain.Snapshot, error) {
	x, y, err := p.ToXY(price)
	if err != nil {
		return nil, err
	}
	ilX, err := p.ImpermanentLossToX(price)
	if err != nil {
		return nil, err
	}
	ilY, err := p.ImpermanentLossToY(price)
	if err != nil {
		return nil, err
	}
	snap := domain.NewSnapshot(ts, price)
	snap.Set(p.name+"_value_x", x+p.feesX)
	snap.Set(p.name+"_value_y", y+p.feesY)
	snap.Set(p.name+"_fees_x", p.feesX)
	snap.Set(p.name+"_fees_y", p.feesY)
	snap.Set(p.name+"_il_to_x", p.realizedLossToX+ilX)
	snap.Set(p.name+"_il_to_y", p.realizedLossToY+ilY)
	snap.Set(p.name+"_total_mint_costs", p.totalMintCosts)
	return snap, nil
}
