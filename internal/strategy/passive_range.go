package strategy

import (
	"fmt"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/portfolio"
	"amm-strategy-lab/internal/position"
)

// PassiveRangeConfig parametrizes a single-interval passive LP strategy.
type PassiveRangeConfig struct {
	LowerPrice    float64
	UpperPrice    float64
	FeePercent    float64 // pool fee accrual fraction
	SwapFee       float64 // vault swap fee fraction
	OperationCost float64 // fixed cost per mint, burn or swap, in Y units

	// Vault funding. Zero values fund one Y unit split evenly: x = 1/price,
	// y = 1, matching one unit of Y-denominated capital.
	InitialX float64
	InitialY float64
}

// PassiveRangeStrategy mints one concentrated position on its first event
// and then only accrues fees: the classic "mint one interval and wait" LP.
type PassiveRangeStrategy struct {
	cfg PassiveRangeConfig
}

var _ Strategy = (*PassiveRangeStrategy)(nil)

// NewPassiveRangeStrategy creates a passive LP strategy from cfg.
func NewPassiveRangeStrategy(cfg PassiveRangeConfig) *PassiveRangeStrategy {
	return &PassiveRangeStrategy{cfg: cfg}
}

// Name returns the strategy identifier.
func (s *PassiveRangeStrategy) Name() string { return domain.StrategyTypePassiveRange }

// Clone returns a copy with the same parameters.
func (s *PassiveRangeStrategy) Clone() Strategy {
	return NewPassiveRangeStrategy(s.cfg)
}

// positionName is the slot the single interval position lives under.
const positionName = "passive_range"

// Decide mints the position on the first event, then charges fees over the
// (price before, price) span of every later event.
func (s *PassiveRangeStrategy) Decide(event *domain.Event, pf *portfolio.Portfolio) (Action, error) {
	price := event.Price
	priceBefore := event.PriceBefore
	if priceBefore <= 0 {
		priceBefore = price
	}

	if pf.Len() == 0 {
		if err := s.openPosition(pf, price); err != nil {
			return NoAction, fmt.Errorf("open position: %w", err)
		}
		return ActionMint, nil
	}

	if pos, ok := pf.Get(positionName); ok {
		conc, ok := pos.(*position.ConcentratedPosition)
		if !ok {
			return NoAction, fmt.Errorf("%w: %q is not an interval position", portfolio.ErrUnknownPosition, positionName)
		}
		if err := conc.ChargeFees(priceBefore, price); err != nil {
			return NoAction, err
		}
	}
	return NoAction, nil
}

// openPosition funds the vault, swaps its balances to the optimal mix for
// the interval, and mints everything into the new position.
func (s *PassiveRangeStrategy) openPosition(pf *portfolio.Portfolio, price float64) error {
	x, y := s.cfg.InitialX, s.cfg.InitialY
	if x == 0 && y == 0 {
		x, y = 1/price, 1
	}

	vault, err := position.NewBiCurrencyPosition(position.BiCurrencyConfig{
		Name:          VaultName,
		SwapFee:       s.cfg.SwapFee,
		RebalanceCost: s.cfg.OperationCost,
		X:             x,
		Y:             y,
	})
	if err != nil {
		return err
	}
	pos, err := position.NewConcentratedPosition(position.ConcentratedConfig{
		Name:       positionName,
		LowerPrice: s.cfg.LowerPrice,
		UpperPrice: s.cfg.UpperPrice,
		FeePercent: s.cfg.FeePercent,
		MintCost:   s.cfg.OperationCost,
	})
	if err != nil {
		return err
	}
	pf.Append(vault)
	pf.Append(pos)

	xMint, yMint, err := pf.SwapToOptimal(VaultName, x, y, price, s.cfg.LowerPrice, s.cfg.UpperPrice)
	if err != nil {
		return err
	}
	if _, _, err := vault.Withdraw(xMint, yMint); err != nil {
		return err
	}
	return pos.Mint(xMint, yMint, price)
}
