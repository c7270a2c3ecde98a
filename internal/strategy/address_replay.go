package strategy

import (
	"fmt"
	"math"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/portfolio"
	"amm-strategy-lab/internal/position"
)

// dustLiquidity is the threshold under which a replayed position is pruned.
const dustLiquidity = 10

// topUpEpsilon pads vault top-ups so a withdrawal for the exact replayed
// amount never fails on float error.
const topUpEpsilon = 1e-6

// AddressReplayConfig parametrizes a strategy that mirrors one on-chain
// address.
type AddressReplayConfig struct {
	Address       string // owner whose mints, burns and swaps are mirrored
	FeePercent    float64
	SwapFee       float64
	OperationCost float64
	DecimalsDiff  int // token0 decimals minus token1 decimals

	InitialX float64
	InitialY float64
}

// AddressReplayStrategy replays the liquidity operations of one address:
// its mints open interval positions keyed by tick bounds, its burns close
// them, its swaps move the vault balances, and every swap in the pool
// accrues fees on the open intervals. Positions drained to dust are pruned.
type AddressReplayStrategy struct {
	cfg AddressReplayConfig
}

var _ Strategy = (*AddressReplayStrategy)(nil)

// NewAddressReplayStrategy creates an address-replay strategy from cfg.
func NewAddressReplayStrategy(cfg AddressReplayConfig) *AddressReplayStrategy {
	return &AddressReplayStrategy{cfg: cfg}
}

// Name returns the strategy identifier.
func (s *AddressReplayStrategy) Name() string { return domain.StrategyTypeAddressReplay }

// Clone returns a copy with the same parameters.
func (s *AddressReplayStrategy) Clone() Strategy {
	return NewAddressReplayStrategy(s.cfg)
}

// Decide mirrors the event when its owner matches the followed address,
// charges fees on every swap, and prunes dust positions.
func (s *AddressReplayStrategy) Decide(event *domain.Event, pf *portfolio.Portfolio) (Action, error) {
	vault, err := s.vault(pf)
	if err != nil {
		return NoAction, err
	}

	action := NoAction
	if event.Owner == s.cfg.Address {
		switch event.Kind {
		case domain.EventMint:
			if err := s.replayMint(pf, vault, event); err != nil {
				return NoAction, fmt.Errorf("replay mint: %w", err)
			}
			action = ActionMint
		case domain.EventBurn:
			if err := s.replayBurn(pf, vault, event); err != nil {
				return NoAction, fmt.Errorf("replay burn: %w", err)
			}
			action = ActionBurn
		case domain.EventSwap:
			if err := s.replaySwap(vault, event); err != nil {
				return NoAction, fmt.Errorf("replay swap: %w", err)
			}
			action = ActionSwap
		}
	}

	if event.Kind == domain.EventSwap {
		priceBefore := event.PriceBefore
		if priceBefore <= 0 {
			priceBefore = event.Price
		}
		for _, pos := range pf.Positions() {
			conc, ok := pos.(*position.ConcentratedPosition)
			if !ok {
				continue
			}
			if err := conc.ChargeFees(priceBefore, event.Price); err != nil {
				return NoAction, err
			}
		}
	}

	s.pruneDust(pf)
	return action, nil
}

// vault returns the strategy's bi-currency vault, creating it on first use.
func (s *AddressReplayStrategy) vault(pf *portfolio.Portfolio) (*position.BiCurrencyPosition, error) {
	if pos, ok := pf.Get(VaultName); ok {
		vault, ok := pos.(*position.BiCurrencyPosition)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a bi-currency vault", portfolio.ErrUnknownPosition, VaultName)
		}
		return vault, nil
	}
	vault, err := position.NewBiCurrencyPosition(position.BiCurrencyConfig{
		Name:          VaultName,
		SwapFee:       s.cfg.SwapFee,
		RebalanceCost: s.cfg.OperationCost,
		X:             s.cfg.InitialX,
		Y:             s.cfg.InitialY,
	})
	if err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	pf.Append(vault)
	return vault, nil
}

// replayMint moves the minted amounts out of the vault (topping it up when
// the replayed address deployed more capital than the vault holds) into the
// interval position for the event's tick bounds, opening it on demand.
func (s *AddressReplayStrategy) replayMint(pf *portfolio.Portfolio, vault *position.BiCurrencyPosition, event *domain.Event) error {
	x, y := event.Amount0, event.Amount1
	heldX, heldY := vault.Balances()
	if heldX < x {
		if err := vault.Deposit(x-heldX+topUpEpsilon, 0); err != nil {
			return err
		}
	}
	if heldY < y {
		if err := vault.Deposit(0, y-heldY+topUpEpsilon); err != nil {
			return err
		}
	}
	if _, _, err := vault.Withdraw(x, y); err != nil {
		return err
	}

	name := intervalName(event.TickLower, event.TickUpper)
	pos, ok := pf.Get(name)
	if !ok {
		conc, err := position.NewConcentratedPosition(position.ConcentratedConfig{
			Name:       name,
			LowerPrice: tickToPrice(event.TickLower, s.cfg.DecimalsDiff),
			UpperPrice: tickToPrice(event.TickUpper, s.cfg.DecimalsDiff),
			FeePercent: s.cfg.FeePercent,
			MintCost:   s.cfg.OperationCost,
		})
		if err != nil {
			return err
		}
		pf.Append(conc)
		pos = conc
	}
	conc, ok := pos.(*position.ConcentratedPosition)
	if !ok {
		return fmt.Errorf("%w: %q is not an interval position", portfolio.ErrUnknownPosition, name)
	}
	return conc.MintExact(x, y, event.Liquidity)
}

// replayBurn deposits the released amounts to the vault and burns the
// event's liquidity from the matching interval position. A burn for more
// than the position holds (observed when partial history is replayed)
// closes the position instead.
func (s *AddressReplayStrategy) replayBurn(pf *portfolio.Portfolio, vault *position.BiCurrencyPosition, event *domain.Event) error {
	name := intervalName(event.TickLower, event.TickUpper)
	pos, ok := pf.Get(name)
	if !ok {
		// The address burned a position minted before the replay window.
		return vault.Deposit(event.Amount0, event.Amount1)
	}
	conc, ok := pos.(*position.ConcentratedPosition)
	if !ok {
		return fmt.Errorf("%w: %q is not an interval position", portfolio.ErrUnknownPosition, name)
	}
	if err := vault.Deposit(event.Amount0, event.Amount1); err != nil {
		return err
	}
	if event.Liquidity <= 0 || conc.Liquidity() <= 0 {
		return nil
	}
	liq := math.Min(event.Liquidity, conc.Liquidity())
	_, _, err := conc.Burn(liq, event.Price)
	return err
}

// replaySwap mirrors the address's swap through the vault: the sold side
// leaves the vault, the bought side (the negative amount) enters it.
func (s *AddressReplayStrategy) replaySwap(vault *position.BiCurrencyPosition, event *domain.Event) error {
	heldX, heldY := vault.Balances()
	if event.Amount0 > 0 {
		if heldX < event.Amount0 {
			if err := vault.Deposit(event.Amount0-heldX+topUpEpsilon, 0); err != nil {
				return err
			}
		}
		if _, _, err := vault.Withdraw(event.Amount0, 0); err != nil {
			return err
		}
		return vault.Deposit(0, -event.Amount1)
	}
	if heldY < event.Amount1 {
		if err := vault.Deposit(0, event.Amount1-heldY+topUpEpsilon); err != nil {
			return err
		}
	}
	if _, _, err := vault.Withdraw(0, event.Amount1); err != nil {
		return err
	}
	return vault.Deposit(-event.Amount0, 0)
}

// pruneDust removes interval positions whose liquidity fell under the dust
// threshold.
func (s *AddressReplayStrategy) pruneDust(pf *portfolio.Portfolio) {
	for _, name := range pf.Names() {
		pos, ok := pf.Get(name)
		if !ok {
			continue
		}
		conc, ok := pos.(*position.ConcentratedPosition)
		if !ok {
			continue
		}
		if conc.Liquidity() < dustLiquidity {
			_ = pf.Remove(name)
		}
	}
}

// intervalName keys a replayed position by its tick bounds.
func intervalName(tickLower, tickUpper int) string {
	return fmt.Sprintf("pos_%d_%d", tickLower, tickUpper)
}

// tickToPrice converts the integer log-price encoding to a decimal-scaled
// price: 1.0001^tick rescaled by the pool's decimal difference.
func tickToPrice(tick, decimalsDiff int) float64 {
	return math.Pow(1.0001, float64(tick)) * math.Pow(10, float64(decimalsDiff))
}
