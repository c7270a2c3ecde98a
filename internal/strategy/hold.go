package strategy

import (
	"fmt"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/portfolio"
	"amm-strategy-lab/internal/position"
)

// VaultName is the portfolio slot every built-in strategy keeps its
// bi-currency vault under.
const VaultName = "main_vault"

// HoldConfig parametrizes a buy-and-hold strategy.
type HoldConfig struct {
	InitialX  float64 // vault funding in X
	InitialY  float64 // vault funding in Y
	XInterest float64 // daily compounding yield on the X balance
	YInterest float64 // daily compounding yield on the Y balance
}

// HoldStrategy funds a vault on the first event and then only compounds
// interest, once per new calendar day. It is the passive baseline other
// strategies are measured against.
type HoldStrategy struct {
	cfg HoldConfig

	prevGainDate time.Time
}

var _ Strategy = (*HoldStrategy)(nil)

// NewHoldStrategy creates a hold strategy from cfg.
func NewHoldStrategy(cfg HoldConfig) *HoldStrategy {
	return &HoldStrategy{cfg: cfg}
}

// Name returns the strategy identifier.
func (s *HoldStrategy) Name() string { return domain.StrategyTypeHold }

// Clone returns a copy with the same parameters and no replay state.
func (s *HoldStrategy) Clone() Strategy {
	return NewHoldStrategy(s.cfg)
}

// Decide funds the vault on the first event, then applies interest on every
// tick that opens a new calendar day.
func (s *HoldStrategy) Decide(event *domain.Event, pf *portfolio.Portfolio) (Action, error) {
	date := event.Timestamp.UTC().Truncate(24 * time.Hour)

	if _, ok := pf.Get(VaultName); !ok {
		vault, err := position.NewBiCurrencyPosition(position.BiCurrencyConfig{
			Name:      VaultName,
			X:         s.cfg.InitialX,
			Y:         s.cfg.InitialY,
			XInterest: s.cfg.XInterest,
			YInterest: s.cfg.YInterest,
		})
		if err != nil {
			return NoAction, fmt.Errorf("create vault: %w", err)
		}
		// The first gain call only anchors the date so later days
		// compound from the funding tick.
		if err := vault.InterestGain(date); err != nil {
			return NoAction, fmt.Errorf("anchor interest date: %w", err)
		}
		pf.Append(vault)
		s.prevGainDate = date
		return ActionMint, nil
	}

	if date.After(s.prevGainDate) {
		pos, _ := pf.Get(VaultName)
		vault, ok := pos.(*position.BiCurrencyPosition)
		if !ok {
			return NoAction, fmt.Errorf("%w: %q is not a bi-currency vault", portfolio.ErrUnknownPosition, VaultName)
		}
		if err := vault.InterestGain(date); err != nil {
			return NoAction, fmt.Errorf("interest gain: %w", err)
		}
		s.prevGainDate = date
	}
	return NoAction, nil
}
