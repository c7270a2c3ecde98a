package strategy

import (
	"errors"
	"fmt"

	"amm-strategy-lab/internal/domain"
)

// Factory errors.
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrMissingParameter    = errors.New("missing strategy parameter")
)

// FromConfig constructs a strategy from its serialized configuration.
// Parameters a strategy type requires must be present; optional economics
// default to zero.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeHold:
		return NewHoldStrategy(HoldConfig{
			InitialX:  floatOrZero(cfg.InitialX),
			InitialY:  floatOrZero(cfg.InitialY),
			XInterest: floatOrZero(cfg.XInterest),
			YInterest: floatOrZero(cfg.YInterest),
		}), nil

	case domain.StrategyTypePassiveRange:
		if cfg.LowerPrice == nil {
			return nil, fmt.Errorf("%w: lower_price", ErrMissingParameter)
		}
		if cfg.UpperPrice == nil {
			return nil, fmt.Errorf("%w: upper_price", ErrMissingParameter)
		}
		if cfg.FeePercent == nil {
			return nil, fmt.Errorf("%w: fee_percent", ErrMissingParameter)
		}
		return NewPassiveRangeStrategy(PassiveRangeConfig{
			LowerPrice:    *cfg.LowerPrice,
			UpperPrice:    *cfg.UpperPrice,
			FeePercent:    *cfg.FeePercent,
			SwapFee:       floatOrZero(cfg.SwapFee),
			OperationCost: floatOrZero(cfg.OperationCost),
			InitialX:      floatOrZero(cfg.InitialX),
			InitialY:      floatOrZero(cfg.InitialY),
		}), nil

	case domain.StrategyTypeAddressReplay:
		if cfg.Address == nil || *cfg.Address == "" {
			return nil, fmt.Errorf("%w: address", ErrMissingParameter)
		}
		if cfg.FeePercent == nil {
			return nil, fmt.Errorf("%w: fee_percent", ErrMissingParameter)
		}
		var decimalsDiff int
		if cfg.DecimalsDiff != nil {
			decimalsDiff = *cfg.DecimalsDiff
		}
		return NewAddressReplayStrategy(AddressReplayConfig{
			Address:       *cfg.Address,
			FeePercent:    *cfg.FeePercent,
			SwapFee:       floatOrZero(cfg.SwapFee),
			OperationCost: floatOrZero(cfg.OperationCost),
			DecimalsDiff:  decimalsDiff,
			InitialX:      floatOrZero(cfg.InitialX),
			InitialY:      floatOrZero(cfg.InitialY),
		}), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.StrategyType)
	}
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
