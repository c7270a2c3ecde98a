package domain

// Strategy type identifiers accepted by the strategy factory.
const (
	StrategyTypeHold          = "HOLD"
	StrategyTypePassiveRange  = "PASSIVE_RANGE"
	StrategyTypeAddressReplay = "ADDRESS_REPLAY"
)

// StrategyConfig carries the parameters needed to construct a strategy.
// Pointer fields are required only for the strategy types that use them;
// the factory validates per type.
type StrategyConfig struct {
	StrategyType string `json:"strategy_type"`

	// Shared economics.
	SwapFee       *float64 `json:"swap_fee,omitempty"`       // vault swap fee fraction
	FeePercent    *float64 `json:"fee_percent,omitempty"`    // pool fee accrual fraction
	OperationCost *float64 `json:"operation_cost,omitempty"` // fixed per-operation cost

	// Initial vault funding.
	InitialX *float64 `json:"initial_x,omitempty"`
	InitialY *float64 `json:"initial_y,omitempty"`

	// HOLD parameters.
	XInterest *float64 `json:"x_interest,omitempty"` // daily compounding rate on x
	YInterest *float64 `json:"y_interest,omitempty"` // daily compounding rate on y

	// PASSIVE_RANGE parameters.
	LowerPrice *float64 `json:"lower_price,omitempty"`
	UpperPrice *float64 `json:"upper_price,omitempty"`

	// ADDRESS_REPLAY parameters.
	Address      *string `json:"address,omitempty"`       // owner address to replay
	DecimalsDiff *int    `json:"decimals_diff,omitempty"` // token0 minus token1 decimals
}
