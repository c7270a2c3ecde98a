package domain

import "fmt"

// Fee is a pool fee tier in hundredths of a basis point, matching the
// on-chain encoding (500 = 0.05%).
type Fee int

const (
	FeeLowest Fee = 100
	FeeLow    Fee = 500
	FeeMiddle Fee = 3000
	FeeHigh   Fee = 10000
)

// Percent returns the fee as a percentage (500 -> 0.05).
func (f Fee) Percent() float64 {
	return float64(f) / 10000
}

// Fraction returns the fee as a plain fraction (500 -> 0.0005).
func (f Fee) Fraction() float64 {
	return f.Percent() / 100
}

// Spacing returns the tick spacing enforced for this fee tier.
func (f Fee) Spacing() int {
	switch f {
	case FeeLowest:
		return 1
	case FeeLow:
		return 10
	case FeeMiddle:
		return 60
	case FeeHigh:
		return 200
	default:
		return 0
	}
}

// Valid reports whether f is a known fee tier.
func (f Fee) Valid() bool {
	return f.Spacing() != 0
}

// Token describes one side of a pool pair.
type Token struct {
	Symbol   string // display symbol (WETH, USDC, ...)
	Address  string // contract address, lowercase hex
	Decimals int    // on-chain decimals
}

// Pool describes one concentrated-liquidity pool. Token0/Token1 follow the
// on-chain ordering; prices produced from this pool are token1 per token0
// after decimal scaling.
type Pool struct {
	Address string // pool contract address, lowercase hex
	Token0  Token
	Token1  Token
	Fee     Fee
}

// Name returns a human-readable pool identifier.
func (p Pool) Name() string {
	return fmt.Sprintf("%s/%s-%d", p.Token0.Symbol, p.Token1.Symbol, p.Fee)
}

// DecimalsDiff returns token0 decimals minus token1 decimals, the exponent
// used when rescaling raw on-chain prices into human units.
func (p Pool) DecimalsDiff() int {
	return p.Token0.Decimals - p.Token1.Decimals
}

// LiquidityDecimals returns the exponent used when rescaling raw on-chain
// liquidity, the mean of both token decimals.
func (p Pool) LiquidityDecimals() float64 {
	return float64(p.Token0.Decimals+p.Token1.Decimals) / 2
}
