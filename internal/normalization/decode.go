// Package normalization turns raw pool rows (CSV exports or decoded chain
// logs) into backtest-ready events: amounts scaled to token units, prices
// decoded from their on-chain encodings, streams merged into replay order.
package normalization

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// tickBase is the Uniswap V3 log-price base.
const tickBase = 1.0001

// two192 is the sqrtPriceX96 denominator, 2^192.
var two192 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 192), 0)

// DecodeSqrtPriceX96 decodes an on-chain sqrtPriceX96 value into a pool
// price in display units: price = x96^2 / (2^192 / 10^decimalsDiff).
// The squaring runs in arbitrary precision; only the final result is
// rounded to float64.
func DecodeSqrtPriceX96(s string, decimalsDiff int) (float64, error) {
	x96, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse sqrt_price_x96 %q: %w", s, err)
	}
	if x96.Sign() <= 0 {
		return 0, fmt.Errorf("sqrt_price_x96 %q is not positive", s)
	}

	// x96^2 * 10^decimalsDiff / 2^192, exact until the final division.
	scaled := x96.Mul(x96).Mul(decimal.New(1, int32(decimalsDiff)))
	price, _ := scaled.DivRound(two192, 36).Float64()
	return price, nil
}

// TickDiff is the tick offset that converts a raw on-chain tick to display
// units: trunc(decimalsDiff * log_1.0001(10)).
func TickDiff(decimalsDiff int) int {
	return int(math.Trunc(float64(decimalsDiff) * math.Log(10) / math.Log(tickBase)))
}

// TickToPrice converts a display-unit tick to a price, 1.0001^tick.
func TickToPrice(tick int) float64 {
	return math.Pow(tickBase, float64(tick))
}

// PriceToTick converts a price to the display-unit tick holding it,
// trunc(log_1.0001(price)).
func PriceToTick(price float64) int {
	return int(math.Trunc(math.Log(price) / math.Log(tickBase)))
}
