// Package amm implements the closed-form math of a constant-liquidity
// bounded-interval market maker. A LiquidityAligner converts between token
// amounts, prices and liquidity units for one interval [lowerPrice,
// upperPrice], where price is units of Y per unit of X.
//
// The conversions follow the concentrated-liquidity formulas on square-root
// prices: with a = sqrt(lower), b = sqrt(upper) and s = sqrt(price),
//
//	liquidity from x: L = x * a*b / (b - a)
//	liquidity from y: L = y / (b - a)
//	x from liquidity: x = L * (b - a) / (a*b)
//	y from liquidity: y = L * (b - a)
//
// applied to the sub-interval still ahead of the current price. Prices at or
// beyond the interval bounds take explicit branches returning the exact
// limiting values 0 or +Inf, never approximations.
package amm

import (
	"errors"
	"fmt"
	"math"
)

// OptimalityTolerance bounds how far the two one-sided liquidity conversions
// may diverge for a deposit to still count as optimal.
const OptimalityTolerance = 1e-6

// Aligner invariant violations.
var (
	ErrInvalidInterval   = errors.New("interval bounds must satisfy 0 < lower < upper")
	ErrInvalidPrice      = errors.New("price must be positive")
	ErrNegativeAmount    = errors.New("token amount must be non-negative")
	ErrNegativeLiquidity = errors.New("liquidity must be non-negative")
	ErrInvalidSwapFee    = errors.New("swap fee must be in [0, 1]")
)

// LiquidityAligner is an immutable value object holding one price interval.
// All methods are pure; the aligner carries no position state.
type LiquidityAligner struct {
	lowerPrice float64
	upperPrice float64
	sqrtLower  float64
	sqrtUpper  float64
}

// NewLiquidityAligner creates an aligner over [lowerPrice, upperPrice].
func NewLiquidityAligner(lowerPrice, upperPrice float64) (*LiquidityAligner, error) {
	if !(lowerPrice > 0 && lowerPrice < upperPrice) {
		return nil, fmt.Errorf("%w: lower=%v upper=%v", ErrInvalidInterval, lowerPrice, upperPrice)
	}
	return &LiquidityAligner{
		lowerPrice: lowerPrice,
		upperPrice: upperPrice,
		sqrtLower:  math.Sqrt(lowerPrice),
		sqrtUpper:  math.Sqrt(upperPrice),
	}, nil
}

// LowerPrice returns the interval's lower bound.
func (a *LiquidityAligner) LowerPrice() float64 { return a.lowerPrice }

// UpperPrice returns the interval's upper bound.
func (a *LiquidityAligner) UpperPrice() float64 { return a.upperPrice }

// RealPrice returns the Y/X ratio of an exactly optimal deposit at price.
// It is 0 at or below the lower bound (all X), +Inf at or above the upper
// bound (all Y).
func (a *LiquidityAligner) RealPrice(price float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	sp := math.Sqrt(price)
	switch {
	case a.sqrtUpper <= sp:
		return math.Inf(1), nil
	case a.sqrtLower >= sp:
		return 0, nil
	default:
		return (sp - a.sqrtLower) * a.sqrtUpper * sp / (a.sqrtUpper - sp), nil
	}
}

// XToLiquidity converts a one-sided X deposit to liquidity units. X only
// covers the part of the interval above the current price, so the result is
// 0 once price reaches the upper bound.
func (a *LiquidityAligner) XToLiquidity(price, x float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	if x < 0 {
		return 0, fmt.Errorf("%w: x=%v", ErrNegativeAmount, x)
	}
	sp := math.Sqrt(price)
	if sp >= a.sqrtUpper {
		return 0, nil
	}
	left := math.Max(sp, a.sqrtLower)
	return xToLiq(left, a.sqrtUpper, x), nil
}

// YToLiquidity converts a one-sided Y deposit to liquidity units. Y only
// covers the part of the interval below the current price, so the result is
// 0 once price falls to the lower bound.
func (a *LiquidityAligner) YToLiquidity(price, y float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	if y < 0 {
		return 0, fmt.Errorf("%w: y=%v", ErrNegativeAmount, y)
	}
	sp := math.Sqrt(price)
	if sp <= a.sqrtLower {
		return 0, nil
	}
	right := math.Min(sp, a.sqrtUpper)
	return yToLiq(a.sqrtLower, right, y), nil
}

// XYToLiquidity returns the maximum liquidity mintable from (x, y) with no
// swap. Outside the interval only the surviving side counts over the full
// interval; inside, the binding side is the smaller one-sided conversion.
func (a *LiquidityAligner) XYToLiquidity(price, x, y float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	if x < 0 || y < 0 {
		return 0, fmt.Errorf("%w: x=%v y=%v", ErrNegativeAmount, x, y)
	}
	sp := math.Sqrt(price)
	switch {
	case sp <= a.sqrtLower:
		return xToLiq(a.sqrtLower, a.sqrtUpper, x), nil
	case sp >= a.sqrtUpper:
		return yToLiq(a.sqrtLower, a.sqrtUpper, y), nil
	default:
		return math.Min(
			xToLiq(sp, a.sqrtUpper, x),
			yToLiq(a.sqrtLower, sp, y),
		), nil
	}
}

// LiquidityToX returns the X amount backing liq at price.
func (a *LiquidityAligner) LiquidityToX(price, liq float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	if liq < 0 {
		return 0, fmt.Errorf("%w: liq=%v", ErrNegativeLiquidity, liq)
	}
	sp := math.Sqrt(price)
	if sp >= a.sqrtUpper {
		return 0, nil
	}
	left := math.Max(sp, a.sqrtLower)
	return liqToX(left, a.sqrtUpper, liq), nil
}

// LiquidityToY returns the Y amount backing liq at price.
func (a *LiquidityAligner) LiquidityToY(price, liq float64) (float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	if liq < 0 {
		return 0, fmt.Errorf("%w: liq=%v", ErrNegativeLiquidity, liq)
	}
	sp := math.Sqrt(price)
	if sp <= a.sqrtLower {
		return 0, nil
	}
	right := math.Min(sp, a.sqrtUpper)
	return liqToY(a.sqrtLower, right, liq), nil
}

// LiquidityToXY returns both token amounts backing liq at price.
func (a *LiquidityAligner) LiquidityToXY(price, liq float64) (float64, float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, 0, err
	}
	if liq < 0 {
		return 0, 0, fmt.Errorf("%w: liq=%v", ErrNegativeLiquidity, liq)
	}
	sp := math.Sqrt(price)
	switch {
	case sp <= a.sqrtLower:
		return liqToX(a.sqrtLower, a.sqrtUpper, liq), 0, nil
	case sp < a.sqrtUpper:
		x := liqToX(sp, a.sqrtUpper, liq)
		y := liqToY(a.sqrtLower, sp, liq)
		return x, y, nil
	default:
		return 0, liqToY(a.sqrtLower, a.sqrtUpper, liq), nil
	}
}

// CheckIsOptimal reports whether (x, y) could be minted in full with no
// leftover, along with the two one-sided liquidity conversions. Outside the
// interval the wrong-side token must be dust; inside, the conversions must
// agree within OptimalityTolerance.
func (a *LiquidityAligner) CheckIsOptimal(price, x, y float64) (bool, float64, float64, error) {
	if err := checkPrice(price); err != nil {
		return false, 0, 0, err
	}
	if x < 0 || y < 0 {
		return false, 0, 0, fmt.Errorf("%w: x=%v y=%v", ErrNegativeAmount, x, y)
	}
	sp := math.Sqrt(price)
	switch {
	case sp <= a.sqrtLower:
		liqX := xToLiq(a.sqrtLower, a.sqrtUpper, x)
		return y < OptimalityTolerance, liqX, 0, nil
	case sp >= a.sqrtUpper:
		liqY := yToLiq(a.sqrtLower, a.sqrtUpper, y)
		return x < OptimalityTolerance, 0, liqY, nil
	default:
		liqX := xToLiq(sp, a.sqrtUpper, x)
		liqY := yToLiq(a.sqrtLower, sp, y)
		return math.Abs(liqX-liqY) < OptimalityTolerance, liqX, liqY, nil
	}
}

// OptimalSwap returns the swap (dx, dy) that makes (x, y) optimal for
// minting, after accounting for the (1 - swapFee) haircut on the executed
// side. At most one of dx, dy is positive: dx is X sold for Y, dy is Y sold
// for X. Beyond the interval bounds everything collapses to the single
// usable side.
//
// Inside the interval the swap solves the pair {y' = realPrice * x',
// value conservation with fee loss on the swapped amount}, which closes to
//
//	excess X: dx = (rp*x - y) / (rp + price*(1-fee))
//	excess Y: dy = (y - rp*x) / (1 + rp*(1-fee)/price)
func (a *LiquidityAligner) OptimalSwap(price, x, y, swapFee float64) (float64, float64, error) {
	if err := checkPrice(price); err != nil {
		return 0, 0, err
	}
	if x < 0 || y < 0 {
		return 0, 0, fmt.Errorf("%w: x=%v y=%v", ErrNegativeAmount, x, y)
	}
	if swapFee < 0 || swapFee > 1 {
		return 0, 0, fmt.Errorf("%w: fee=%v", ErrInvalidSwapFee, swapFee)
	}
	sp := math.Sqrt(price)
	switch {
	case sp >= a.sqrtUpper:
		return x, 0, nil
	case sp <= a.sqrtLower:
		return 0, y, nil
	}
	rp, err := a.RealPrice(price)
	if err != nil {
		return 0, 0, err
	}
	v := rp*x - y
	switch {
	case v > 0:
		dx := v / (rp + price*(1-swapFee))
		return dx, 0, nil
	case v < 0:
		dy := -v / (1 + rp*(1-swapFee)/price)
		return 0, dy, nil
	default:
		return 0, 0, nil
	}
}

// AmountsAfterOptimalSwap returns the (x, y) that remain once the
// OptimalSwap for (x, y) has been executed at price with swapFee.
func (a *LiquidityAligner) AmountsAfterOptimalSwap(price, x, y, swapFee float64) (float64, float64, error) {
	dx, dy, err := a.OptimalSwap(price, x, y, swapFee)
	if err != nil {
		return 0, 0, err
	}
	switch {
	case dx > 0:
		return x - dx, y + price*(1-swapFee)*dx, nil
	case dy > 0:
		return x + (1-swapFee)*dy/price, y - dy, nil
	default:
		return x, y, nil
	}
}

// checkPrice validates the shared positive-price precondition.
func checkPrice(price float64) error {
	if !(price > 0) || math.IsInf(price, 1) || math.IsNaN(price) {
		return fmt.Errorf("%w: price=%v", ErrInvalidPrice, price)
	}
	return nil
}

// One-sided conversions on sqrt-price bounds a < b.

func xToLiq(a, b, x float64) float64 {
	return x * (b * a) / (b - a)
}

func yToLiq(a, b, y float64) float64 {
	return y / (b - a)
}

func liqToX(a, b, liq float64) float64 {
	return liq * (b - a) / (a * b)
}

func liqToY(a, b, liq float64) float64 {
	return liq * (b - a)
}
