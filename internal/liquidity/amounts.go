package liquidity

import "github.com/holiman/uint256"

// LiquidityForAmount0 returns the liquidity received for amount0 across the
// range [sqrtRatioA, sqrtRatioB].
func LiquidityForAmount0(sqrtRatioA, sqrtRatioB, amount0 *uint256.Int) (*uint256.Int, error) {
	sqrtRatioA, sqrtRatioB = sortRatios(sqrtRatioA, sqrtRatioB)
	intermediate, err := MulDiv(sqrtRatioA, sqrtRatioB, Q96)
	if err != nil {
		return nil, err
	}
	diff := new(uint256.Int).Sub(sqrtRatioB, sqrtRatioA)
	liq, err := MulDiv(amount0, intermediate, diff)
	if err != nil {
		return nil, err
	}
	return toUint128(liq)
}

// LiquidityForAmount1 returns the liquidity received for amount1 across the
// range [sqrtRatioA, sqrtRatioB].
func LiquidityForAmount1(sqrtRatioA, sqrtRatioB, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtRatioA, sqrtRatioB = sortRatios(sqrtRatioA, sqrtRatioB)
	diff := new(uint256.Int).Sub(sqrtRatioB, sqrtRatioA)
	liq, err := MulDiv(amount1, Q96, diff)
	if err != nil {
		return nil, err
	}
	return toUint128(liq)
}

// LiquidityForAmounts returns the maximum liquidity that amount0 and amount1
// can fund at the current price for the given range.
func LiquidityForAmounts(sqrtPriceX96, sqrtRatioA, sqrtRatioB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtRatioA, sqrtRatioB = sortRatios(sqrtRatioA, sqrtRatioB)
	switch {
	case !sqrtPriceX96.Gt(sqrtRatioA):
		return LiquidityForAmount0(sqrtRatioA, sqrtRatioB, amount0)
	case sqrtPriceX96.Lt(sqrtRatioB):
		liq0, err := LiquidityForAmount0(sqrtPriceX96, sqrtRatioB, amount0)
		if err != nil {
			return nil, err
		}
		liq1, err := LiquidityForAmount1(sqrtRatioA, sqrtPriceX96, amount1)
		if err != nil {
			return nil, err
		}
		if liq0.Lt(liq1) {
			return liq0, nil
		}
		return liq1, nil
	default:
		return LiquidityForAmount1(sqrtRatioA, sqrtRatioB, amount1)
	}
}

// AmountsForLiquidity returns the token amounts represented by liquidity at
// the current price, rounded down.
func AmountsForLiquidity(sqrtPriceX96, sqrtRatioA, sqrtRatioB, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	return amountsForLiquidity(sqrtPriceX96, sqrtRatioA, sqrtRatioB, liquidity, false)
}

// AmountsForLiquidityRoundingUp is AmountsForLiquidity rounded up, which is
// what a pool charges when the liquidity is added.
func AmountsForLiquidityRoundingUp(sqrtPriceX96, sqrtRatioA, sqrtRatioB, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	return amountsForLiquidity(sqrtPriceX96, sqrtRatioA, sqrtRatioB, liquidity, true)
}

func amountsForLiquidity(sqrtPriceX96, sqrtRatioA, sqrtRatioB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, *uint256.Int, error) {
	sqrtRatioA, sqrtRatioB = sortRatios(sqrtRatioA, sqrtRatioB)
	amount0, amount1 := new(uint256.Int), new(uint256.Int)
	var err error
	switch {
	case !sqrtPriceX96.Gt(sqrtRatioA):
		amount0, err = Amount0Delta(sqrtRatioA, sqrtRatioB, liquidity, roundUp)
	case sqrtPriceX96.Lt(sqrtRatioB):
		amount0, err = Amount0Delta(sqrtPriceX96, sqrtRatioB, liquidity, roundUp)
		if err == nil {
			amount1, err = Amount1Delta(sqrtRatioA, sqrtPriceX96, liquidity, roundUp)
		}
	default:
		amount1, err = Amount1Delta(sqrtRatioA, sqrtRatioB, liquidity, roundUp)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// AmountsForTicks is AmountsForLiquidity with the range given as ticks.
func AmountsForTicks(sqrtPriceX96 *uint256.Int, lower, upper int32, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	sqrtA, sqrtB, err := RangeRatios(lower, upper)
	if err != nil {
		return nil, nil, err
	}
	return AmountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity)
}

// LiquidityForTicks is LiquidityForAmounts with the range given as ticks.
func LiquidityForTicks(sqrtPriceX96 *uint256.Int, lower, upper int32, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB, err := RangeRatios(lower, upper)
	if err != nil {
		return nil, err
	}
	return LiquidityForAmounts(sqrtPriceX96, sqrtA, sqrtB, amount0, amount1)
}

// RangeRatios returns the sqrt ratios at both ends of a tick range.
func RangeRatios(lower, upper int32) (*uint256.Int, *uint256.Int, error) {
	sqrtA, err := SqrtRatioAtTick(lower)
	if err != nil {
		return nil, nil, err
	}
	sqrtB, err := SqrtRatioAtTick(upper)
	if err != nil {
		return nil, nil, err
	}
	return sqrtA, sqrtB, nil
}

func toUint128(v *uint256.Int) (*uint256.Int, error) {
	if v.Gt(maxUint128) {
		return nil, ErrOverflow
	}
	return v, nil
}
