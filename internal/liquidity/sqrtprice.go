package liquidity

import "github.com/holiman/uint256"

// Amount0Delta returns the token0 amount between two sqrt prices for the
// given liquidity: L * (sqrtB - sqrtA) / (sqrtA * sqrtB).
func Amount0Delta(sqrtRatioA, sqrtRatioB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtRatioA, sqrtRatioB = sortRatios(sqrtRatioA, sqrtRatioB)
	if sqrtRatioA.IsZero() {
		return nil, ErrSqrtPriceOutOfBounds
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtRatioB, sqrtRatioA)

	if roundUp {
		term, err := MulDivRoundingUp(numerator1, numerator2, sqrtRatioB)
		if err != nil {
			return nil, err
		}
		return divRoundingUp(term, sqrtRatioA), nil
	}
	term, err := MulDiv(numerator1, numerator2, sqrtRatioB)
	if err != nil {
		return nil, err
	}
	return term.Div(term, sqrtRatioA), nil
}

// Amount1Delta returns the token1 amount between two sqrt prices for the
// given liquidity: L * (sqrtB - sqrtA).
func Amount1Delta(sqrtRatioA, sqrtRatioB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtRatioA, sqrtRatioB = sortRatios(sqrtRatioA, sqrtRatioB)
	diff := new(uint256.Int).Sub(sqrtRatioB, sqrtRatioA)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96)
	}
	return MulDiv(liquidity, diff, Q96)
}

// NextSqrtPriceFromInput returns the sqrt price after adding amountIn of the
// input token. zeroForOne selects token0 as input.
func NextSqrtPriceFromInput(sqrtPriceX96, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPriceX96.IsZero() {
		return nil, ErrSqrtPriceOutOfBounds
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0RoundingUp(sqrtPriceX96, liquidity, amountIn)
	}
	return nextSqrtPriceFromAmount1RoundingDown(sqrtPriceX96, liquidity, amountIn)
}

func nextSqrtPriceFromAmount0RoundingUp(sqrtPriceX96, liquidity, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int).Set(sqrtPriceX96), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)

	product, overflow := new(uint256.Int).MulOverflow(amount, sqrtPriceX96)
	if !overflow {
		denominator, carry := new(uint256.Int).AddOverflow(numerator1, product)
		if !carry {
			return MulDivRoundingUp(numerator1, sqrtPriceX96, denominator)
		}
	}
	denominator := new(uint256.Int).Div(numerator1, sqrtPriceX96)
	if _, carry := denominator.AddOverflow(denominator, amount); carry {
		return nil, ErrOverflow
	}
	return divRoundingUp(numerator1, denominator), nil
}

func nextSqrtPriceFromAmount1RoundingDown(sqrtPriceX96, liquidity, amount *uint256.Int) (*uint256.Int, error) {
	quotient, err := MulDiv(amount, Q96, liquidity)
	if err != nil {
		return nil, err
	}
	next, carry := new(uint256.Int).AddOverflow(sqrtPriceX96, quotient)
	if carry || next.BitLen() > 160 {
		return nil, ErrOverflow
	}
	return next, nil
}
