package liquidity

import "github.com/holiman/uint256"

// SwapStep is the outcome of one exact-input swap step within a range of
// constant liquidity.
type SwapStep struct {
	SqrtPriceNextX96 *uint256.Int
	AmountIn         *uint256.Int
	AmountOut        *uint256.Int
	FeeAmount        *uint256.Int
}

// ComputeSwapStep swaps up to amountRemaining (fee included) of input token
// from sqrtCurrent towards sqrtTarget. feePips is in hundredths of a bip.
func ComputeSwapStep(sqrtCurrent, sqrtTarget, liquidity, amountRemaining *uint256.Int, feePips uint32) (SwapStep, error) {
	zeroForOne := !sqrtCurrent.Lt(sqrtTarget)
	feeComplement := uint256.NewInt(uint64(FeeDenominator - feePips))
	denominator := uint256.NewInt(FeeDenominator)

	remainingLessFee, err := MulDiv(amountRemaining, feeComplement, denominator)
	if err != nil {
		return SwapStep{}, err
	}

	var amountIn *uint256.Int
	if zeroForOne {
		amountIn, err = Amount0Delta(sqrtTarget, sqrtCurrent, liquidity, true)
	} else {
		amountIn, err = Amount1Delta(sqrtCurrent, sqrtTarget, liquidity, true)
	}
	if err != nil {
		return SwapStep{}, err
	}

	var next *uint256.Int
	if !remainingLessFee.Lt(amountIn) {
		next = new(uint256.Int).Set(sqrtTarget)
	} else {
		next, err = NextSqrtPriceFromInput(sqrtCurrent, liquidity, remainingLessFee, zeroForOne)
		if err != nil {
			return SwapStep{}, err
		}
	}
	reachedTarget := next.Eq(sqrtTarget)

	var amountOut *uint256.Int
	if zeroForOne {
		if !reachedTarget {
			if amountIn, err = Amount0Delta(next, sqrtCurrent, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		amountOut, err = Amount1Delta(next, sqrtCurrent, liquidity, false)
	} else {
		if !reachedTarget {
			if amountIn, err = Amount1Delta(sqrtCurrent, next, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		amountOut, err = Amount0Delta(sqrtCurrent, next, liquidity, false)
	}
	if err != nil {
		return SwapStep{}, err
	}

	var fee *uint256.Int
	if !reachedTarget {
		fee = new(uint256.Int).Sub(amountRemaining, amountIn)
	} else {
		fee, err = MulDivRoundingUp(amountIn, uint256.NewInt(uint64(feePips)), feeComplement)
		if err != nil {
			return SwapStep{}, err
		}
	}

	return SwapStep{
		SqrtPriceNextX96: next,
		AmountIn:         amountIn,
		AmountOut:        amountOut,
		FeeAmount:        fee,
	}, nil
}
