// Package liquidity implements the fixed-point math of a concentrated
// liquidity pool: tick and sqrt price conversion, token amount deltas,
// liquidity sizing and single swap steps. All values are uint256 and every
// rounding direction matches the on-chain libraries.
package liquidity

import (
	"errors"

	"github.com/holiman/uint256"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272

	// FeeDenominator is the unit of pool fees (hundredths of a bip).
	FeeDenominator = 1_000_000
)

var (
	// Q96 is 1.0 in Q64.96 fixed point.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

	MinSqrtRatio = uint256.NewInt(4295128739)
	MaxSqrtRatio = uint256.MustFromHex("0xfffd8963efd1fc6a506488495d951d5263988d26")

	maxUint128 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)
	maxUint256 = new(uint256.Int).SetAllOne()
)

var (
	ErrTickOutOfBounds      = errors.New("liquidity: tick out of bounds")
	ErrSqrtPriceOutOfBounds = errors.New("liquidity: sqrt price out of bounds")
	ErrInvalidRange         = errors.New("liquidity: invalid tick range")
	ErrOverflow             = errors.New("liquidity: overflow")
	ErrDivisionByZero       = errors.New("liquidity: division by zero")
	ErrZeroLiquidity        = errors.New("liquidity: zero liquidity")
	ErrUnknownFeeTier       = errors.New("liquidity: unknown fee tier")
)

var feeTierSpacing = map[uint32]int32{
	100:   1,
	500:   10,
	3000:  60,
	10000: 200,
}

// TickSpacing returns the tick spacing enabled for a fee tier.
func TickSpacing(fee uint32) (int32, error) {
	spacing, ok := feeTierSpacing[fee]
	if !ok {
		return 0, ErrUnknownFeeTier
	}
	return spacing, nil
}

// ValidateRange checks that lower < upper, both ticks are multiples of
// spacing and both lie within [MinTick, MaxTick].
func ValidateRange(lower, upper, spacing int32) error {
	switch {
	case spacing <= 0:
		return ErrInvalidRange
	case lower >= upper:
		return ErrInvalidRange
	case lower < MinTick || upper > MaxTick:
		return ErrInvalidRange
	case lower%spacing != 0 || upper%spacing != 0:
		return ErrInvalidRange
	}
	return nil
}

// MulDiv returns floor(a*b/denominator) with a 512-bit intermediate product.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDivRoundingUp returns ceil(a*b/denominator).
func MulDivRoundingUp(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(a, b, denominator).IsZero() {
		return z, nil
	}
	if z.Eq(maxUint256) {
		return nil, ErrOverflow
	}
	return z.AddUint64(z, 1), nil
}

// divRoundingUp returns ceil(a/b); b must be non-zero.
func divRoundingUp(a, b *uint256.Int) *uint256.Int {
	z := new(uint256.Int).Div(a, b)
	if !new(uint256.Int).Mod(a, b).IsZero() {
		z.AddUint64(z, 1)
	}
	return z
}

// MulDivBPS returns floor(amount*bps/10000).
func MulDivBPS(amount *uint256.Int, bps uint64) *uint256.Int {
	z, err := MulDiv(amount, uint256.NewInt(bps), uint256.NewInt(10_000))
	if err != nil {
		// bps <= 10000 never overflows
		panic(err)
	}
	return z
}

func sortRatios(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Gt(b) {
		return b, a
	}
	return a, b
}
