package liquidity

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) *uint256.Int {
	t.Helper()
	b, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, s)
	return uint256.MustFromBig(b)
}

func str(v *uint256.Int) string {
	return v.ToBig().String()
}

func TestSqrtRatioAtTick(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{0, "79228162514264337593543950336"},
		{1, "79232123823359799118286999568"},
		{-1, "79224201403219477170569942574"},
		{60, "79466191966197645195421774833"},
		{-60, "78990846045029531151608375686"},
		{200000, "1744244129640337381386292603617838"},
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
	}
	for _, tc := range cases {
		got, err := SqrtRatioAtTick(tc.tick)
		require.NoError(t, err)
		assert.Equal(t, tc.want, str(got), "tick %d", tc.tick)
	}

	_, err := SqrtRatioAtTick(MaxTick + 1)
	assert.ErrorIs(t, err, ErrTickOutOfBounds)
	_, err = SqrtRatioAtTick(MinTick - 1)
	assert.ErrorIs(t, err, ErrTickOutOfBounds)
}

func TestTickAtSqrtRatio(t *testing.T) {
	tick, err := TickAtSqrtRatio(MinSqrtRatio)
	require.NoError(t, err)
	assert.Equal(t, MinTick, tick)

	tick, err = TickAtSqrtRatio(new(uint256.Int).SubUint64(MaxSqrtRatio, 1))
	require.NoError(t, err)
	assert.Equal(t, MaxTick-1, tick)

	for _, want := range []int32{-60, -1, 0, 1, 887, 200000} {
		ratio, err := SqrtRatioAtTick(want)
		require.NoError(t, err)
		got, err := TickAtSqrtRatio(ratio)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		got, err = TickAtSqrtRatio(new(uint256.Int).AddUint64(ratio, 1))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = TickAtSqrtRatio(MaxSqrtRatio)
	assert.ErrorIs(t, err, ErrSqrtPriceOutOfBounds)
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(-600, 600, 60))
	assert.NoError(t, ValidateRange(-887220, 887220, 60))
	assert.ErrorIs(t, ValidateRange(600, 600, 60), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(600, -600, 60), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(-610, 600, 60), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(-887280, 600, 60), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(-1, 1, 0), ErrInvalidRange)
}

func TestTickSpacing(t *testing.T) {
	spacing, err := TickSpacing(3000)
	require.NoError(t, err)
	assert.Equal(t, int32(60), spacing)

	_, err = TickSpacing(42)
	assert.ErrorIs(t, err, ErrUnknownFeeTier)
}

func TestMulDiv(t *testing.T) {
	z, err := MulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), z.Uint64())

	z, err = MulDivRoundingUp(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(11), z.Uint64())

	huge := new(uint256.Int).SetAllOne()
	z, err = MulDiv(huge, huge, huge)
	require.NoError(t, err)
	assert.True(t, z.Eq(huge))

	_, err = MulDiv(huge, uint256.NewInt(2), uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = MulDiv(huge, huge, new(uint256.Int))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestLiquidityAndAmountsRoundTrip(t *testing.T) {
	sqrtA, sqrtB, err := RangeRatios(-600, 600)
	require.NoError(t, err)
	e18 := dec(t, "1000000000000000000")

	liq, err := LiquidityForAmounts(Q96, sqrtA, sqrtB, e18, e18)
	require.NoError(t, err)
	assert.Equal(t, "33837499809738371427", str(liq))

	amount0, amount1, err := AmountsForLiquidity(Q96, sqrtA, sqrtB, liq)
	require.NoError(t, err)
	assert.Equal(t, "999999999999999999", str(amount0))
	assert.Equal(t, "999999999999999999", str(amount1))

	up0, up1, err := AmountsForLiquidityRoundingUp(Q96, sqrtA, sqrtB, liq)
	require.NoError(t, err)
	assert.False(t, up0.Lt(amount0))
	assert.False(t, up1.Lt(amount1))
	assert.False(t, up0.Gt(e18))
	assert.False(t, up1.Gt(e18))
}

func TestLiquidityOutOfRangeIsSingleSided(t *testing.T) {
	sqrtA, sqrtB, err := RangeRatios(-600, 600)
	require.NoError(t, err)
	below, err := SqrtRatioAtTick(-1200)
	require.NoError(t, err)
	above, err := SqrtRatioAtTick(1200)
	require.NoError(t, err)
	e18 := dec(t, "1000000000000000000")
	zero := new(uint256.Int)

	liq, err := LiquidityForAmounts(below, sqrtA, sqrtB, e18, zero)
	require.NoError(t, err)
	assert.Equal(t, "16665000373539200203", str(liq))
	amount0, amount1, err := AmountsForLiquidity(below, sqrtA, sqrtB, liq)
	require.NoError(t, err)
	assert.True(t, amount1.IsZero())
	assert.False(t, amount0.Gt(e18))

	liq, err = LiquidityForAmounts(above, sqrtA, sqrtB, zero, e18)
	require.NoError(t, err)
	assert.Equal(t, "16665000373539200203", str(liq))
}

func TestComputeSwapStepCappedAtTarget(t *testing.T) {
	target := dec(t, "79623317895830914510639640423")
	step, err := ComputeSwapStep(Q96, target, dec(t, "2000000000000000000"), dec(t, "1000000000000000000"), 600)
	require.NoError(t, err)

	assert.True(t, step.SqrtPriceNextX96.Eq(target))
	assert.Equal(t, "9975124224178055", str(step.AmountIn))
	assert.Equal(t, "9925619580021728", str(step.AmountOut))
	assert.Equal(t, "5988667735148", str(step.FeeAmount))
}

func TestComputeSwapStepConsumesInput(t *testing.T) {
	target, err := SqrtRatioAtTick(-6000)
	require.NoError(t, err)
	amount := dec(t, "1000000000000000")
	step, err := ComputeSwapStep(Q96, target, dec(t, "1000000000000000000"), amount, 3000)
	require.NoError(t, err)

	assert.Equal(t, "79149250711305166342700278159", str(step.SqrtPriceNextX96))
	assert.Equal(t, "997000000000000", str(step.AmountIn))
	assert.Equal(t, "996006981039903", str(step.AmountOut))
	assert.Equal(t, "3000000000000", str(step.FeeAmount))
	total := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
	assert.True(t, total.Eq(amount))
}

func TestMulDivBPS(t *testing.T) {
	assert.Equal(t, uint64(250), MulDivBPS(uint256.NewInt(10_000), 250).Uint64())
	assert.Equal(t, uint64(0), MulDivBPS(uint256.NewInt(39), 250).Uint64())
}
