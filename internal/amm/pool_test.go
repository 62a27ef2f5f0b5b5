package amm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/journal"
	"liquidityVault/internal/liquidity"
	"liquidityVault/internal/token"
)

var (
	lp     = common.HexToAddress("0x1001")
	trader = common.HexToAddress("0x1002")
)

func dec(s string) *uint256.Int {
	b, _ := new(big.Int).SetString(s, 10)
	return uint256.MustFromBig(b)
}

type testEnv struct {
	j      *journal.Journal
	t0, t1 *token.Ledger
	pool   *Pool
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	j := journal.New()
	f := NewFactory(j, common.HexToAddress("0xfac"), nil)
	t0 := token.NewLedger(j, common.HexToAddress("0x0a"), "Token0", "T0", 18)
	t1 := token.NewLedger(j, common.HexToAddress("0x0b"), "Token1", "T1", 18)
	f.RegisterToken(t0)
	f.RegisterToken(t1)

	for _, acct := range []common.Address{lp, trader} {
		require.NoError(t, t0.Mint(acct, dec("100000000000000000000")))
		require.NoError(t, t1.Mint(acct, dec("100000000000000000000")))
	}
	pool, err := f.CreatePool(t1.Address(), t0.Address(), 3000)
	require.NoError(t, err)
	require.NoError(t, pool.Initialize(liquidity.Q96))
	return testEnv{j: j, t0: t0, t1: t1, pool: pool}
}

func TestFactorySortsAndRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, env.t0.Address(), env.pool.Token0())
	assert.Equal(t, int32(60), env.pool.TickSpacing())

	f := NewFactory(journal.New(), common.HexToAddress("0xfac"), nil)
	f.RegisterToken(env.t0)
	f.RegisterToken(env.t1)
	_, err := f.CreatePool(env.t0.Address(), env.t1.Address(), 3000)
	require.NoError(t, err)
	_, err = f.CreatePool(env.t1.Address(), env.t0.Address(), 3000)
	assert.ErrorIs(t, err, ErrPoolExists)
	_, err = f.CreatePool(env.t0.Address(), env.t0.Address(), 3000)
	assert.ErrorIs(t, err, ErrIdenticalTokens)
	_, err = f.CreatePool(env.t0.Address(), env.t1.Address(), 42)
	assert.ErrorIs(t, err, liquidity.ErrUnknownFeeTier)

	p, ok := f.GetPool(env.t1.Address(), env.t0.Address(), 3000)
	require.True(t, ok)
	assert.Equal(t, uint32(3000), p.Fee())
}

func TestMintPullsRoundedUpAmounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	amount0, amount1, err := env.pool.Mint(ctx, lp, -600, 600, dec("33837499809738371427"))
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", amount0.ToBig().String())
	assert.Equal(t, "1000000000000000000", amount1.ToBig().String())
	assert.Equal(t, "1000000000000000000", env.t0.BalanceOf(env.pool.Address()).ToBig().String())

	_, _, err = env.pool.Mint(ctx, lp, -610, 600, uint256.NewInt(1))
	assert.ErrorIs(t, err, liquidity.ErrInvalidRange)
}

func TestSwapCreditsFeesToInRangePositions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, err := env.pool.Mint(ctx, lp, -600, 600, dec("33837499809738371427"))
	require.NoError(t, err)
	_, _, err = env.pool.Mint(ctx, lp, 1200, 1800, dec("1000000"))
	require.NoError(t, err)

	limit, err := liquidity.SqrtRatioAtTick(-600)
	require.NoError(t, err)
	in, out, err := env.pool.Swap(ctx, trader, trader, true, dec("1000000000000000"), limit)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000", in.ToBig().String())
	assert.Equal(t, "996970624906727", out.ToBig().String())

	slot0, err := env.pool.Slot0(ctx)
	require.NoError(t, err)
	assert.Equal(t, "79225828176587612281760928935", slot0.SqrtPriceX96.ToBig().String())

	pos, err := env.pool.Position(ctx, lp, -600, 600)
	require.NoError(t, err)
	assert.Equal(t, "3000000000000", pos.TokensOwed0.ToBig().String())
	assert.True(t, pos.TokensOwed1.IsZero())

	outOfRange, err := env.pool.Position(ctx, lp, 1200, 1800)
	require.NoError(t, err)
	assert.True(t, outOfRange.TokensOwed0.IsZero())
}

func TestSwapCrossesRangeEdgeAndStopsAtLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, err := env.pool.Mint(ctx, lp, -60, 60, dec("1000000000000000000"))
	require.NoError(t, err)

	limit, err := liquidity.SqrtRatioAtTick(-1200)
	require.NoError(t, err)
	in, _, err := env.pool.Swap(ctx, trader, trader, true, dec("50000000000000000000"), limit)
	require.NoError(t, err)

	slot0, err := env.pool.Slot0(ctx)
	require.NoError(t, err)
	assert.True(t, slot0.SqrtPriceX96.Eq(limit))
	assert.Equal(t, int32(-1200), slot0.Tick)
	assert.True(t, in.Lt(dec("50000000000000000000")))
	assert.True(t, env.pool.ActiveLiquidity().IsZero())
}

func TestBurnAndCollect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	liq := dec("33837499809738371427")
	_, _, err := env.pool.Mint(ctx, lp, -600, 600, liq)
	require.NoError(t, err)

	_, _, err = env.pool.Burn(ctx, lp, -600, 600, new(uint256.Int).AddUint64(liq, 1))
	assert.ErrorIs(t, err, ErrBurnExceeds)

	amount0, amount1, err := env.pool.Burn(ctx, lp, -600, 600, liq)
	require.NoError(t, err)
	assert.Equal(t, "999999999999999999", amount0.ToBig().String())
	assert.Equal(t, "999999999999999999", amount1.ToBig().String())

	before := env.t0.BalanceOf(lp)
	got0, got1, err := env.pool.Collect(ctx, lp, lp, -600, 600, token.MaxAllowance, token.MaxAllowance)
	require.NoError(t, err)
	assert.True(t, got0.Eq(amount0))
	assert.True(t, got1.Eq(amount1))
	assert.True(t, new(uint256.Int).Add(before, got0).Eq(env.t0.BalanceOf(lp)))

	_, _, err = env.pool.Burn(ctx, lp, -600, 600, new(uint256.Int))
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestSwapRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.pool.Swap(context.Background(), trader, trader, true, uint256.NewInt(10), liquidity.Q96)
	assert.ErrorIs(t, err, ErrPriceLimit)
	_, _, err = env.pool.Swap(context.Background(), trader, trader, false, uint256.NewInt(10), liquidity.MaxSqrtRatio)
	assert.ErrorIs(t, err, ErrPriceLimit)
}

func TestPoolChangesRevertWithJournal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := env.j.Atomic(func() error {
		_, _, err := env.pool.Mint(ctx, lp, -600, 600, dec("1000000"))
		require.NoError(t, err)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	pos, err := env.pool.Position(ctx, lp, -600, 600)
	require.NoError(t, err)
	assert.True(t, pos.Liquidity.IsZero())
	assert.True(t, env.t0.BalanceOf(env.pool.Address()).IsZero())
}
