// Package oracle describes the read side of a concentrated liquidity pool
// and values positions against it.
package oracle

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"liquidityVault/internal/liquidity"
)

// Slot0 is the pool's current price.
type Slot0 struct {
	SqrtPriceX96 *uint256.Int
	Tick         int32
}

// PositionInfo is a pool position keyed by owner and range. TokensOwed
// holds burned principal and accrued fees not yet collected.
type PositionInfo struct {
	Liquidity   *uint256.Int
	TokensOwed0 *uint256.Int
	TokensOwed1 *uint256.Int
}

// PriceSource reads price and position state from a pool.
type PriceSource interface {
	Slot0(ctx context.Context) (Slot0, error)
	Position(ctx context.Context, owner common.Address, lower, upper int32) (PositionInfo, error)
}

// EmptyPosition returns a position with zero liquidity and nothing owed.
func EmptyPosition() PositionInfo {
	return PositionInfo{
		Liquidity:   new(uint256.Int),
		TokensOwed0: new(uint256.Int),
		TokensOwed1: new(uint256.Int),
	}
}

// PositionKey is keccak256(owner ++ int24(lower) ++ int24(upper)), the key
// under which a pool stores a position.
func PositionKey(owner common.Address, lower, upper int32) common.Hash {
	buf := make([]byte, 0, common.AddressLength+6)
	buf = append(buf, owner.Bytes()...)
	buf = appendInt24(buf, lower)
	buf = appendInt24(buf, upper)
	return crypto.Keccak256Hash(buf)
}

func appendInt24(buf []byte, v int32) []byte {
	u := uint32(v)
	return append(buf, byte(u>>16), byte(u>>8), byte(u))
}

// Holdings are the token amounts a position represents at the current price,
// including owed tokens.
type Holdings struct {
	SqrtPriceX96 *uint256.Int
	Liquidity    *uint256.Int
	Amount0      *uint256.Int
	Amount1      *uint256.Int
	Owed0        *uint256.Int
	Owed1        *uint256.Int
}

// Total0 returns principal plus owed token0.
func (h Holdings) Total0() *uint256.Int { return new(uint256.Int).Add(h.Amount0, h.Owed0) }

// Total1 returns principal plus owed token1.
func (h Holdings) Total1() *uint256.Int { return new(uint256.Int).Add(h.Amount1, h.Owed1) }

// Value reads the pool and values owner's position in [lower, upper).
func Value(ctx context.Context, src PriceSource, owner common.Address, lower, upper int32) (Holdings, error) {
	slot0, err := src.Slot0(ctx)
	if err != nil {
		return Holdings{}, fmt.Errorf("read slot0: %w", err)
	}
	return ValueAt(ctx, src, slot0.SqrtPriceX96, owner, lower, upper)
}

// ValueAt values owner's position at an arbitrary price.
func ValueAt(ctx context.Context, src PriceSource, sqrtPriceX96 *uint256.Int, owner common.Address, lower, upper int32) (Holdings, error) {
	pos, err := src.Position(ctx, owner, lower, upper)
	if err != nil {
		return Holdings{}, fmt.Errorf("read position: %w", err)
	}
	amount0, amount1, err := liquidity.AmountsForTicks(sqrtPriceX96, lower, upper, pos.Liquidity)
	if err != nil {
		return Holdings{}, err
	}
	return Holdings{
		SqrtPriceX96: sqrtPriceX96,
		Liquidity:    pos.Liquidity,
		Amount0:      amount0,
		Amount1:      amount1,
		Owed0:        pos.TokensOwed0,
		Owed1:        pos.TokensOwed1,
	}, nil
}

// Deposit is what a deposit of at most (max0, max1) into a range would use
// at the current price. Amounts round up, as a pool mint does.
type Deposit struct {
	SqrtPriceX96 *uint256.Int
	Liquidity    *uint256.Int
	Amount0      *uint256.Int
	Amount1      *uint256.Int
}

// QuoteDeposit sizes the largest position max0 and max1 can fund in
// [lower, upper).
func QuoteDeposit(ctx context.Context, src PriceSource, lower, upper int32, max0, max1 *uint256.Int) (Deposit, error) {
	if lower >= upper {
		return Deposit{}, fmt.Errorf("%w: %d >= %d", liquidity.ErrInvalidRange, lower, upper)
	}
	slot0, err := src.Slot0(ctx)
	if err != nil {
		return Deposit{}, fmt.Errorf("read slot0: %w", err)
	}
	liq, err := liquidity.LiquidityForTicks(slot0.SqrtPriceX96, lower, upper, max0, max1)
	if err != nil {
		return Deposit{}, err
	}
	sqrtA, sqrtB, err := liquidity.RangeRatios(lower, upper)
	if err != nil {
		return Deposit{}, err
	}
	amount0, amount1, err := liquidity.AmountsForLiquidityRoundingUp(slot0.SqrtPriceX96, sqrtA, sqrtB, liq)
	if err != nil {
		return Deposit{}, err
	}
	return Deposit{
		SqrtPriceX96: slot0.SqrtPriceX96,
		Liquidity:    liq,
		Amount0:      amount0,
		Amount1:      amount1,
	}, nil
}
