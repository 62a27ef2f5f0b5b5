package amm

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/journal"
	"liquidityVault/internal/liquidity"
	"liquidityVault/internal/oracle"
)

type position struct {
	owner     common.Address
	lower     int32
	upper     int32
	sqrtLower *uint256.Int
	sqrtUpper *uint256.Int
	liquidity *uint256.Int
	owed0     *uint256.Int
	owed1     *uint256.Int
}

func (p *position) clone() *position {
	cp := *p
	cp.liquidity = new(uint256.Int).Set(p.liquidity)
	cp.owed0 = new(uint256.Int).Set(p.owed0)
	cp.owed1 = new(uint256.Int).Set(p.owed1)
	return &cp
}

// Pool holds price and positions. Swap fees are credited straight to the
// owed balances of in-range positions, pro rata to their liquidity.
type Pool struct {
	address     common.Address
	journal     *journal.Journal
	logger      *zap.Logger
	token0      Token
	token1      Token
	fee         uint32
	tickSpacing int32

	sqrtPriceX96 *uint256.Int
	tick         int32
	positions    map[common.Hash]*position
}

func newPool(j *journal.Journal, logger *zap.Logger, addr common.Address, t0, t1 Token, fee uint32, spacing int32) *Pool {
	return &Pool{
		address:     addr,
		journal:     j,
		logger:      logger,
		token0:      t0,
		token1:      t1,
		fee:         fee,
		tickSpacing: spacing,
		positions:   make(map[common.Hash]*position),
	}
}

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) Token0() common.Address  { return p.token0.Address() }
func (p *Pool) Token1() common.Address  { return p.token1.Address() }
func (p *Pool) Fee() uint32             { return p.fee }
func (p *Pool) TickSpacing() int32      { return p.tickSpacing }

// Initialize sets the starting price.
func (p *Pool) Initialize(sqrtPriceX96 *uint256.Int) error {
	if p.sqrtPriceX96 != nil {
		return ErrAlreadyInitialized
	}
	tick, err := liquidity.TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}
	p.setPrice(new(uint256.Int).Set(sqrtPriceX96), tick)
	return nil
}

// Slot0 returns the current price.
func (p *Pool) Slot0(ctx context.Context) (oracle.Slot0, error) {
	if err := ctx.Err(); err != nil {
		return oracle.Slot0{}, err
	}
	if p.sqrtPriceX96 == nil {
		return oracle.Slot0{}, ErrNotInitialized
	}
	return oracle.Slot0{SqrtPriceX96: new(uint256.Int).Set(p.sqrtPriceX96), Tick: p.tick}, nil
}

// Position returns owner's position in the range, or an empty one.
func (p *Pool) Position(ctx context.Context, owner common.Address, lower, upper int32) (oracle.PositionInfo, error) {
	if err := ctx.Err(); err != nil {
		return oracle.PositionInfo{}, err
	}
	pos, ok := p.positions[oracle.PositionKey(owner, lower, upper)]
	if !ok {
		return oracle.EmptyPosition(), nil
	}
	return oracle.PositionInfo{
		Liquidity:   new(uint256.Int).Set(pos.liquidity),
		TokensOwed0: new(uint256.Int).Set(pos.owed0),
		TokensOwed1: new(uint256.Int).Set(pos.owed1),
	}, nil
}

// ActiveLiquidity is the liquidity in range at the current price.
func (p *Pool) ActiveLiquidity() *uint256.Int {
	total := new(uint256.Int)
	if p.sqrtPriceX96 == nil {
		return total
	}
	for _, pos := range p.positions {
		if !pos.sqrtLower.Gt(p.sqrtPriceX96) && pos.sqrtUpper.Gt(p.sqrtPriceX96) {
			total.Add(total, pos.liquidity)
		}
	}
	return total
}

// Mint adds liquidity to owner's position and pulls the required token
// amounts, rounded up, from owner.
func (p *Pool) Mint(ctx context.Context, owner common.Address, lower, upper int32, amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if p.sqrtPriceX96 == nil {
		return nil, nil, ErrNotInitialized
	}
	if amount.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if err := liquidity.ValidateRange(lower, upper, p.tickSpacing); err != nil {
		return nil, nil, err
	}
	sqrtLower, sqrtUpper, err := liquidity.RangeRatios(lower, upper)
	if err != nil {
		return nil, nil, err
	}
	amount0, amount1, err := liquidity.AmountsForLiquidityRoundingUp(p.sqrtPriceX96, sqrtLower, sqrtUpper, amount)
	if err != nil {
		return nil, nil, err
	}

	if !amount0.IsZero() {
		if err := p.token0.Transfer(owner, p.address, amount0); err != nil {
			return nil, nil, err
		}
	}
	if !amount1.IsZero() {
		if err := p.token1.Transfer(owner, p.address, amount1); err != nil {
			return nil, nil, err
		}
	}

	key := oracle.PositionKey(owner, lower, upper)
	pos, ok := p.positions[key]
	if !ok {
		pos = &position{
			owner:     owner,
			lower:     lower,
			upper:     upper,
			sqrtLower: sqrtLower,
			sqrtUpper: sqrtUpper,
			liquidity: new(uint256.Int),
			owed0:     new(uint256.Int),
			owed1:     new(uint256.Int),
		}
	} else {
		pos = pos.clone()
	}
	pos.liquidity.Add(pos.liquidity, amount)
	p.setPosition(key, pos)
	return amount0, amount1, nil
}

// Burn removes liquidity from owner's position and credits the released
// token amounts, rounded down, to the position's owed balances. Burning zero
// only checks that the position exists.
func (p *Pool) Burn(ctx context.Context, owner common.Address, lower, upper int32, amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	key := oracle.PositionKey(owner, lower, upper)
	pos, ok := p.positions[key]
	if !ok || pos.liquidity.IsZero() {
		return nil, nil, ErrNoPosition
	}
	if amount.Gt(pos.liquidity) {
		return nil, nil, ErrBurnExceeds
	}
	if amount.IsZero() {
		return new(uint256.Int), new(uint256.Int), nil
	}
	amount0, amount1, err := liquidity.AmountsForLiquidity(p.sqrtPriceX96, pos.sqrtLower, pos.sqrtUpper, amount)
	if err != nil {
		return nil, nil, err
	}
	pos = pos.clone()
	pos.liquidity.Sub(pos.liquidity, amount)
	pos.owed0.Add(pos.owed0, amount0)
	pos.owed1.Add(pos.owed1, amount1)
	p.setPosition(key, pos)
	return amount0, amount1, nil
}

// Collect pays up to the requested amounts of owed tokens to recipient.
func (p *Pool) Collect(ctx context.Context, owner, recipient common.Address, lower, upper int32, max0, max1 *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	key := oracle.PositionKey(owner, lower, upper)
	pos, ok := p.positions[key]
	if !ok {
		return new(uint256.Int), new(uint256.Int), nil
	}
	amount0 := minInt(pos.owed0, max0)
	amount1 := minInt(pos.owed1, max1)
	if amount0.IsZero() && amount1.IsZero() {
		return amount0, amount1, nil
	}

	pos = pos.clone()
	pos.owed0.Sub(pos.owed0, amount0)
	pos.owed1.Sub(pos.owed1, amount1)
	p.setPosition(key, pos)

	if !amount0.IsZero() {
		if err := p.token0.Transfer(p.address, recipient, amount0); err != nil {
			return nil, nil, err
		}
	}
	if !amount1.IsZero() {
		if err := p.token1.Transfer(p.address, recipient, amount1); err != nil {
			return nil, nil, err
		}
	}
	return amount0, amount1, nil
}

type swapState struct {
	remaining    *uint256.Int
	amountIn     *uint256.Int
	amountOut    *uint256.Int
	sqrtPriceX96 *uint256.Int
}

// Swap sells up to amountIn of the input token (token0 when zeroForOne),
// stopping early at sqrtPriceLimitX96. Input is pulled from sender and output
// is paid to recipient. It returns the input actually consumed, fee included,
// and the output paid.
func (p *Pool) Swap(ctx context.Context, sender, recipient common.Address, zeroForOne bool, amountIn, sqrtPriceLimitX96 *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if p.sqrtPriceX96 == nil {
		return nil, nil, ErrNotInitialized
	}
	if amountIn.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if zeroForOne {
		if !sqrtPriceLimitX96.Lt(p.sqrtPriceX96) || !sqrtPriceLimitX96.Gt(liquidity.MinSqrtRatio) {
			return nil, nil, ErrPriceLimit
		}
	} else if !sqrtPriceLimitX96.Gt(p.sqrtPriceX96) || !sqrtPriceLimitX96.Lt(liquidity.MaxSqrtRatio) {
		return nil, nil, ErrPriceLimit
	}

	state := swapState{
		remaining:    new(uint256.Int).Set(amountIn),
		amountIn:     new(uint256.Int),
		amountOut:    new(uint256.Int),
		sqrtPriceX96: new(uint256.Int).Set(p.sqrtPriceX96),
	}
	boundaries := p.boundaries()
	credits := make(map[common.Hash]*uint256.Int)

	for !state.remaining.IsZero() && !state.sqrtPriceX96.Eq(sqrtPriceLimitX96) {
		target := nextBoundary(boundaries, state.sqrtPriceX96, sqrtPriceLimitX96, zeroForOne)
		low, high := target, state.sqrtPriceX96
		if !zeroForOne {
			low, high = state.sqrtPriceX96, target
		}
		active, keys := p.liquidityBetween(low, high)

		step, err := liquidity.ComputeSwapStep(state.sqrtPriceX96, target, active, state.remaining, p.fee)
		if err != nil {
			return nil, nil, err
		}
		consumed := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
		state.remaining.Sub(state.remaining, consumed)
		state.amountIn.Add(state.amountIn, consumed)
		state.amountOut.Add(state.amountOut, step.AmountOut)
		state.sqrtPriceX96 = step.SqrtPriceNextX96

		if !step.FeeAmount.IsZero() {
			for _, key := range keys {
				share, err := liquidity.MulDiv(step.FeeAmount, p.positions[key].liquidity, active)
				if err != nil {
					return nil, nil, err
				}
				if c, ok := credits[key]; ok {
					c.Add(c, share)
				} else {
					credits[key] = share
				}
			}
		}
	}

	tokenIn, tokenOut := p.token0, p.token1
	if !zeroForOne {
		tokenIn, tokenOut = p.token1, p.token0
	}
	if err := tokenIn.Transfer(sender, p.address, state.amountIn); err != nil {
		return nil, nil, err
	}
	if !state.amountOut.IsZero() {
		if err := tokenOut.Transfer(p.address, recipient, state.amountOut); err != nil {
			return nil, nil, err
		}
	}

	for key, fee := range credits {
		if fee.IsZero() {
			continue
		}
		pos := p.positions[key].clone()
		if zeroForOne {
			pos.owed0.Add(pos.owed0, fee)
		} else {
			pos.owed1.Add(pos.owed1, fee)
		}
		p.setPosition(key, pos)
	}

	tick, err := liquidity.TickAtSqrtRatio(state.sqrtPriceX96)
	if err != nil {
		return nil, nil, err
	}
	p.setPrice(state.sqrtPriceX96, tick)

	p.logger.Debug("pool swap",
		zap.String("pool", p.address.Hex()),
		zap.Bool("zero_for_one", zeroForOne),
		zap.String("amount_in", state.amountIn.ToBig().String()),
		zap.String("amount_out", state.amountOut.ToBig().String()),
		zap.Int32("tick", tick),
	)
	return state.amountIn, state.amountOut, nil
}

// boundaries returns the distinct range edges of funded positions, ascending.
func (p *Pool) boundaries() []*uint256.Int {
	seen := make(map[[32]byte]*uint256.Int)
	for _, pos := range p.positions {
		if pos.liquidity.IsZero() {
			continue
		}
		seen[pos.sqrtLower.Bytes32()] = pos.sqrtLower
		seen[pos.sqrtUpper.Bytes32()] = pos.sqrtUpper
	}
	out := make([]*uint256.Int, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lt(out[j]) })
	return out
}

// nextBoundary returns the closest range edge strictly past current in the
// swap direction, clamped to limit.
func nextBoundary(boundaries []*uint256.Int, current, limit *uint256.Int, zeroForOne bool) *uint256.Int {
	if zeroForOne {
		for i := len(boundaries) - 1; i >= 0; i-- {
			if boundaries[i].Lt(current) {
				if boundaries[i].Gt(limit) {
					return boundaries[i]
				}
				break
			}
		}
		return limit
	}
	for _, b := range boundaries {
		if b.Gt(current) {
			if b.Lt(limit) {
				return b
			}
			break
		}
	}
	return limit
}

// liquidityBetween sums positions covering (low, high). No range edge lies
// strictly inside the interval.
func (p *Pool) liquidityBetween(low, high *uint256.Int) (*uint256.Int, []common.Hash) {
	total := new(uint256.Int)
	var keys []common.Hash
	for key, pos := range p.positions {
		if pos.liquidity.IsZero() {
			continue
		}
		if pos.sqrtLower.Lt(high) && pos.sqrtUpper.Gt(low) {
			total.Add(total, pos.liquidity)
			keys = append(keys, key)
		}
	}
	return total, keys
}

func (p *Pool) setPrice(sqrtPriceX96 *uint256.Int, tick int32) {
	prevPrice, prevTick := p.sqrtPriceX96, p.tick
	p.sqrtPriceX96, p.tick = sqrtPriceX96, tick
	p.journal.Record(func() { p.sqrtPriceX96, p.tick = prevPrice, prevTick })
}

func (p *Pool) setPosition(key common.Hash, pos *position) {
	prev, existed := p.positions[key]
	p.positions[key] = pos
	p.journal.Record(func() {
		if existed {
			p.positions[key] = prev
		} else {
			delete(p.positions, key)
		}
	})
}

func minInt(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
