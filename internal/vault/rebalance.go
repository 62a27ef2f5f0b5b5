package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/liquidity"
	"liquidityVault/internal/model"
)

// Phase is a step of a rebalance.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFeesCollected
	PhasePositionWithdrawn
	PhaseSwapped
	PhaseRedeployed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFeesCollected:
		return "fees_collected"
	case PhasePositionWithdrawn:
		return "position_withdrawn"
	case PhaseSwapped:
		return "swapped"
	case PhaseRedeployed:
		return "redeployed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:              {PhaseFeesCollected},
	PhaseFeesCollected:     {PhasePositionWithdrawn},
	PhasePositionWithdrawn: {PhaseSwapped, PhaseRedeployed},
	PhaseSwapped:           {PhaseRedeployed},
	PhaseRedeployed:        {PhaseIdle},
}

// rebalanceRun tracks the phase of one rebalance. Out of order transitions
// are programming errors.
type rebalanceRun struct {
	phase  Phase
	logger *zap.Logger
}

func (r *rebalanceRun) advance(to Phase) {
	for _, next := range phaseTransitions[r.phase] {
		if next == to {
			r.logger.Debug("rebalance phase", zap.Stringer("from", r.phase), zap.Stringer("to", to))
			r.phase = to
			return
		}
	}
	panic(fmt.Sprintf("vault: rebalance cannot move from %s to %s", r.phase, to))
}

// SwapParams bound the optional swap made before redeploying. The swap
// sells SwapAmountBPS of the input token left over after a maximal deposit.
// The pool price must stay within MaxSlippageBPS of ExpectedSqrtPriceX96
// before and after the swap, and MaxSlippageBPS may not exceed the
// configured slippage.
type SwapParams struct {
	ExpectedSqrtPriceX96 *uint256.Int
	MaxSlippageBPS       uint16
	SwapAmountBPS        uint16
	ZeroForOne           bool
}

// RebalanceParams are the keeper's inputs to Rebalance.
type RebalanceParams struct {
	SwapParams
	RewardAmount *uint256.Int
	RewardToken  common.Address
}

// ExecutiveRebalanceParams are the manager's inputs to ExecutiveRebalance.
type ExecutiveRebalanceParams struct {
	SwapParams
	Lower int32
	Upper int32
}

type swapResult struct {
	amountIn  *uint256.Int
	amountOut *uint256.Int
}

// Rebalance compounds earned fees into the current range. Only the keeper
// of the current implementation may call it; it may take a reward of up to
// the configured share of what was earned.
func (v *Vault) Rebalance(ctx context.Context, caller common.Address, p RebalanceParams) error {
	return v.run("rebalance", func(impl *Implementation) error {
		if caller != impl.Keeper || caller == (common.Address{}) {
			return ErrAccessDenied
		}
		run := &rebalanceRun{logger: v.logger}

		pos, err := v.position(ctx)
		if err != nil {
			return err
		}
		leftover0, leftover1 := v.idle()

		fees, err := v.withdraw(ctx, pos.Liquidity, new(uint256.Int))
		if err != nil {
			return err
		}
		run.advance(PhaseFeesCollected)
		net0, net1 := v.applyFees(fees.fee0, fees.fee1)
		if fees.fee0.IsZero() && fees.fee1.IsZero() && leftover0.IsZero() && leftover1.IsZero() {
			return ErrNoFeesEarned
		}

		if _, err := v.withdraw(ctx, pos.Liquidity, pos.Liquidity); err != nil {
			return err
		}
		run.advance(PhasePositionWithdrawn)

		reward := p.RewardAmount
		if reward == nil {
			reward = new(uint256.Int)
		}
		if !reward.IsZero() {
			if !v.isToken(p.RewardToken) {
				return ErrInvalidRewardToken
			}
			earned := new(uint256.Int).Add(net0, leftover0)
			if p.RewardToken == v.token1.Address() {
				earned = new(uint256.Int).Add(net1, leftover1)
			}
			limit := liquidity.MulDivBPS(earned, uint64(v.Config().RebalanceBPS))
			if reward.Gt(limit) {
				return fmt.Errorf("%w: %s > %s", ErrExcessiveReward, str(reward), str(limit))
			}
			if err := v.tokenFor(p.RewardToken).Transfer(v.address, caller, reward); err != nil {
				return err
			}
		}

		swapped, err := v.redeploy(ctx, run, p.SwapParams)
		if err != nil {
			return err
		}
		after, err := v.position(ctx)
		if err != nil {
			return err
		}

		v.emitRebalance(ctx, false, pos.Liquidity, after.Liquidity, swapped, reward, p.RewardToken)
		return nil
	})
}

// ExecutiveRebalance moves the position to a new range. Only the manager may
// call it. With no shares outstanding only the range changes.
func (v *Vault) ExecutiveRebalance(ctx context.Context, caller common.Address, p ExecutiveRebalanceParams) error {
	return v.run("executive rebalance", func(*Implementation) error {
		if caller != v.st.manager || caller == (common.Address{}) {
			return ErrAccessDenied
		}
		if err := liquidity.ValidateRange(p.Lower, p.Upper, v.pool.TickSpacing()); err != nil {
			return err
		}

		if v.shares.TotalSupply().IsZero() {
			v.update(func(s *state) { s.lower, s.upper = p.Lower, p.Upper })
			v.emitRebalance(ctx, true, new(uint256.Int), new(uint256.Int), swapResult{}, nil, common.Address{})
			return nil
		}

		run := &rebalanceRun{logger: v.logger}
		pos, err := v.position(ctx)
		if err != nil {
			return err
		}
		w, err := v.withdraw(ctx, pos.Liquidity, pos.Liquidity)
		if err != nil {
			return err
		}
		run.advance(PhaseFeesCollected)
		v.applyFees(w.fee0, w.fee1)
		run.advance(PhasePositionWithdrawn)

		v.update(func(s *state) { s.lower, s.upper = p.Lower, p.Upper })

		swapped, err := v.redeploy(ctx, run, p.SwapParams)
		if err != nil {
			return err
		}
		after, err := v.position(ctx)
		if err != nil {
			return err
		}
		v.emitRebalance(ctx, true, pos.Liquidity, after.Liquidity, swapped, nil, common.Address{})
		return nil
	})
}

// redeploy runs the optional guarded swap and deploys the maximum liquidity
// the idle balances fund. The new position must be non-empty.
func (v *Vault) redeploy(ctx context.Context, run *rebalanceRun, p SwapParams) (swapResult, error) {
	var swapped swapResult
	if p.SwapAmountBPS > 0 {
		var err error
		if swapped, err = v.guardedSwap(ctx, p); err != nil {
			return swapResult{}, err
		}
		run.advance(PhaseSwapped)
	}

	liq, err := v.deployIdle(ctx)
	if err != nil {
		return swapResult{}, err
	}
	if liq.IsZero() {
		return swapResult{}, ErrEmptyPosition
	}
	run.advance(PhaseRedeployed)
	run.advance(PhaseIdle)
	return swapped, nil
}

// deployIdle adds as much liquidity as idle balances fund.
func (v *Vault) deployIdle(ctx context.Context) (*uint256.Int, error) {
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return nil, err
	}
	idle0, idle1 := v.idle()
	liq, err := liquidity.LiquidityForTicks(slot0.SqrtPriceX96, v.st.lower, v.st.upper, idle0, idle1)
	if err != nil {
		return nil, err
	}
	if liq.IsZero() {
		return liq, nil
	}
	if _, _, err := v.pool.Mint(ctx, v.address, v.st.lower, v.st.upper, liq); err != nil {
		return nil, fmt.Errorf("deploy liquidity: %w", err)
	}
	return liq, nil
}

// guardedSwap sells part of the input token that a maximal deposit would
// leave idle, with the band edge as the price limit.
func (v *Vault) guardedSwap(ctx context.Context, p SwapParams) (swapResult, error) {
	if p.SwapAmountBPS > maxBPS {
		return swapResult{}, fmt.Errorf("%w: swap amount %d bps", ErrInvalidConfig, p.SwapAmountBPS)
	}
	if p.MaxSlippageBPS > v.Config().SlippageBPS {
		return swapResult{}, fmt.Errorf("%w: %d bps above configured %d bps", ErrSlippageExceeded, p.MaxSlippageBPS, v.Config().SlippageBPS)
	}
	if p.ExpectedSqrtPriceX96 == nil || p.ExpectedSqrtPriceX96.IsZero() {
		return swapResult{}, fmt.Errorf("%w: no expected price", ErrSlippageExceeded)
	}
	low, high := priceBand(p.ExpectedSqrtPriceX96, p.MaxSlippageBPS)

	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return swapResult{}, err
	}
	if slot0.SqrtPriceX96.Lt(low) || slot0.SqrtPriceX96.Gt(high) {
		return swapResult{}, fmt.Errorf("%w: price %s outside [%s, %s]", ErrSlippageExceeded, str(slot0.SqrtPriceX96), str(low), str(high))
	}

	idle0, idle1 := v.idle()
	sqrtA, sqrtB, err := liquidity.RangeRatios(v.st.lower, v.st.upper)
	if err != nil {
		return swapResult{}, err
	}
	liq, err := liquidity.LiquidityForAmounts(slot0.SqrtPriceX96, sqrtA, sqrtB, idle0, idle1)
	if err != nil {
		return swapResult{}, err
	}
	need0, need1, err := liquidity.AmountsForLiquidityRoundingUp(slot0.SqrtPriceX96, sqrtA, sqrtB, liq)
	if err != nil {
		return swapResult{}, err
	}
	spare, limit := subFloor(idle1, need1), high
	if p.ZeroForOne {
		spare, limit = subFloor(idle0, need0), low
	}
	amountIn := liquidity.MulDivBPS(spare, uint64(p.SwapAmountBPS))
	if amountIn.IsZero() || slot0.SqrtPriceX96.Eq(limit) {
		return swapResult{amountIn: new(uint256.Int), amountOut: new(uint256.Int)}, nil
	}

	in, out, err := v.pool.Swap(ctx, v.address, v.address, p.ZeroForOne, amountIn, limit)
	if err != nil {
		return swapResult{}, fmt.Errorf("swap: %w", err)
	}
	post, err := v.pool.Slot0(ctx)
	if err != nil {
		return swapResult{}, err
	}
	if post.SqrtPriceX96.Lt(low) || post.SqrtPriceX96.Gt(high) {
		return swapResult{}, fmt.Errorf("%w: post-swap price %s", ErrSlippageExceeded, str(post.SqrtPriceX96))
	}
	return swapResult{amountIn: in, amountOut: out}, nil
}

// priceBand returns expected -/+ slippage, clamped to the valid open range
// of pool prices.
func priceBand(expected *uint256.Int, slippageBPS uint16) (*uint256.Int, *uint256.Int) {
	tol := liquidity.MulDivBPS(expected, uint64(slippageBPS))
	minLimit := new(uint256.Int).AddUint64(liquidity.MinSqrtRatio, 1)
	maxLimit := new(uint256.Int).SubUint64(liquidity.MaxSqrtRatio, 1)

	low := subFloor(expected, tol)
	if low.Lt(minLimit) {
		low = minLimit
	}
	high := new(uint256.Int).Add(expected, tol)
	if high.Gt(maxLimit) {
		high = maxLimit
	}
	return low, high
}

func (v *Vault) emitRebalance(ctx context.Context, executive bool, before, after *uint256.Int, swapped swapResult, reward *uint256.Int, rewardToken common.Address) {
	data := model.RebalanceData{
		Executive:       executive,
		LowerTick:       v.st.lower,
		UpperTick:       v.st.upper,
		LiquidityBefore: str(before),
		LiquidityAfter:  str(after),
	}
	if slot0, err := v.pool.Slot0(ctx); err == nil {
		data.SqrtPriceX96 = str(slot0.SqrtPriceX96)
	}
	if reward != nil && !reward.IsZero() {
		data.Reward = str(reward)
		data.RewardToken = rewardToken.Hex()
	}
	if swapped.amountIn != nil && !swapped.amountIn.IsZero() {
		data.SwapIn = str(swapped.amountIn)
		data.SwapOut = str(swapped.amountOut)
	}
	v.emit(model.EventRebalance, data)

	lower, upper := v.st.lower, v.st.upper
	v.journal.OnCommit(func() {
		v.logger.Info("vault rebalanced",
			zap.Bool("executive", executive),
			zap.Int32("lower_tick", lower),
			zap.Int32("upper_tick", upper),
			zap.String("liquidity_before", str(before)),
			zap.String("liquidity_after", str(after)),
		)
	})
}
