package simulate

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/config"
	"liquidityVault/internal/registry"
	"liquidityVault/internal/token"
	"liquidityVault/internal/vault"
)

func (r *Runner) apply(ctx context.Context, step config.Step) error {
	if step.Action == config.ActionAdvance {
		r.world.clock.now = r.world.clock.now.Add(step.Advance)
		return nil
	}

	caller, err := r.caller(step)
	if err != nil {
		return err
	}

	switch step.Action {
	case config.ActionDeploy, config.ActionDeployStatic:
		return r.deploy(ctx, caller, step)
	case config.ActionSwap:
		return r.swap(ctx, caller, step)
	case config.ActionSetImplementation:
		var impl *vault.Implementation
		if step.Version != "" {
			if impl, err = r.world.implementation(step.Version); err != nil {
				return err
			}
		}
		return r.world.registry.SetImplementation(caller, impl)
	case config.ActionUpgrade:
		var impl *vault.Implementation
		if step.Version != "" {
			if impl, err = r.world.implementation(step.Version); err != nil {
				return err
			}
		}
		instances, err := r.world.vaults(step.Instances)
		if err != nil {
			return err
		}
		return r.world.registry.UpgradeImplementation(caller, instances, impl)
	case config.ActionMakeImmutable:
		instances, err := r.world.vaults(step.Instances)
		if err != nil {
			return err
		}
		return r.world.registry.MakeImmutable(caller, instances)
	case config.ActionTransferOwnership, config.ActionRenounceOwnership:
		if step.Vault == "" {
			return r.registryOwnership(caller, step)
		}
	}

	v, err := r.world.vault(step.Vault)
	if err != nil {
		return err
	}

	switch step.Action {
	case config.ActionMint:
		return r.mint(ctx, caller, v, step)
	case config.ActionBurn:
		return r.burn(ctx, caller, v, step)
	case config.ActionRebalance:
		return r.rebalance(ctx, caller, v, step)
	case config.ActionExecutiveRebalance:
		swap, err := r.swapParams(ctx, v, step)
		if err != nil {
			return err
		}
		return v.ExecutiveRebalance(ctx, caller, vault.ExecutiveRebalanceParams{
			SwapParams: swap,
			Lower:      step.Lower,
			Upper:      step.Upper,
		})
	case config.ActionPropose:
		p, err := proposal(step.Proposal)
		if err != nil {
			return err
		}
		return v.ProposeConfig(caller, p)
	case config.ActionWithdrawManager:
		_, _, err := v.WithdrawManagerBalance(ctx, caller)
		return err
	case config.ActionWithdrawProtocol:
		_, _, err := v.WithdrawProtocolBalance(ctx, caller)
		return err
	case config.ActionToggleRestricted:
		return v.ToggleRestrictMint(caller)
	case config.ActionTransferOwnership:
		next, err := ParseAccount(step.Recipient)
		if err != nil {
			return fmt.Errorf("new manager: %w", err)
		}
		return v.TransferOwnership(caller, next)
	case config.ActionRenounceOwnership:
		return v.RenounceOwnership(caller)
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

func (r *Runner) caller(step config.Step) (common.Address, error) {
	if step.Caller == "" {
		return common.Address{}, fmt.Errorf("caller is required")
	}
	return ParseAccount(step.Caller)
}

func (r *Runner) recipient(step config.Step, caller common.Address) (common.Address, error) {
	if step.Recipient == "" {
		return caller, nil
	}
	return ParseAccount(step.Recipient)
}

func (r *Runner) deploy(ctx context.Context, caller common.Address, step config.Step) error {
	t0, err := r.world.token(step.Token0)
	if err != nil {
		return err
	}
	t1, err := r.world.token(step.Token1)
	if err != nil {
		return err
	}
	amount0, err := ParseAmount(step.Amount0)
	if err != nil {
		return err
	}
	amount1, err := ParseAmount(step.Amount1)
	if err != nil {
		return err
	}

	p := registry.DeployParams{
		Token0:         t0.Address(),
		Token1:         t1.Address(),
		FeeTier:        step.Fee,
		ManagerFeeBPS:  step.ManagerFeeBPS,
		Lower:          step.Lower,
		Upper:          step.Upper,
		InitialDeposit: registry.Deposit{Amount0: amount0, Amount1: amount1},
	}
	if !p.InitialDeposit.Amount0.IsZero() || !p.InitialDeposit.Amount1.IsZero() {
		next := r.world.registry.NextInstanceAddress()
		if err := approveAll(caller, next, t0, t1); err != nil {
			return err
		}
	}

	var addr common.Address
	if step.Action == config.ActionDeployStatic {
		addr, err = r.world.registry.DeployStatic(ctx, caller, p)
	} else {
		manager := caller
		if step.Manager != "" {
			if manager, err = ParseAccount(step.Manager); err != nil {
				return fmt.Errorf("manager: %w", err)
			}
		}
		p.Manager = manager
		addr, err = r.world.registry.DeployManaged(ctx, caller, p)
	}
	if err != nil {
		return err
	}
	if step.Label != "" {
		r.world.labels[step.Label] = addr
	}
	return nil
}

func (r *Runner) mint(ctx context.Context, caller common.Address, v *vault.Vault, step config.Step) error {
	recipient, err := r.recipient(step, caller)
	if err != nil {
		return err
	}
	max0, err := ParseAmount(step.Amount0)
	if err != nil {
		return err
	}
	max1, err := ParseAmount(step.Amount1)
	if err != nil {
		return err
	}
	t0, t1 := r.ledger(v.Token0()), r.ledger(v.Token1())
	if err := approveAll(caller, v.Address(), t0, t1); err != nil {
		return err
	}
	quote, err := v.GetMintAmounts(ctx, max0, max1)
	if err != nil {
		return err
	}
	_, err = v.Mint(ctx, caller, quote.Shares, recipient)
	return err
}

func (r *Runner) burn(ctx context.Context, caller common.Address, v *vault.Vault, step config.Step) error {
	recipient, err := r.recipient(step, caller)
	if err != nil {
		return err
	}
	var shares *uint256.Int
	if step.Shares == "all" {
		shares = v.BalanceOf(caller)
	} else if shares, err = ParseAmount(step.Shares); err != nil {
		return err
	}
	_, err = v.Burn(ctx, caller, shares, recipient)
	return err
}

func (r *Runner) rebalance(ctx context.Context, caller common.Address, v *vault.Vault, step config.Step) error {
	swap, err := r.swapParams(ctx, v, step)
	if err != nil {
		return err
	}
	reward, err := ParseAmount(step.RewardAmount)
	if err != nil {
		return err
	}
	p := vault.RebalanceParams{SwapParams: swap, RewardAmount: reward}
	if step.RewardToken != "" {
		t, err := r.world.token(step.RewardToken)
		if err != nil {
			return err
		}
		p.RewardToken = t.Address()
	}
	return v.Rebalance(ctx, caller, p)
}

// swapParams fills the guarded swap; without an expected price the current
// pool price is used.
func (r *Runner) swapParams(ctx context.Context, v *vault.Vault, step config.Step) (vault.SwapParams, error) {
	p := vault.SwapParams{
		MaxSlippageBPS: step.MaxSlippageBPS,
		SwapAmountBPS:  step.SwapAmountBPS,
		ZeroForOne:     step.ZeroForOne,
	}
	if step.ExpectedSqrtPriceX96 != "" {
		expected, err := ParseAmount(step.ExpectedSqrtPriceX96)
		if err != nil {
			return p, err
		}
		p.ExpectedSqrtPriceX96 = expected
		return p, nil
	}
	slot0, err := v.Pool().Slot0(ctx)
	if err != nil {
		return p, err
	}
	p.ExpectedSqrtPriceX96 = slot0.SqrtPriceX96
	return p, nil
}

// swap trades directly against a pool, moving its price and accruing fees to
// in-range positions.
func (r *Runner) swap(ctx context.Context, caller common.Address, step config.Step) error {
	var pool vault.Pool
	if step.Vault != "" {
		v, err := r.world.vault(step.Vault)
		if err != nil {
			return err
		}
		pool = v.Pool()
	} else {
		t0, err := r.world.token(step.Token0)
		if err != nil {
			return err
		}
		t1, err := r.world.token(step.Token1)
		if err != nil {
			return err
		}
		p, ok := r.world.factory.GetPool(t0.Address(), t1.Address(), step.Fee)
		if !ok {
			return fmt.Errorf("%w: %s/%s %d", registry.ErrPoolNotFound, step.Token0, step.Token1, step.Fee)
		}
		pool = p
	}
	amountIn, err := ParseAmount(step.AmountIn)
	if err != nil {
		return err
	}
	return r.world.journal.Atomic(func() error {
		_, _, err := pool.Swap(ctx, caller, caller, step.ZeroForOne, amountIn, priceLimit(step.ZeroForOne))
		return err
	})
}

func (r *Runner) registryOwnership(caller common.Address, step config.Step) error {
	if step.Action == config.ActionRenounceOwnership {
		return r.world.registry.RenounceOwnership(caller)
	}
	next, err := ParseAccount(step.Recipient)
	if err != nil {
		return fmt.Errorf("new owner: %w", err)
	}
	return r.world.registry.TransferOwnership(caller, next)
}

func (r *Runner) ledger(addr common.Address) *token.Ledger {
	for _, t := range r.world.tokens {
		if t.Address() == addr {
			return t
		}
	}
	return nil
}

func approveAll(owner, spender common.Address, ledgers ...*token.Ledger) error {
	for _, l := range ledgers {
		if l == nil {
			continue
		}
		if err := l.Approve(owner, spender, token.MaxAllowance); err != nil {
			return err
		}
	}
	return nil
}

func proposal(spec config.ProposalSpec) (vault.ConfigProposal, error) {
	p := vault.NoChanges()
	if spec.ManagerFeeBPS != nil {
		p.ManagerFeeBPS = *spec.ManagerFeeBPS
	}
	if spec.ProtocolFeeBPS != nil {
		p.ProtocolFeeBPS = *spec.ProtocolFeeBPS
	}
	if spec.RebalanceBPS != nil {
		p.RebalanceBPS = *spec.RebalanceBPS
	}
	if spec.SlippageBPS != nil {
		p.SlippageBPS = *spec.SlippageBPS
	}
	if spec.ManagerTreasury != "" {
		treasury, err := ParseAccount(spec.ManagerTreasury)
		if err != nil {
			return p, fmt.Errorf("manager treasury: %w", err)
		}
		p.ManagerTreasury = treasury
	}
	return p, nil
}
