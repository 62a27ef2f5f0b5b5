package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/liquidity"
	"liquidityVault/internal/model"
)

// feeSplit is how raw fees divide between manager and protocol; the rest
// accrues to holders.
type feeSplit struct {
	manager0, manager1   *uint256.Int
	protocol0, protocol1 *uint256.Int
}

func (v *Vault) splitFees(fee0, fee1 *uint256.Int) feeSplit {
	cfg := v.Config()
	return feeSplit{
		manager0:  liquidity.MulDivBPS(fee0, uint64(cfg.ManagerFeeBPS)),
		manager1:  liquidity.MulDivBPS(fee1, uint64(cfg.ManagerFeeBPS)),
		protocol0: liquidity.MulDivBPS(fee0, uint64(cfg.ProtocolFeeBPS)),
		protocol1: liquidity.MulDivBPS(fee1, uint64(cfg.ProtocolFeeBPS)),
	}
}

// netOfAdminFees returns the holders' portion of raw fees.
func (v *Vault) netOfAdminFees(fee0, fee1 *uint256.Int) (*uint256.Int, *uint256.Int) {
	s := v.splitFees(fee0, fee1)
	net0 := subFloor(subFloor(fee0, s.manager0), s.protocol0)
	net1 := subFloor(subFloor(fee1, s.manager1), s.protocol1)
	return net0, net1
}

// applyFees credits the manager and protocol shares of freshly collected
// fees to the fee ledger and returns the holders' portion.
func (v *Vault) applyFees(fee0, fee1 *uint256.Int) (*uint256.Int, *uint256.Int) {
	if fee0.IsZero() && fee1.IsZero() {
		return new(uint256.Int), new(uint256.Int)
	}
	s := v.splitFees(fee0, fee1)
	v.update(func(st *state) {
		st.managerBalance0.Add(st.managerBalance0, s.manager0)
		st.managerBalance1.Add(st.managerBalance1, s.manager1)
		st.protocolBalance0.Add(st.protocolBalance0, s.protocol0)
		st.protocolBalance1.Add(st.protocolBalance1, s.protocol1)
	})
	v.emit(model.EventFeesEarned, model.FeesEarnedData{
		Fee0:         str(fee0),
		Fee1:         str(fee1),
		ManagerFee0:  str(s.manager0),
		ManagerFee1:  str(s.manager1),
		ProtocolFee0: str(s.protocol0),
		ProtocolFee1: str(s.protocol1),
	})
	return subFloor(subFloor(fee0, s.manager0), s.protocol0), subFloor(subFloor(fee1, s.manager1), s.protocol1)
}

// WithdrawManagerBalance pays the manager's accrued fees to the manager
// treasury. Anyone may trigger it.
func (v *Vault) WithdrawManagerBalance(ctx context.Context, caller common.Address) (*uint256.Int, *uint256.Int, error) {
	var amount0, amount1 *uint256.Int
	err := v.run("withdraw manager balance", func(*Implementation) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		treasury := v.Config().ManagerTreasury
		if treasury == (common.Address{}) {
			return ErrNoTreasury
		}
		amount0, amount1 = v.ManagerBalances()
		v.update(func(s *state) {
			s.managerBalance0 = new(uint256.Int)
			s.managerBalance1 = new(uint256.Int)
		})
		if err := v.payout(treasury, amount0, amount1); err != nil {
			return err
		}
		if amount0.IsZero() && amount1.IsZero() {
			return nil
		}
		v.emit(model.EventManagerBalanceWithdrawn, model.BalanceWithdrawnData{
			Recipient: treasury.Hex(), Amount0: str(amount0), Amount1: str(amount1),
		})
		v.journal.OnCommit(func() {
			v.logger.Info("manager balance withdrawn",
				zap.String("treasury", treasury.Hex()),
				zap.String("caller", caller.Hex()),
				zap.String("amount0", str(amount0)),
				zap.String("amount1", str(amount1)),
			)
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// WithdrawProtocolBalance pays the protocol's accrued fees to the protocol
// treasury of the current implementation. Anyone may trigger it.
func (v *Vault) WithdrawProtocolBalance(ctx context.Context, caller common.Address) (*uint256.Int, *uint256.Int, error) {
	var amount0, amount1 *uint256.Int
	err := v.run("withdraw protocol balance", func(impl *Implementation) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		treasury := impl.ProtocolTreasury
		if treasury == (common.Address{}) {
			return ErrNoTreasury
		}
		amount0, amount1 = v.ProtocolBalances()
		v.update(func(s *state) {
			s.protocolBalance0 = new(uint256.Int)
			s.protocolBalance1 = new(uint256.Int)
		})
		if err := v.payout(treasury, amount0, amount1); err != nil {
			return err
		}
		if amount0.IsZero() && amount1.IsZero() {
			return nil
		}
		v.emit(model.EventProtocolBalanceWithdrawn, model.BalanceWithdrawnData{
			Recipient: treasury.Hex(), Amount0: str(amount0), Amount1: str(amount1),
		})
		v.journal.OnCommit(func() {
			v.logger.Info("protocol balance withdrawn",
				zap.String("treasury", treasury.Hex()),
				zap.String("caller", caller.Hex()),
				zap.String("amount0", str(amount0)),
				zap.String("amount1", str(amount1)),
			)
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (v *Vault) payout(to common.Address, amount0, amount1 *uint256.Int) error {
	if !amount0.IsZero() {
		if err := v.token0.Transfer(v.address, to, amount0); err != nil {
			return err
		}
	}
	if !amount1.IsZero() {
		if err := v.token1.Transfer(v.address, to, amount1); err != nil {
			return err
		}
	}
	return nil
}
