package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/model"
)

// ToggleRestrictMint flips whether only the manager may mint.
func (v *Vault) ToggleRestrictMint(caller common.Address) error {
	return v.run("toggle restrict mint", func(*Implementation) error {
		if caller != v.st.manager || caller == (common.Address{}) {
			return ErrAccessDenied
		}
		v.update(func(s *state) { s.restrictedMint = !s.restrictedMint })
		restricted := v.st.restrictedMint
		v.emit(model.EventRestrictedMintToggled, model.RestrictedMintData{Restricted: restricted})
		v.journal.OnCommit(func() {
			v.logger.Info("vault restricted mint toggled", zap.Bool("restricted", restricted))
		})
		return nil
	})
}

// TransferOwnership hands the manager role to next.
func (v *Vault) TransferOwnership(caller, next common.Address) error {
	return v.run("transfer ownership", func(*Implementation) error {
		if caller != v.st.manager || caller == (common.Address{}) {
			return ErrAccessDenied
		}
		if next == (common.Address{}) {
			return ErrZeroAddress
		}
		v.setManager(caller, next)
		return nil
	})
}

// RenounceOwnership removes the manager. The manager fee and treasury drop
// to zero at once and unclaimed manager balances fall to the holders.
func (v *Vault) RenounceOwnership(caller common.Address) error {
	return v.run("renounce ownership", func(*Implementation) error {
		if caller != v.st.manager || caller == (common.Address{}) {
			return ErrAccessDenied
		}
		v.update(func(s *state) {
			s.managerFeeBPS.Set(0)
			s.managerTreasury.Set(common.Address{})
			s.managerBalance0 = new(uint256.Int)
			s.managerBalance1 = new(uint256.Int)
		})
		v.setManager(caller, common.Address{})
		return nil
	})
}

func (v *Vault) setManager(prev, next common.Address) {
	v.update(func(s *state) { s.manager = next })
	v.emit(model.EventOwnershipTransferred, model.OwnershipTransferredData{Previous: prev.Hex(), Next: next.Hex()})
	v.journal.OnCommit(func() {
		v.logger.Info("vault ownership transferred", zap.String("previous", prev.Hex()), zap.String("next", next.Hex()))
	})
}

// Snapshot captures the instance's accounting state at the current price.
func (v *Vault) Snapshot(ctx context.Context) (model.VaultSnapshot, error) {
	u, err := v.GetUnderlyingBalances(ctx)
	if err != nil {
		return model.VaultSnapshot{}, err
	}
	idle0, idle1 := v.idle()
	mgr0, mgr1 := v.ManagerBalances()
	proto0, proto1 := v.ProtocolBalances()
	cfg := v.Config()
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return model.VaultSnapshot{}, err
	}

	return model.VaultSnapshot{
		Vault:  v.address.Hex(),
		Name:   v.Name(),
		Symbol: v.Symbol(),
		Pool: model.PoolMeta{
			Address:     v.pool.Address().Hex(),
			Token0:      v.pool.Token0().Hex(),
			Token1:      v.pool.Token1().Hex(),
			Fee:         v.pool.Fee(),
			TickSpacing: v.pool.TickSpacing(),
			Slot0:       &model.PoolSlot0{SqrtPriceX96: str(slot0.SqrtPriceX96), Tick: slot0.Tick},
		},
		Manager:          v.st.manager.Hex(),
		LowerTick:        v.st.lower,
		UpperTick:        v.st.upper,
		TotalSupply:      str(v.TotalSupply()),
		Liquidity:        str(u.Liquidity),
		Underlying0:      str(u.Amount0),
		Underlying1:      str(u.Amount1),
		Idle0:            str(idle0),
		Idle1:            str(idle1),
		ManagerBalance0:  str(mgr0),
		ManagerBalance1:  str(mgr1),
		ProtocolBalance0: str(proto0),
		ProtocolBalance1: str(proto1),
		Config: model.ConfigView{
			ManagerFeeBPS:   cfg.ManagerFeeBPS,
			ProtocolFeeBPS:  cfg.ProtocolFeeBPS,
			RebalanceBPS:    cfg.RebalanceBPS,
			SlippageBPS:     cfg.SlippageBPS,
			ManagerTreasury: cfg.ManagerTreasury.Hex(),
		},
		RestrictedMint: v.st.restrictedMint,
		Timestamp:      v.now().Unix(),
	}, nil
}
