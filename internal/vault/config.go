package vault

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityVault/internal/model"
)

// Unchanged marks a proposal field that keeps its current value.
const Unchanged int32 = -1

// Config is the manager configuration in force.
type Config struct {
	ManagerFeeBPS   uint16
	ProtocolFeeBPS  uint16
	RebalanceBPS    uint16
	SlippageBPS     uint16
	ManagerTreasury common.Address
}

// ConfigProposal queues parameter changes. BPS fields set to Unchanged and a
// zero ManagerTreasury are left as they are.
type ConfigProposal struct {
	ManagerFeeBPS   int32
	ProtocolFeeBPS  int32
	RebalanceBPS    int32
	SlippageBPS     int32
	ManagerTreasury common.Address
}

// NoChanges returns a proposal that changes nothing; set the fields to change.
func NoChanges() ConfigProposal {
	return ConfigProposal{
		ManagerFeeBPS:  Unchanged,
		ProtocolFeeBPS: Unchanged,
		RebalanceBPS:   Unchanged,
		SlippageBPS:    Unchanged,
	}
}

// PendingChange is a queued parameter change.
type PendingChange struct {
	Field       string
	Value       string
	EffectiveAt time.Time
}

// Config resolves every field against the current time.
func (v *Vault) Config() Config {
	return v.configAt(v.now())
}

func (v *Vault) configAt(now time.Time) Config {
	return Config{
		ManagerFeeBPS:   v.st.managerFeeBPS.Get(now),
		ProtocolFeeBPS:  v.st.protocolFeeBPS.Get(now),
		RebalanceBPS:    v.st.rebalanceBPS.Get(now),
		SlippageBPS:     v.st.slippageBPS.Get(now),
		ManagerTreasury: v.st.managerTreasury.Get(now),
	}
}

// PendingConfig lists changes that are queued but not yet in force.
func (v *Vault) PendingConfig() []PendingChange {
	now := v.now()
	var out []PendingChange
	for _, f := range []struct {
		name string
		get  func() (string, time.Time, bool)
	}{
		{"manager_fee_bps", pendingBPS(v.st.managerFeeBPS.Pending, now)},
		{"protocol_fee_bps", pendingBPS(v.st.protocolFeeBPS.Pending, now)},
		{"rebalance_bps", pendingBPS(v.st.rebalanceBPS.Pending, now)},
		{"slippage_bps", pendingBPS(v.st.slippageBPS.Pending, now)},
		{"manager_treasury", func() (string, time.Time, bool) {
			addr, at, ok := v.st.managerTreasury.Pending(now)
			return addr.Hex(), at, ok
		}},
	} {
		if val, at, ok := f.get(); ok {
			out = append(out, PendingChange{Field: f.name, Value: val, EffectiveAt: at})
		}
	}
	return out
}

func pendingBPS(pending func(time.Time) (uint16, time.Time, bool), now time.Time) func() (string, time.Time, bool) {
	return func() (string, time.Time, bool) {
		val, at, ok := pending(now)
		return fmt.Sprintf("%d", val), at, ok
	}
}

// ProposeConfig queues parameter changes. Each changed field takes effect
// after the cooldown; until then reads keep returning the old value.
func (v *Vault) ProposeConfig(caller common.Address, p ConfigProposal) error {
	return v.run("propose config", func(impl *Implementation) error {
		if caller != v.st.manager || caller == (common.Address{}) {
			return ErrAccessDenied
		}
		if err := v.validateProposal(p, impl); err != nil {
			return err
		}

		now := v.now()
		data := model.ConfigProposedData{EffectiveAt: now.Add(v.cooldown).Unix()}
		v.update(func(s *state) {
			if p.ManagerFeeBPS != Unchanged {
				val := uint16(p.ManagerFeeBPS)
				s.managerFeeBPS.Propose(val, now, v.cooldown)
				data.ManagerFeeBPS = &val
			}
			if p.ProtocolFeeBPS != Unchanged {
				val := uint16(p.ProtocolFeeBPS)
				s.protocolFeeBPS.Propose(val, now, v.cooldown)
				data.ProtocolFeeBPS = &val
			}
			if p.RebalanceBPS != Unchanged {
				val := uint16(p.RebalanceBPS)
				s.rebalanceBPS.Propose(val, now, v.cooldown)
				data.RebalanceBPS = &val
			}
			if p.SlippageBPS != Unchanged {
				val := uint16(p.SlippageBPS)
				s.slippageBPS.Propose(val, now, v.cooldown)
				data.SlippageBPS = &val
			}
			if p.ManagerTreasury != (common.Address{}) {
				s.managerTreasury.Propose(p.ManagerTreasury, now, v.cooldown)
				data.ManagerTreasury = p.ManagerTreasury.Hex()
			}
		})

		v.emit(model.EventConfigProposed, data)
		v.journal.OnCommit(func() {
			v.logger.Info("vault config proposed", zap.Time("effective_at", now.Add(v.cooldown)))
		})
		return nil
	})
}

// validateProposal also keeps the protocol fee at or above the
// implementation's rate; the manager may raise it but never remove it.
func (v *Vault) validateProposal(p ConfigProposal, impl *Implementation) error {
	for _, f := range []struct {
		name string
		val  int32
	}{
		{"manager fee", p.ManagerFeeBPS},
		{"protocol fee", p.ProtocolFeeBPS},
		{"rebalance reward", p.RebalanceBPS},
		{"slippage", p.SlippageBPS},
	} {
		if f.val != Unchanged && (f.val < 0 || f.val > maxBPS) {
			return fmt.Errorf("%w: %s %d bps", ErrInvalidConfig, f.name, f.val)
		}
	}

	if p.ProtocolFeeBPS != Unchanged && p.ProtocolFeeBPS < int32(impl.ProtocolFeeBPS) {
		return fmt.Errorf("%w: protocol fee %d bps below %d bps", ErrInvalidConfig, p.ProtocolFeeBPS, impl.ProtocolFeeBPS)
	}

	managerFee := uint32(v.st.managerFeeBPS.Latest())
	if p.ManagerFeeBPS != Unchanged {
		managerFee = uint32(p.ManagerFeeBPS)
	}
	protocolFee := uint32(v.st.protocolFeeBPS.Latest())
	if p.ProtocolFeeBPS != Unchanged {
		protocolFee = uint32(p.ProtocolFeeBPS)
	}
	if managerFee+protocolFee > maxBPS {
		return fmt.Errorf("%w: fees exceed %d bps", ErrInvalidConfig, maxBPS)
	}
	return nil
}
