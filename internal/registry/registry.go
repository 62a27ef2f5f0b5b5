// Package registry deploys vault instances and owns the indirection that
// points each instance at its implementation. It tracks instances by
// deployer and lets the registry owner upgrade or permanently lock them.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/journal"
	"liquidityVault/internal/liquidity"
	"liquidityVault/internal/model"
	"liquidityVault/internal/vault"
)

// PoolFactory resolves the pool an instance deploys into.
type PoolFactory interface {
	GetPool(tokenA, tokenB common.Address, fee uint32) (*amm.Pool, bool)
}

// TokenDirectory maps token addresses to their ledgers.
type TokenDirectory map[common.Address]vault.Token

// Params configures a Registry.
type Params struct {
	Address        common.Address
	Owner          common.Address
	Pools          PoolFactory
	Tokens         TokenDirectory
	Implementation *vault.Implementation
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithEventSink sets where registry and instance events go.
func WithEventSink(s vault.EventSink) Option {
	return func(r *Registry) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithClock sets the clock handed to every deployed instance.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry is not safe for concurrent use.
type Registry struct {
	address common.Address
	journal *journal.Journal
	pools   PoolFactory
	tokens  TokenDirectory
	logger  *zap.Logger
	sink    vault.EventSink
	now     func() time.Time

	owner      common.Address
	impl       *vault.Implementation
	nonce      uint64
	entries    map[common.Address]*entry
	instances  []common.Address
	deployers  []common.Address
	byDeployer map[common.Address][]common.Address
}

type entry struct {
	vault     *vault.Vault
	deployer  common.Address
	impl      *vault.Implementation
	immutable bool
}

// New returns an empty registry journaling into j.
func New(j *journal.Journal, p Params, opts ...Option) *Registry {
	r := &Registry{
		address:    p.Address,
		journal:    j,
		pools:      p.Pools,
		tokens:     p.Tokens,
		logger:     zap.NewNop(),
		sink:       vault.EventSinkFunc(func(model.VaultEvent) {}),
		now:        time.Now,
		owner:      p.Owner,
		impl:       p.Implementation,
		nonce:      1,
		entries:    make(map[common.Address]*entry),
		byDeployer: make(map[common.Address][]common.Address),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sink = &sequencer{next: r.sink}
	return r
}

// sequencer numbers registry and instance events in one commit order.
type sequencer struct {
	next vault.EventSink
	seq  uint64
}

func (s *sequencer) Publish(ev model.VaultEvent) {
	s.seq++
	ev.Seq = s.seq
	s.next.Publish(ev)
}

func (r *Registry) Address() common.Address { return r.address }
func (r *Registry) Owner() common.Address   { return r.owner }

// Implementation returns the implementation new instances point at.
func (r *Registry) Implementation() *vault.Implementation { return r.impl }

// ResolveImplementation returns the implementation an instance points at,
// or nil for instances this registry did not deploy.
func (r *Registry) ResolveImplementation(instance common.Address) *vault.Implementation {
	if e, ok := r.entries[instance]; ok {
		return e.impl
	}
	return nil
}

// NextInstanceAddress is the address the next deployment will receive.
// Depositors approve it before a deploy with an initial deposit.
func (r *Registry) NextInstanceAddress() common.Address {
	return crypto.CreateAddress(r.address, r.nonce)
}

// GetDeployers lists every address that deployed an instance, in order of
// first deployment.
func (r *Registry) GetDeployers() []common.Address {
	return append([]common.Address(nil), r.deployers...)
}

// GetInstancesByDeployer lists the instances deployed by deployer.
func (r *Registry) GetInstancesByDeployer(deployer common.Address) []common.Address {
	return append([]common.Address(nil), r.byDeployer[deployer]...)
}

// NumInstances counts every deployed instance.
func (r *Registry) NumInstances() int { return len(r.instances) }

// Instances lists every deployed instance in deployment order.
func (r *Registry) Instances() []common.Address {
	return append([]common.Address(nil), r.instances...)
}

// Instance returns a deployed instance.
func (r *Registry) Instance(addr common.Address) (*vault.Vault, bool) {
	e, ok := r.entries[addr]
	if !ok {
		return nil, false
	}
	return e.vault, true
}

// Entry describes a deployed instance.
func (r *Registry) Entry(addr common.Address) (model.RegistryEntry, bool) {
	e, ok := r.entries[addr]
	if !ok {
		return model.RegistryEntry{}, false
	}
	out := model.RegistryEntry{
		Instance:  addr.Hex(),
		Deployer:  e.deployer.Hex(),
		Pool:      e.vault.Pool().Address().Hex(),
		Immutable: e.immutable,
	}
	if e.impl != nil {
		out.Implementation = e.impl.Address.Hex()
	}
	return out, true
}

// IsImmutable reports whether an instance's implementation is locked.
func (r *Registry) IsImmutable(addr common.Address) bool {
	e, ok := r.entries[addr]
	return ok && e.immutable
}

// GetAdmin returns the address allowed to repoint an instance: the registry
// itself, or zero once the instance is immutable or unknown.
func (r *Registry) GetAdmin(addr common.Address) common.Address {
	e, ok := r.entries[addr]
	if !ok || e.immutable {
		return common.Address{}
	}
	return r.address
}

// DeployParams describes a new instance. A zero Manager deploys a static
// instance with no manager fee.
type DeployParams struct {
	Token0        common.Address
	Token1        common.Address
	FeeTier       uint32
	Manager       common.Address
	ManagerFeeBPS uint16
	Lower         int32
	Upper         int32
	// InitialDeposit, when non-zero, is minted by the caller right after
	// deployment. The caller must have approved NextInstanceAddress.
	InitialDeposit Deposit
}

// Deposit is a pair of maximum token amounts.
type Deposit struct {
	Amount0 *uint256.Int
	Amount1 *uint256.Int
}

func (d Deposit) empty() bool {
	return (d.Amount0 == nil || d.Amount0.IsZero()) && (d.Amount1 == nil || d.Amount1.IsZero())
}

// DeployManaged deploys an instance run by p.Manager.
func (r *Registry) DeployManaged(ctx context.Context, caller common.Address, p DeployParams) (common.Address, error) {
	if p.Manager == (common.Address{}) {
		return common.Address{}, fmt.Errorf("deploy managed: %w", vault.ErrZeroAddress)
	}
	return r.Deploy(ctx, caller, p)
}

// DeployStatic deploys an instance with no manager.
func (r *Registry) DeployStatic(ctx context.Context, caller common.Address, p DeployParams) (common.Address, error) {
	p.Manager = common.Address{}
	p.ManagerFeeBPS = 0
	return r.Deploy(ctx, caller, p)
}

// Deploy creates an instance for the pair and fee tier and registers it
// under caller.
func (r *Registry) Deploy(ctx context.Context, caller common.Address, p DeployParams) (common.Address, error) {
	var addr common.Address
	err := r.journal.Atomic(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.impl == nil {
			return vault.ErrNoImplementation
		}
		if p.Token0 == p.Token1 {
			return ErrIdenticalTokens
		}
		token0, token1 := amm.SortTokens(p.Token0, p.Token1)
		pool, ok := r.pools.GetPool(token0, token1, p.FeeTier)
		if !ok {
			return fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, token0.Hex(), token1.Hex(), p.FeeTier)
		}
		if err := liquidity.ValidateRange(p.Lower, p.Upper, pool.TickSpacing()); err != nil {
			return err
		}
		t0, ok := r.tokens[token0]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownToken, token0.Hex())
		}
		t1, ok := r.tokens[token1]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownToken, token1.Hex())
		}

		addr = r.NextInstanceAddress()
		v, err := vault.New(r.journal, vault.Params{
			Address:        addr,
			Pool:           pool,
			Token0:         t0,
			Token1:         t1,
			Manager:        p.Manager,
			ManagerFeeBPS:  p.ManagerFeeBPS,
			ProtocolFeeBPS: r.impl.ProtocolFeeBPS,
			Lower:          p.Lower,
			Upper:          p.Upper,
			Ordinal:        len(r.instances) + 1,
		}, r,
			vault.WithLogger(r.logger),
			vault.WithEventSink(r.sink),
			vault.WithClock(r.now),
		)
		if err != nil {
			return err
		}
		r.register(caller, v)

		if !p.InitialDeposit.empty() {
			if err := r.initialDeposit(ctx, caller, v, p.InitialDeposit); err != nil {
				return fmt.Errorf("initial deposit: %w", err)
			}
		}

		r.emit(addr, model.EventDeployed, model.DeployedData{
			Deployer:       caller.Hex(),
			Pool:           pool.Address().Hex(),
			Manager:        p.Manager.Hex(),
			Implementation: r.impl.Address.Hex(),
		})
		r.journal.OnCommit(func() {
			r.logger.Info("instance deployed",
				zap.String("instance", addr.Hex()),
				zap.String("deployer", caller.Hex()),
				zap.String("pool", pool.Address().Hex()),
				zap.Int32("lower_tick", p.Lower),
				zap.Int32("upper_tick", p.Upper),
			)
		})
		return nil
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy: %w", err)
	}
	return addr, nil
}

func (r *Registry) initialDeposit(ctx context.Context, caller common.Address, v *vault.Vault, d Deposit) error {
	max0, max1 := d.Amount0, d.Amount1
	if max0 == nil {
		max0 = new(uint256.Int)
	}
	if max1 == nil {
		max1 = new(uint256.Int)
	}
	q, err := v.GetMintAmounts(ctx, max0, max1)
	if err != nil {
		return err
	}
	_, err = v.Mint(ctx, caller, q.Shares, caller)
	return err
}

func (r *Registry) register(deployer common.Address, v *vault.Vault) {
	addr := v.Address()
	prevNonce := r.nonce
	r.nonce++
	r.entries[addr] = &entry{vault: v, deployer: deployer, impl: r.impl}
	r.instances = append(r.instances, addr)
	_, known := r.byDeployer[deployer]
	if !known {
		r.deployers = append(r.deployers, deployer)
	}
	r.byDeployer[deployer] = append(r.byDeployer[deployer], addr)

	r.journal.Record(func() {
		r.nonce = prevNonce
		delete(r.entries, addr)
		r.instances = r.instances[:len(r.instances)-1]
		list := r.byDeployer[deployer]
		if len(list) == 1 {
			delete(r.byDeployer, deployer)
		} else {
			r.byDeployer[deployer] = list[:len(list)-1]
		}
		if !known {
			r.deployers = r.deployers[:len(r.deployers)-1]
		}
	})
}

// SetImplementation changes the implementation future deployments point
// at. Existing instances are unaffected.
func (r *Registry) SetImplementation(caller common.Address, impl *vault.Implementation) error {
	return r.ownerOnly("set implementation", caller, func() error {
		prev := r.impl
		r.impl = impl
		r.journal.Record(func() { r.impl = prev })
		r.journal.OnCommit(func() {
			r.logger.Info("registry implementation set", zap.Stringer("implementation", implAddress(impl)))
		})
		return nil
	})
}

// UpgradeImplementation repoints every listed instance at impl. If any
// instance is unknown or immutable nothing changes.
func (r *Registry) UpgradeImplementation(caller common.Address, instances []common.Address, impl *vault.Implementation) error {
	return r.ownerOnly("upgrade implementation", caller, func() error {
		return r.upgrade(instances, impl)
	})
}

// UpgradeImplementationAndCall upgrades the listed instances and then runs
// calls[i] against instances[i]. A failing call undoes every upgrade.
func (r *Registry) UpgradeImplementationAndCall(caller common.Address, instances []common.Address, impl *vault.Implementation, calls []func(*vault.Vault) error) error {
	return r.ownerOnly("upgrade implementation and call", caller, func() error {
		if len(calls) != len(instances) {
			return fmt.Errorf("%w: %d instances, %d calls", ErrCallMismatch, len(instances), len(calls))
		}
		if err := r.upgrade(instances, impl); err != nil {
			return err
		}
		for i, addr := range instances {
			if calls[i] == nil {
				continue
			}
			if err := calls[i](r.entries[addr].vault); err != nil {
				return fmt.Errorf("call %s: %w", addr.Hex(), err)
			}
		}
		return nil
	})
}

// upgrade points instances at impl. A nil impl leaves them unusable until
// a later upgrade.
func (r *Registry) upgrade(instances []common.Address, impl *vault.Implementation) error {
	if err := r.checkMutable(instances); err != nil {
		return err
	}
	data := model.UpgradedData{Implementation: common.Address{}.Hex()}
	if impl != nil {
		data = model.UpgradedData{Implementation: impl.Address.Hex(), Version: impl.Version}
	}
	for _, addr := range instances {
		e := r.entries[addr]
		prev := e.impl
		e.impl = impl
		r.journal.Record(func() { e.impl = prev })
		r.emit(addr, model.EventUpgraded, data)
	}
	n := len(instances)
	r.journal.OnCommit(func() {
		r.logger.Info("instances upgraded", zap.Int("count", n), zap.String("implementation", data.Implementation))
	})
	return nil
}

// MakeImmutable locks the listed instances to their current
// implementation. It cannot be undone.
func (r *Registry) MakeImmutable(caller common.Address, instances []common.Address) error {
	return r.ownerOnly("make immutable", caller, func() error {
		if err := r.checkMutable(instances); err != nil {
			return err
		}
		for _, addr := range instances {
			e := r.entries[addr]
			e.immutable = true
			r.journal.Record(func() { e.immutable = false })
			r.emit(addr, model.EventMadeImmutable, nil)
		}
		n := len(instances)
		r.journal.OnCommit(func() {
			r.logger.Info("instances made immutable", zap.Int("count", n))
		})
		return nil
	})
}

func (r *Registry) checkMutable(instances []common.Address) error {
	for _, addr := range instances {
		e, ok := r.entries[addr]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownInstance, addr.Hex())
		}
		if e.immutable {
			return fmt.Errorf("%w: %s", ErrInstanceImmutable, addr.Hex())
		}
	}
	return nil
}

// TransferOwnership hands the registry to next.
func (r *Registry) TransferOwnership(caller, next common.Address) error {
	if next == (common.Address{}) {
		return fmt.Errorf("transfer ownership: %w", vault.ErrZeroAddress)
	}
	return r.ownerOnly("transfer ownership", caller, func() error {
		r.setOwner(next)
		return nil
	})
}

// RenounceOwnership leaves the registry without an owner. Every owner-only
// operation fails from then on.
func (r *Registry) RenounceOwnership(caller common.Address) error {
	return r.ownerOnly("renounce ownership", caller, func() error {
		r.setOwner(common.Address{})
		return nil
	})
}

func (r *Registry) setOwner(next common.Address) {
	prev := r.owner
	r.owner = next
	r.journal.Record(func() { r.owner = prev })
	r.emit(r.address, model.EventOwnershipTransferred, model.OwnershipTransferredData{Previous: prev.Hex(), Next: next.Hex()})
}

func (r *Registry) ownerOnly(op string, caller common.Address, fn func() error) error {
	err := r.journal.Atomic(func() error {
		if r.owner == (common.Address{}) || caller != r.owner {
			return ErrAccessDenied
		}
		return fn()
	})
	if err != nil {
		r.logger.Debug("registry operation rejected", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *Registry) emit(subject common.Address, kind string, data interface{}) {
	ts := r.now().Unix()
	r.journal.OnCommit(func() {
		r.sink.Publish(model.VaultEvent{
			Vault:     subject.Hex(),
			Kind:      kind,
			Timestamp: ts,
			Data:      data,
		})
	})
}

func implAddress(impl *vault.Implementation) common.Address {
	if impl == nil {
		return common.Address{}
	}
	return impl.Address
}
