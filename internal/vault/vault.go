// Package vault implements a pooled concentrated liquidity position: shares
// are minted and burned against one position in one pool, fees are split
// between holders, manager and protocol, and the position can be redeployed
// by a keeper or moved to a new range by the manager.
//
// A Vault is not safe for concurrent use. Every exported operation runs as
// one atomic unit on the shared journal: it either applies in full or leaves
// the instance, its pool and the token ledgers untouched.
package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/journal"
	"liquidityVault/internal/liquidity"
	"liquidityVault/internal/model"
	"liquidityVault/internal/oracle"
	"liquidityVault/internal/timelock"
	"liquidityVault/internal/token"
)

const (
	ShareDecimals = 18

	DefaultRebalanceBPS   = 200
	DefaultSlippageBPS    = 500
	DefaultProtocolFeeBPS = 250
	DefaultCooldown       = 300 * time.Second

	maxBPS = 10_000
)

// Params describes a new instance.
type Params struct {
	Address        common.Address
	Pool           Pool
	Token0         Token
	Token1         Token
	Manager        common.Address
	ManagerFeeBPS  uint16
	ProtocolFeeBPS uint16
	Lower          int32
	Upper          int32
	// Ordinal numbers the share symbol, RV-<Ordinal>.
	Ordinal int
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(v *Vault) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithEventSink sets where committed events go.
func WithEventSink(s EventSink) Option {
	return func(v *Vault) {
		if s != nil {
			v.sink = s
		}
	}
}

// WithClock overrides the time source used by the parameter timelock.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		if now != nil {
			v.now = now
		}
	}
}

// WithCooldown overrides the delay before proposed parameters take effect.
func WithCooldown(d time.Duration) Option {
	return func(v *Vault) { v.cooldown = d }
}

// Vault is one deployed instance.
type Vault struct {
	address  common.Address
	journal  *journal.Journal
	pool     Pool
	token0   Token
	token1   Token
	shares   *token.Ledger
	impls    ImplementationResolver
	logger   *zap.Logger
	sink     EventSink
	now      func() time.Time
	cooldown time.Duration
	// seq numbers this instance's own events. A registry sink renumbers
	// them into its global commit order.
	seq uint64

	st *state
}

type state struct {
	lower          int32
	upper          int32
	manager        common.Address
	restrictedMint bool

	managerBalance0  *uint256.Int
	managerBalance1  *uint256.Int
	protocolBalance0 *uint256.Int
	protocolBalance1 *uint256.Int

	managerFeeBPS   timelock.Value[uint16]
	protocolFeeBPS  timelock.Value[uint16]
	rebalanceBPS    timelock.Value[uint16]
	slippageBPS     timelock.Value[uint16]
	managerTreasury timelock.Value[common.Address]
}

func (s *state) clone() *state {
	cp := *s
	cp.managerBalance0 = new(uint256.Int).Set(s.managerBalance0)
	cp.managerBalance1 = new(uint256.Int).Set(s.managerBalance1)
	cp.protocolBalance0 = new(uint256.Int).Set(s.protocolBalance0)
	cp.protocolBalance1 = new(uint256.Int).Set(s.protocolBalance1)
	return &cp
}

// New creates an instance with its range set and no liquidity.
func New(j *journal.Journal, p Params, impls ImplementationResolver, opts ...Option) (*Vault, error) {
	if p.Pool == nil || p.Token0 == nil || p.Token1 == nil {
		return nil, fmt.Errorf("new vault: pool and tokens are required")
	}
	if p.Token0.Address() != p.Pool.Token0() || p.Token1.Address() != p.Pool.Token1() {
		return nil, ErrTokenMismatch
	}
	if err := liquidity.ValidateRange(p.Lower, p.Upper, p.Pool.TickSpacing()); err != nil {
		return nil, err
	}
	if uint32(p.ManagerFeeBPS)+uint32(p.ProtocolFeeBPS) > maxBPS {
		return nil, fmt.Errorf("%w: fees exceed %d bps", ErrInvalidConfig, maxBPS)
	}

	name := fmt.Sprintf("Range Vault %s/%s", p.Token0.Symbol(), p.Token1.Symbol())
	symbol := fmt.Sprintf("RV-%d", p.Ordinal)
	v := &Vault{
		address:  p.Address,
		journal:  j,
		pool:     p.Pool,
		token0:   p.Token0,
		token1:   p.Token1,
		shares:   token.NewLedger(j, p.Address, name, symbol, ShareDecimals),
		impls:    impls,
		logger:   zap.NewNop(),
		sink:     discardSink{},
		now:      time.Now,
		cooldown: DefaultCooldown,
		st: &state{
			lower:            p.Lower,
			upper:            p.Upper,
			manager:          p.Manager,
			managerBalance0:  new(uint256.Int),
			managerBalance1:  new(uint256.Int),
			protocolBalance0: new(uint256.Int),
			protocolBalance1: new(uint256.Int),
			managerFeeBPS:    timelock.New(p.ManagerFeeBPS),
			protocolFeeBPS:   timelock.New(p.ProtocolFeeBPS),
			rebalanceBPS:     timelock.New[uint16](DefaultRebalanceBPS),
			slippageBPS:      timelock.New[uint16](DefaultSlippageBPS),
			managerTreasury:  timelock.New(p.Manager),
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With(zap.String("vault", v.address.Hex()))
	return v, nil
}

func (v *Vault) Address() common.Address { return v.address }
func (v *Vault) Pool() Pool              { return v.pool }
func (v *Vault) Token0() common.Address  { return v.token0.Address() }
func (v *Vault) Token1() common.Address  { return v.token1.Address() }
func (v *Vault) Manager() common.Address { return v.st.manager }
func (v *Vault) RestrictedMint() bool    { return v.st.restrictedMint }

// Range returns the current tick range.
func (v *Vault) Range() (int32, int32) { return v.st.lower, v.st.upper }

// PositionID is the pool key of the instance's position.
func (v *Vault) PositionID() common.Hash {
	return oracle.PositionKey(v.address, v.st.lower, v.st.upper)
}

// ManagerBalances returns the manager's accrued fee claims.
func (v *Vault) ManagerBalances() (*uint256.Int, *uint256.Int) {
	return new(uint256.Int).Set(v.st.managerBalance0), new(uint256.Int).Set(v.st.managerBalance1)
}

// ProtocolBalances returns the protocol's accrued fee claims.
func (v *Vault) ProtocolBalances() (*uint256.Int, *uint256.Int) {
	return new(uint256.Int).Set(v.st.protocolBalance0), new(uint256.Int).Set(v.st.protocolBalance1)
}

// IdleBalances returns token balances held by the instance that are not
// claimed by the manager or the protocol.
func (v *Vault) IdleBalances() (*uint256.Int, *uint256.Int) {
	return v.idle()
}

// Implementation returns the handle the instance currently resolves to.
func (v *Vault) Implementation() *Implementation {
	return v.impls.ResolveImplementation(v.address)
}

// run executes fn atomically after resolving the implementation.
func (v *Vault) run(op string, fn func(impl *Implementation) error) error {
	err := v.journal.Atomic(func() error {
		impl := v.impls.ResolveImplementation(v.address)
		if impl == nil {
			return ErrNoImplementation
		}
		return fn(impl)
	})
	if err != nil {
		v.logger.Debug("vault operation rejected", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// update applies fn to a copy of the state and journals the previous one.
func (v *Vault) update(fn func(s *state)) {
	prev := v.st
	next := prev.clone()
	fn(next)
	v.st = next
	v.journal.Record(func() { v.st = prev })
}

// emit publishes an event once the enclosing operation commits.
func (v *Vault) emit(kind string, data interface{}) {
	ts := v.now().Unix()
	v.journal.OnCommit(func() {
		v.seq++
		v.sink.Publish(model.VaultEvent{
			Vault:     v.address.Hex(),
			Seq:       v.seq,
			Kind:      kind,
			Timestamp: ts,
			Data:      data,
		})
	})
}

func (v *Vault) idle() (*uint256.Int, *uint256.Int) {
	bal0 := v.token0.BalanceOf(v.address)
	bal1 := v.token1.BalanceOf(v.address)
	return subFloor(subFloor(bal0, v.st.managerBalance0), v.st.protocolBalance0),
		subFloor(subFloor(bal1, v.st.managerBalance1), v.st.protocolBalance1)
}

func (v *Vault) position(ctx context.Context) (oracle.PositionInfo, error) {
	return v.pool.Position(ctx, v.address, v.st.lower, v.st.upper)
}

func (v *Vault) isToken(addr common.Address) bool {
	return addr == v.token0.Address() || addr == v.token1.Address()
}

func (v *Vault) tokenFor(addr common.Address) Token {
	if addr == v.token0.Address() {
		return v.token0
	}
	return v.token1
}

func subFloor(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

func minU(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}

func str(v *uint256.Int) string {
	return v.ToBig().String()
}

var maxUint128 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)
