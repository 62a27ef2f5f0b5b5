package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/model"
	"liquidityVault/internal/oracle"
)

// Pool is the concentrated liquidity pool an instance deploys into. Mint
// pulls the owed token amounts from owner; Swap pulls input from sender.
type Pool interface {
	oracle.PriceSource
	Address() common.Address
	Token0() common.Address
	Token1() common.Address
	Fee() uint32
	TickSpacing() int32
	Mint(ctx context.Context, owner common.Address, lower, upper int32, amount *uint256.Int) (*uint256.Int, *uint256.Int, error)
	Burn(ctx context.Context, owner common.Address, lower, upper int32, amount *uint256.Int) (*uint256.Int, *uint256.Int, error)
	Collect(ctx context.Context, owner, recipient common.Address, lower, upper int32, max0, max1 *uint256.Int) (*uint256.Int, *uint256.Int, error)
	Swap(ctx context.Context, sender, recipient common.Address, zeroForOne bool, amountIn, sqrtPriceLimitX96 *uint256.Int) (*uint256.Int, *uint256.Int, error)
}

// Token is the ledger of one of the pool's tokens.
type Token interface {
	Address() common.Address
	Symbol() string
	BalanceOf(account common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, owner, recipient common.Address, amount *uint256.Int) error
}

// Implementation is the shared logic handle an instance runs against. The
// keeper and protocol treasury travel with it, so an upgrade can rotate them.
type Implementation struct {
	Address          common.Address
	Version          string
	Keeper           common.Address
	ProtocolTreasury common.Address
	ProtocolFeeBPS   uint16
}

// ImplementationResolver returns the implementation currently assigned to
// an instance, or nil when none is set.
type ImplementationResolver interface {
	ResolveImplementation(instance common.Address) *Implementation
}

// StaticImplementation resolves every instance to the same implementation.
type StaticImplementation struct {
	Impl *Implementation
}

func (s StaticImplementation) ResolveImplementation(common.Address) *Implementation {
	return s.Impl
}

// EventSink receives committed instance events.
type EventSink interface {
	Publish(ev model.VaultEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev model.VaultEvent)

func (f EventSinkFunc) Publish(ev model.VaultEvent) { f(ev) }

type discardSink struct{}

func (discardSink) Publish(model.VaultEvent) {}
