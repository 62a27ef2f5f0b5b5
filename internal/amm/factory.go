// Package amm is an in-memory concentrated liquidity pool. It settles real
// token transfers on ledgers and journals every state change, so a caller
// can run pool interactions inside an atomic operation.
package amm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/journal"
	"liquidityVault/internal/liquidity"
)

var (
	ErrPoolExists         = errors.New("amm: pool already exists")
	ErrIdenticalTokens    = errors.New("amm: identical tokens")
	ErrUnknownToken       = errors.New("amm: token not registered")
	ErrNotInitialized     = errors.New("amm: pool not initialized")
	ErrAlreadyInitialized = errors.New("amm: pool already initialized")
	ErrPriceLimit         = errors.New("amm: invalid sqrt price limit")
	ErrZeroAmount         = errors.New("amm: zero amount")
	ErrNoPosition         = errors.New("amm: position has no liquidity")
	ErrBurnExceeds        = errors.New("amm: burn exceeds position liquidity")
)

// Token is the ledger surface a pool settles against.
type Token interface {
	Address() common.Address
	Transfer(from, to common.Address, amount *uint256.Int) error
}

type poolKey struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// Factory creates pools and resolves them by token pair and fee tier.
type Factory struct {
	address common.Address
	journal *journal.Journal
	logger  *zap.Logger
	tokens  map[common.Address]Token
	pools   map[poolKey]*Pool
}

// NewFactory returns a factory whose pools journal into j.
func NewFactory(j *journal.Journal, address common.Address, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		address: address,
		journal: j,
		logger:  logger,
		tokens:  make(map[common.Address]Token),
		pools:   make(map[poolKey]*Pool),
	}
}

// RegisterToken makes a ledger available to pools.
func (f *Factory) RegisterToken(t Token) {
	f.tokens[t.Address()] = t
}

// SortTokens orders two token addresses the way pools store them.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// CreatePool deploys an uninitialized pool for the pair and fee tier.
func (f *Factory) CreatePool(tokenA, tokenB common.Address, fee uint32) (*Pool, error) {
	if tokenA == tokenB {
		return nil, ErrIdenticalTokens
	}
	token0, token1 := SortTokens(tokenA, tokenB)
	spacing, err := liquidity.TickSpacing(fee)
	if err != nil {
		return nil, err
	}
	key := poolKey{token0, token1, fee}
	if _, ok := f.pools[key]; ok {
		return nil, ErrPoolExists
	}
	t0, ok := f.tokens[token0]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token0.Hex())
	}
	t1, ok := f.tokens[token1]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token1.Hex())
	}

	var salt []byte
	salt = append(salt, token0.Bytes()...)
	salt = append(salt, token1.Bytes()...)
	salt = append(salt, byte(fee>>16), byte(fee>>8), byte(fee))
	addr := crypto.CreateAddress2(f.address, crypto.Keccak256Hash(salt), crypto.Keccak256(nil))

	p := newPool(f.journal, f.logger, addr, t0, t1, fee, spacing)
	f.pools[key] = p
	f.journal.Record(func() { delete(f.pools, key) })
	f.logger.Debug("pool created",
		zap.String("pool", addr.Hex()),
		zap.String("token0", token0.Hex()),
		zap.String("token1", token1.Hex()),
		zap.Uint32("fee", fee),
	)
	return p, nil
}

// GetPool returns the pool for the pair and fee tier, in either token order.
func (f *Factory) GetPool(tokenA, tokenB common.Address, fee uint32) (*Pool, bool) {
	token0, token1 := SortTokens(tokenA, tokenB)
	p, ok := f.pools[poolKey{token0, token1, fee}]
	return p, ok
}
