// Package dex reads pool and token state from a live network through
// eth_call, in the shapes the vault engine consumes.
package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/model"
	"liquidityVault/internal/oracle"
)

// PoolReader reads a deployed V3 pool. It implements oracle.PriceSource.
type PoolReader struct {
	caller ethereum.ContractCaller
	pool   common.Address
	block  *big.Int
	logger *zap.Logger
}

var _ oracle.PriceSource = (*PoolReader)(nil)

// NewPoolReader reads pool at the latest block.
func NewPoolReader(caller ethereum.ContractCaller, pool common.Address, logger *zap.Logger) *PoolReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolReader{caller: caller, pool: pool, logger: logger}
}

// AtBlock returns a reader pinned to a block height. Zero means latest.
func (r *PoolReader) AtBlock(number uint64) *PoolReader {
	cp := *r
	cp.block = nil
	if number > 0 {
		cp.block = new(big.Int).SetUint64(number)
	}
	return &cp
}

func (r *PoolReader) Address() common.Address { return r.pool }

// Meta loads the pool's immutable fields together with its live price and
// active liquidity.
func (r *PoolReader) Meta(ctx context.Context) (model.PoolMeta, error) {
	meta := model.PoolMeta{Address: r.pool.Hex()}

	values, err := r.call(ctx, "token0")
	if err != nil {
		return model.PoolMeta{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token0: %w", err)
	}
	values, err = r.call(ctx, "token1")
	if err != nil {
		return model.PoolMeta{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token1: %w", err)
	}
	meta.Token0, meta.Token1 = token0.Hex(), token1.Hex()

	values, err = r.call(ctx, "fee")
	if err != nil {
		return model.PoolMeta{}, err
	}
	fee, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("fee: %w", err)
	}
	meta.Fee = uint32(fee.Uint64())

	values, err = r.call(ctx, "tickSpacing")
	if err != nil {
		return model.PoolMeta{}, err
	}
	spacing, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	if meta.TickSpacing, err = int24FromBig(spacing); err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}

	if liq, err := r.Liquidity(ctx); err == nil {
		meta.Liquidity = liq.ToBig().String()
	} else {
		r.logger.Debug("liquidity call failed", zap.String("pool", r.pool.Hex()), zap.Error(err))
	}
	if slot0, err := r.Slot0(ctx); err == nil {
		meta.Slot0 = &model.PoolSlot0{SqrtPriceX96: slot0.SqrtPriceX96.ToBig().String(), Tick: slot0.Tick}
	} else {
		r.logger.Debug("slot0 call failed", zap.String("pool", r.pool.Hex()), zap.Error(err))
	}
	return meta, nil
}

// Slot0 reads the current sqrt price and tick.
func (r *PoolReader) Slot0(ctx context.Context) (oracle.Slot0, error) {
	values, err := r.call(ctx, "slot0")
	if err != nil {
		return oracle.Slot0{}, err
	}
	if len(values) < 2 {
		return oracle.Slot0{}, fmt.Errorf("slot0: %d values", len(values))
	}
	sqrtPrice, err := asUint256(values[0])
	if err != nil {
		return oracle.Slot0{}, fmt.Errorf("slot0 price: %w", err)
	}
	tickBig, err := asBigInt(values[1])
	if err != nil {
		return oracle.Slot0{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return oracle.Slot0{}, fmt.Errorf("slot0 tick: %w", err)
	}
	return oracle.Slot0{SqrtPriceX96: sqrtPrice, Tick: tick}, nil
}

// Liquidity reads the pool's active liquidity.
func (r *PoolReader) Liquidity(ctx context.Context) (*uint256.Int, error) {
	values, err := r.call(ctx, "liquidity")
	if err != nil {
		return nil, err
	}
	return asUint256(values[0])
}

// Position reads owner's position in [lower, upper). A position that was
// never created reads as empty.
func (r *PoolReader) Position(ctx context.Context, owner common.Address, lower, upper int32) (oracle.PositionInfo, error) {
	key := oracle.PositionKey(owner, lower, upper)
	values, err := r.call(ctx, "positions", [32]byte(key))
	if err != nil {
		return oracle.PositionInfo{}, err
	}
	if len(values) < 5 {
		return oracle.PositionInfo{}, fmt.Errorf("positions: %d values", len(values))
	}
	info := oracle.EmptyPosition()
	for i, dst := range map[int]**uint256.Int{0: &info.Liquidity, 3: &info.TokensOwed0, 4: &info.TokensOwed1} {
		v, err := asUint256(values[i])
		if err != nil {
			return oracle.PositionInfo{}, fmt.Errorf("positions[%d]: %w", i, err)
		}
		*dst = v
	}
	return info, nil
}

func (r *PoolReader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	return callMethod(ctx, r.caller, r.pool, poolABI, method, r.block, args...)
}

func callMethod(ctx context.Context, caller ethereum.ContractCaller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// FetchTokenMeta loads ERC20 decimals, symbol and name. Symbol and name
// fall back to bytes32 encodings and are left empty when both fail.
func FetchTokenMeta(ctx context.Context, caller ethereum.ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if logger == nil {
		logger = zap.NewNop()
	}
	stringABI, err := erc20StringABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	dec, err := asBigInt(values[0])
	if err != nil {
		return meta, fmt.Errorf("decimals: %w", err)
	}
	meta.Decimals = uint8(dec.Uint64())

	text := func(method string) string {
		if values, err := callMethod(ctx, caller, token, stringABI, method, nil); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
		values, err := callMethod(ctx, caller, token, bytes32ABI, method, nil)
		if err != nil {
			logger.Debug("erc20 call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
			return ""
		}
		if b, ok := values[0].([32]byte); ok {
			return string(bytes.TrimRight(b[:], "\x00"))
		}
		return ""
	}
	meta.Symbol = text("symbol")
	meta.Name = text("name")
	return meta, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint256(value interface{}) (*uint256.Int, error) {
	b, err := asBigInt(value)
	if err != nil {
		return nil, err
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", b)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("value %s overflows 256 bits", b)
	}
	return v, nil
}

func int24FromBig(value *big.Int) (int32, error) {
	if value.Cmp(big.NewInt(-1<<23)) < 0 || value.Cmp(big.NewInt(1<<23-1)) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
