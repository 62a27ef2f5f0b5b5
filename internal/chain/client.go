// Package chain is a thin RPC client for reading pool state from a live
// network.
package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Options tunes retries of read calls.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// backend is the subset of ethclient.Client the reader uses.
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client wraps go-ethereum RPC. It satisfies ethereum.ContractCaller, so
// readers can be tested against a fake.
type Client struct {
	rpcClient *rpc.Client
	eth       backend
	retry     retryPolicy

	mu        sync.RWMutex
	blockTime map[uint64]uint64
}

var _ ethereum.ContractCaller = (*Client)(nil)

// NewClient dials rpcURL.
func NewClient(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	c := newClient(ethclient.NewClient(rpcClient), opts)
	c.rpcClient = rpcClient
	return c, nil
}

func newClient(eth backend, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		eth:       eth,
		retry:     retryPolicy{maxRetries: opts.MaxRetries, baseDelay: opts.RetryDelay, logger: opts.Logger},
		blockTime: make(map[uint64]uint64),
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.retry.do(ctx, "eth_chainId", func(ctx context.Context) error {
		var err error
		id, err = c.eth.ChainID(ctx)
		return err
	})
	return id, err
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.retry.do(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		n, err = c.eth.BlockNumber(ctx)
		return err
	})
	return n, err
}

// BlockTimestamp returns the unix time of a block. Block times never
// change, so they are cached for the life of the client.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.blockTime[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	err := c.retry.do(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		ts = header.Time
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.blockTime[number] = ts
	c.mu.Unlock()
	return ts, nil
}

// CallContract performs an eth_call. Transport failures are retried; a
// reverted call is returned as is.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.retry.do(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		out, err = c.eth.CallContract(ctx, msg, blockNumber)
		return err
	}, callFields(msg, blockNumber)...)
	return out, err
}

func callFields(msg ethereum.CallMsg, blockNumber *big.Int) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if msg.To != nil {
		fields = append(fields, zap.String("to", msg.To.Hex()))
	}
	if len(msg.Data) >= 4 {
		fields = append(fields, zap.Binary("selector", msg.Data[:4]))
	}
	if blockNumber != nil {
		fields = append(fields, zap.Stringer("block", blockNumber))
	}
	return fields
}
