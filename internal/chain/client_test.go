package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	headers   map[uint64]uint64
	headerHit int
	callErrs  []error
	calls     int
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	return 19_000_000, nil
}

func (f *fakeBackend) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	f.headerHit++
	ts, ok := f.headers[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return &types.Header{Number: number, Time: ts}, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	f.calls++
	if len(f.callErrs) > 0 {
		err := f.callErrs[0]
		f.callErrs = f.callErrs[1:]
		return nil, err
	}
	return []byte{0x01}, nil
}

func TestBlockTimestampIsCached(t *testing.T) {
	fb := &fakeBackend{headers: map[uint64]uint64{19_000_000: 1_700_000_123}}
	c := newClient(fb, Options{MaxRetries: 0})

	ts, err := c.BlockTimestamp(context.Background(), 19_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_123), ts)
	ts, err = c.BlockTimestamp(context.Background(), 19_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_123), ts)
	assert.Equal(t, 1, fb.headerHit)

	_, err = c.BlockTimestamp(context.Background(), 1)
	assert.ErrorIs(t, err, ethereum.NotFound)
}

func TestChainIDAndLatestBlock(t *testing.T) {
	c := newClient(&fakeBackend{}, Options{})
	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())
	n, err := c.LatestBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(19_000_000), n)
}

func TestCallContractRetriesTransportErrorsOnly(t *testing.T) {
	to := common.HexToAddress("0x01")
	msg := ethereum.CallMsg{To: &to, Data: []byte{0x38, 0x50, 0xc7, 0xbd}}

	fb := &fakeBackend{callErrs: []error{errors.New("connection refused")}}
	c := newClient(fb, Options{MaxRetries: 2, RetryDelay: time.Millisecond})
	out, err := c.CallContract(context.Background(), msg, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)
	assert.Equal(t, 2, fb.calls)

	fb = &fakeBackend{callErrs: []error{errors.New("execution reverted")}}
	c = newClient(fb, Options{MaxRetries: 2, RetryDelay: time.Millisecond})
	_, err = c.CallContract(context.Background(), msg, nil)
	assert.ErrorContains(t, err, "execution reverted")
	assert.Equal(t, 1, fb.calls)
}
