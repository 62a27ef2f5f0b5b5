package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := retryPolicy{maxRetries: 3, baseDelay: time.Millisecond, logger: zap.New(core)}
	calls := 0
	err := p.do(context.Background(), "eth_call", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	retries := logs.FilterMessage("rpc call failed, retrying").All()
	require.Len(t, retries, 2)
	assert.Equal(t, "eth_call", retries[0].ContextMap()["method"])
	assert.Equal(t, int64(2), retries[1].ContextMap()["attempt"])
}

func TestRetryGivesUp(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := retryPolicy{maxRetries: 2, baseDelay: time.Millisecond, logger: zap.New(core)}
	boom := errors.New("boom")
	calls := 0
	err := p.do(context.Background(), "eth_blockNumber", func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, logs.FilterMessage("rpc call failed").Len())
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryPolicy{maxRetries: 5, baseDelay: time.Hour}.do(ctx, "eth_call", func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

type codedError struct {
	msg  string
	code int
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

func TestRetryReturnsRevertsImmediately(t *testing.T) {
	for _, revert := range []error{
		codedError{msg: "reverted", code: revertCode},
		errors.New("execution reverted: ds-math-sub-underflow"),
	} {
		calls := 0
		err := retryPolicy{maxRetries: 5, baseDelay: time.Millisecond}.do(context.Background(), "eth_call", func(context.Context) error {
			calls++
			return revert
		})
		assert.ErrorIs(t, err, revert)
		assert.Equal(t, 1, calls)
	}

	calls := 0
	transient := codedError{msg: "header not found", code: -32000}
	_ = retryPolicy{maxRetries: 1, baseDelay: time.Millisecond}.do(context.Background(), "eth_call", func(context.Context) error {
		calls++
		return transient
	})
	assert.Equal(t, 2, calls)
}
