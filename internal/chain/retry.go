package chain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// revertCode is the JSON-RPC error code nodes return for a reverted call.
const revertCode = 3

// retryPolicy retries RPC reads with exponential backoff. Reverts are
// answers, not failures, and are never retried.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func (p retryPolicy) do(ctx context.Context, method string, fn func(context.Context) error, fields ...zap.Field) error {
	maxRetries := p.maxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := p.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	logger := p.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isRevert(err) || ctx.Err() != nil {
			return err
		}
		if attempt > maxRetries {
			logger.Warn("rpc call failed", append(fields, zap.String("method", method), zap.Int("attempts", attempt), zap.Error(err))...)
			return err
		}
		logger.Debug("rpc call failed, retrying", append(fields,
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertCode {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
