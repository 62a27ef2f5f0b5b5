package vault

import (
	"errors"

	"liquidityVault/internal/liquidity"
)

var (
	ErrAccessDenied       = errors.New("vault: access denied")
	ErrInvalidRange       = liquidity.ErrInvalidRange
	ErrNoFeesEarned       = errors.New("vault: no fees earned")
	ErrSlippageExceeded   = errors.New("vault: slippage exceeded")
	ErrInsufficientInput  = errors.New("vault: insufficient input")
	ErrZeroShares         = errors.New("vault: zero shares")
	ErrNoImplementation   = errors.New("vault: no implementation")
	ErrExcessiveReward    = errors.New("vault: rebalance reward exceeds limit")
	ErrInvalidRewardToken = errors.New("vault: reward token is not a vault token")
	ErrEmptyPosition      = errors.New("vault: redeployed position is empty")
	ErrInvalidConfig      = errors.New("vault: invalid config")
	ErrNoTreasury         = errors.New("vault: no treasury")
	ErrZeroAddress        = errors.New("vault: zero address")
	ErrTokenMismatch      = errors.New("vault: tokens do not match pool")
)
