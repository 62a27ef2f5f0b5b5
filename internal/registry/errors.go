package registry

import (
	"errors"

	"liquidityVault/internal/vault"
)

var (
	ErrAccessDenied      = vault.ErrAccessDenied
	ErrInvalidRange      = vault.ErrInvalidRange
	ErrInstanceImmutable = errors.New("registry: instance is immutable")
	ErrUnknownInstance   = errors.New("registry: unknown instance")
	ErrPoolNotFound      = errors.New("registry: pool not found")
	ErrIdenticalTokens   = errors.New("registry: identical tokens")
	ErrUnknownToken      = errors.New("registry: unknown token")
	ErrCallMismatch      = errors.New("registry: one call per instance required")
)
