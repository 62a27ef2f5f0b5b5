package model

import "time"

// VaultWindowMetrics stores aggregated metrics for an instance window.
type VaultWindowMetrics struct {
	Vault           string
	WindowSizeSecs  int64
	WindowStart     time.Time
	WindowEnd       time.Time
	MintCount       uint64
	BurnCount       uint64
	RebalanceCount  uint64
	Fee0            string
	Fee1            string
	ManagerFee0     string
	ManagerFee1     string
	SharePriceOpen  *string
	SharePriceClose *string
	APR             *string
}
