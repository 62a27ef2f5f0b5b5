package model

// PoolMeta describes the AMM pool an instance provides liquidity to. The
// live fields are empty when the pool could not be read.
type PoolMeta struct {
	Address     string     `json:"address"`
	Token0      string     `json:"token0"`
	Token1      string     `json:"token1"`
	Fee         uint32     `json:"fee"`
	TickSpacing int32      `json:"tick_spacing"`
	Liquidity   string     `json:"liquidity,omitempty"`
	Slot0       *PoolSlot0 `json:"slot0,omitempty"`
}

// PoolSlot0 is the pool price at read time.
type PoolSlot0 struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

// TokenMeta is what the quote output shows for each side of a pool.
type TokenMeta struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}
