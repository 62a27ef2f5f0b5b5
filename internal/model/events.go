package model

// Event kinds written to the event journal.
const (
	EventMinted                   = "Minted"
	EventBurned                   = "Burned"
	EventFeesEarned               = "FeesEarned"
	EventRebalance                = "Rebalance"
	EventConfigProposed           = "ConfigProposed"
	EventManagerBalanceWithdrawn  = "ManagerBalanceWithdrawn"
	EventProtocolBalanceWithdrawn = "ProtocolBalanceWithdrawn"
	EventOwnershipTransferred     = "OwnershipTransferred"
	EventRestrictedMintToggled    = "RestrictedMintToggled"
	EventDeployed                 = "Deployed"
	EventUpgraded                 = "Upgraded"
	EventMadeImmutable            = "MadeImmutable"
)

// MintedData is the payload of a share mint.
type MintedData struct {
	Receiver        string `json:"receiver"`
	Shares          string `json:"shares"`
	Amount0         string `json:"amount0"`
	Amount1         string `json:"amount1"`
	LiquidityMinted string `json:"liquidity_minted"`
}

// BurnedData is the payload of a share burn.
type BurnedData struct {
	Receiver        string `json:"receiver"`
	Shares          string `json:"shares"`
	Amount0         string `json:"amount0"`
	Amount1         string `json:"amount1"`
	LiquidityBurned string `json:"liquidity_burned"`
}

// FeesEarnedData reports fees collected from the pool and the manager and
// protocol cuts taken from them.
type FeesEarnedData struct {
	Fee0         string `json:"fee0"`
	Fee1         string `json:"fee1"`
	ManagerFee0  string `json:"manager_fee0,omitempty"`
	ManagerFee1  string `json:"manager_fee1,omitempty"`
	ProtocolFee0 string `json:"protocol_fee0,omitempty"`
	ProtocolFee1 string `json:"protocol_fee1,omitempty"`
}

// RebalanceData reports a redeployment of the position.
type RebalanceData struct {
	Executive       bool   `json:"executive"`
	LowerTick       int32  `json:"lower_tick"`
	UpperTick       int32  `json:"upper_tick"`
	LiquidityBefore string `json:"liquidity_before"`
	LiquidityAfter  string `json:"liquidity_after"`
	SqrtPriceX96    string `json:"sqrt_price_x96"`
	Reward          string `json:"reward,omitempty"`
	RewardToken     string `json:"reward_token,omitempty"`
	SwapIn          string `json:"swap_in,omitempty"`
	SwapOut         string `json:"swap_out,omitempty"`
}

// ConfigProposedData lists the fields queued by a proposal; absent fields
// were left unchanged.
type ConfigProposedData struct {
	ManagerFeeBPS   *uint16 `json:"manager_fee_bps,omitempty"`
	ProtocolFeeBPS  *uint16 `json:"protocol_fee_bps,omitempty"`
	RebalanceBPS    *uint16 `json:"rebalance_bps,omitempty"`
	SlippageBPS     *uint16 `json:"slippage_bps,omitempty"`
	ManagerTreasury string  `json:"manager_treasury,omitempty"`
	EffectiveAt     int64   `json:"effective_at"`
}

// BalanceWithdrawnData is the payload of a manager or protocol withdrawal.
type BalanceWithdrawnData struct {
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// OwnershipTransferredData records a manager change.
type OwnershipTransferredData struct {
	Previous string `json:"previous"`
	Next     string `json:"next"`
}

// RestrictedMintData records the restricted mint flag after a toggle.
type RestrictedMintData struct {
	Restricted bool `json:"restricted"`
}

// DeployedData records a registry deployment.
type DeployedData struct {
	Deployer       string `json:"deployer"`
	Pool           string `json:"pool"`
	Manager        string `json:"manager"`
	Implementation string `json:"implementation"`
}

// UpgradedData records an instance moving to a new implementation.
type UpgradedData struct {
	Implementation string `json:"implementation"`
	Version        string `json:"version"`
}
