package model

import "encoding/json"

// VaultSnapshot is the full accounting state of an instance at a point in time.
type VaultSnapshot struct {
	Vault            string     `json:"vault"`
	Name             string     `json:"name"`
	Symbol           string     `json:"symbol"`
	Pool             PoolMeta   `json:"pool"`
	Manager          string     `json:"manager"`
	LowerTick        int32      `json:"lower_tick"`
	UpperTick        int32      `json:"upper_tick"`
	TotalSupply      string     `json:"total_supply"`
	Liquidity        string     `json:"liquidity"`
	Underlying0      string     `json:"underlying0"`
	Underlying1      string     `json:"underlying1"`
	Idle0            string     `json:"idle0"`
	Idle1            string     `json:"idle1"`
	ManagerBalance0  string     `json:"manager_balance0"`
	ManagerBalance1  string     `json:"manager_balance1"`
	ProtocolBalance0 string     `json:"protocol_balance0"`
	ProtocolBalance1 string     `json:"protocol_balance1"`
	Config           ConfigView `json:"config"`
	RestrictedMint   bool       `json:"restricted_mint"`
	Timestamp        int64      `json:"timestamp"`
}

// ConfigView is the effective manager configuration.
type ConfigView struct {
	ManagerFeeBPS   uint16 `json:"manager_fee_bps"`
	ProtocolFeeBPS  uint16 `json:"protocol_fee_bps"`
	RebalanceBPS    uint16 `json:"rebalance_bps"`
	SlippageBPS     uint16 `json:"slippage_bps"`
	ManagerTreasury string `json:"manager_treasury"`
}

// MarshalJSON ensures VaultSnapshot is encoded with stable field names.
func (s VaultSnapshot) MarshalJSON() ([]byte, error) {
	type Alias VaultSnapshot
	return json.Marshal(Alias(s))
}

// UnmarshalJSON decodes a VaultSnapshot from JSON.
func (s *VaultSnapshot) UnmarshalJSON(data []byte) error {
	type Alias VaultSnapshot
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = VaultSnapshot(a)
	return nil
}
