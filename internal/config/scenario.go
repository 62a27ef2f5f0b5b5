package config

import (
	"fmt"
	"strings"
	"time"
)

// Scenario is a scripted run of the simulate command: the tokens and pools
// that exist, the starting balances, and the steps to execute in order.
// Accounts are referred to by name or hex address.
type Scenario struct {
	StartTime      int64              `mapstructure:"start_time"`
	Owner          string             `mapstructure:"owner"`
	Implementation ImplementationSpec `mapstructure:"implementation"`
	Tokens         []TokenSpec        `mapstructure:"tokens"`
	Pools          []PoolSpec         `mapstructure:"pools"`
	Balances       []BalanceSpec      `mapstructure:"balances"`
	Steps          []Step             `mapstructure:"-"`
}

// ImplementationSpec describes the implementation new instances run against.
type ImplementationSpec struct {
	Version          string `mapstructure:"version"`
	Keeper           string `mapstructure:"keeper"`
	ProtocolTreasury string `mapstructure:"protocol_treasury"`
	ProtocolFeeBPS   uint16 `mapstructure:"protocol_fee_bps"`
}

// TokenSpec describes a token ledger.
type TokenSpec struct {
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Decimals uint8  `mapstructure:"decimals"`
	Address  string `mapstructure:"address"`
}

// PoolSpec describes a pool and its starting price. SqrtPriceX96 wins over
// Tick when both are set.
type PoolSpec struct {
	Token0       string `mapstructure:"token0"`
	Token1       string `mapstructure:"token1"`
	Fee          uint32 `mapstructure:"fee"`
	Tick         int32  `mapstructure:"tick"`
	SqrtPriceX96 string `mapstructure:"sqrt_price_x96"`
}

// BalanceSpec credits an account with tokens before the first step.
type BalanceSpec struct {
	Account string `mapstructure:"account"`
	Token   string `mapstructure:"token"`
	Amount  string `mapstructure:"amount"`
}

// Step is one scripted call. Which fields matter depends on Action.
type Step struct {
	Action string `mapstructure:"action"`
	Caller string `mapstructure:"caller"`
	// Vault names an instance by the label it was deployed under.
	Vault string `mapstructure:"vault"`
	Label string `mapstructure:"label"`

	Token0        string `mapstructure:"token0"`
	Token1        string `mapstructure:"token1"`
	Fee           uint32 `mapstructure:"fee"`
	Manager       string `mapstructure:"manager"`
	ManagerFeeBPS uint16 `mapstructure:"manager_fee_bps"`
	Lower         int32  `mapstructure:"lower"`
	Upper         int32  `mapstructure:"upper"`

	Amount0   string `mapstructure:"amount0"`
	Amount1   string `mapstructure:"amount1"`
	Shares    string `mapstructure:"shares"`
	Recipient string `mapstructure:"recipient"`
	AmountIn  string `mapstructure:"amount_in"`

	ZeroForOne           bool   `mapstructure:"zero_for_one"`
	ExpectedSqrtPriceX96 string `mapstructure:"expected_sqrt_price_x96"`
	MaxSlippageBPS       uint16 `mapstructure:"max_slippage_bps"`
	SwapAmountBPS        uint16 `mapstructure:"swap_amount_bps"`
	RewardAmount         string `mapstructure:"reward_amount"`
	RewardToken          string `mapstructure:"reward_token"`

	Proposal  ProposalSpec  `mapstructure:"proposal"`
	Advance   time.Duration `mapstructure:"advance"`
	Version   string        `mapstructure:"version"`
	Instances []string      `mapstructure:"instances"`
}

// ProposalSpec lists the manager parameters to change; unset fields keep
// their value.
type ProposalSpec struct {
	ManagerFeeBPS   *int32 `mapstructure:"manager_fee_bps"`
	ProtocolFeeBPS  *int32 `mapstructure:"protocol_fee_bps"`
	RebalanceBPS    *int32 `mapstructure:"rebalance_bps"`
	SlippageBPS     *int32 `mapstructure:"slippage_bps"`
	ManagerTreasury string `mapstructure:"manager_treasury"`
}

// Actions a step may name.
const (
	ActionDeploy             = "deploy"
	ActionDeployStatic       = "deploy_static"
	ActionMint               = "mint"
	ActionBurn               = "burn"
	ActionSwap               = "swap"
	ActionRebalance          = "rebalance"
	ActionExecutiveRebalance = "executive_rebalance"
	ActionPropose            = "propose"
	ActionWithdrawManager    = "withdraw_manager"
	ActionWithdrawProtocol   = "withdraw_protocol"
	ActionToggleRestricted   = "toggle_restricted_mint"
	ActionTransferOwnership  = "transfer_ownership"
	ActionRenounceOwnership  = "renounce_ownership"
	ActionAdvance            = "advance"
	ActionSetImplementation  = "set_implementation"
	ActionUpgrade            = "upgrade"
	ActionMakeImmutable      = "make_immutable"
)

var knownActions = map[string]bool{
	ActionDeploy: true, ActionDeployStatic: true, ActionMint: true, ActionBurn: true,
	ActionSwap: true, ActionRebalance: true, ActionExecutiveRebalance: true,
	ActionPropose: true, ActionWithdrawManager: true, ActionWithdrawProtocol: true,
	ActionToggleRestricted: true, ActionTransferOwnership: true, ActionRenounceOwnership: true,
	ActionAdvance: true, ActionSetImplementation: true, ActionUpgrade: true, ActionMakeImmutable: true,
}

// Validate checks the scenario's shape; it does not run anything.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Owner) == "" {
		return fmt.Errorf("scenario: owner is required")
	}
	symbols := make(map[string]bool, len(s.Tokens))
	for _, t := range s.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("scenario: token without symbol")
		}
		if symbols[t.Symbol] {
			return fmt.Errorf("scenario: duplicate token %s", t.Symbol)
		}
		symbols[t.Symbol] = true
	}
	for _, p := range s.Pools {
		if !symbols[p.Token0] || !symbols[p.Token1] {
			return fmt.Errorf("scenario: pool %s/%s uses an unknown token", p.Token0, p.Token1)
		}
	}
	for _, b := range s.Balances {
		if !symbols[b.Token] {
			return fmt.Errorf("scenario: balance of unknown token %s", b.Token)
		}
	}
	for i, step := range s.Steps {
		if !knownActions[step.Action] {
			return fmt.Errorf("scenario: step %d: unknown action %q", i, step.Action)
		}
	}
	return nil
}
