package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("report", pflag.ContinueOnError)
	fs.String("in", "", "")
	fs.String("window", "1h", "")
	fs.String("pg-dsn", "", "")
	fs.Int("batch-size", 1000, "")
	return fs
}

func TestLoadReportLayering(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "report.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("in: ./from-file.jsonl\nwindow: 15m\nstate-file: ./state.json\n"), 0o644))

	t.Setenv("VAULT_PG_DSN", "postgres://env")

	fs := reportFlags()
	require.NoError(t, fs.Parse([]string{"--window", "5m"}))

	cfg, err := LoadReport(cfgFile, fs)
	require.NoError(t, err)
	assert.Equal(t, "./from-file.jsonl", cfg.Input)
	assert.Equal(t, "5m", cfg.Window, "flags beat the file")
	assert.Equal(t, "postgres://env", cfg.PGDSN)
	assert.Equal(t, "./state.json", cfg.StateFile)
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.True(t, cfg.ArchiveEvents)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadQuoteDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("quote", pflag.ContinueOnError)
	fs.String("pool", "", "")
	fs.Int32("lower", 0, "")
	fs.Int32("upper", 0, "")
	require.NoError(t, fs.Parse([]string{"--pool", "0xabc", "--lower", "-600", "--upper", "600"}))

	_, err := LoadQuote(filepath.Join(t.TempDir(), "missing.yaml"), fs)
	require.Error(t, err, "an explicit config file must exist")

	cfg, err := LoadQuote("", fs)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", cfg.Pool)
	assert.Equal(t, int32(-600), cfg.Lower)
	assert.Equal(t, int32(600), cfg.Upper)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
}

func TestLoadSimulateDefaults(t *testing.T) {
	cfg, err := LoadSimulate("", nil)
	require.NoError(t, err)
	assert.Equal(t, "./data/events.jsonl", cfg.Out)
	assert.Equal(t, "./data/step_failures.jsonl", cfg.Errors)
	assert.Equal(t, 50, cfg.BatchSize)
}

const scenarioYAML = `
owner: owner
implementation:
  keeper: keeper
  protocol_treasury: treasury
tokens:
  - symbol: WETH
    name: Wrapped Ether
    decimals: 18
  - symbol: USDC
    decimals: 6
pools:
  - token0: WETH
    token1: USDC
    fee: 3000
    sqrt_price_x96: "79228162514264337593543950336"
balances:
  - account: alice
    token: WETH
    amount: "1000000000000000000"
steps:
  - action: deploy
    caller: alice
    label: v1
    token0: WETH
    token1: USDC
    fee: 3000
    lower: -600
    upper: 600
  - action: propose
    caller: alice
    vault: v1
    proposal:
      manager_fee_bps: 250
  - action: advance
    advance: 5m
  - action: upgrade
    caller: owner
    version: "2"
    instances: [v1]
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, int64(1_700_000_000), sc.StartTime)
	assert.Equal(t, "1", sc.Implementation.Version)
	assert.Equal(t, uint16(250), sc.Implementation.ProtocolFeeBPS)
	assert.Equal(t, "keeper", sc.Implementation.Keeper)
	require.Len(t, sc.Tokens, 2)
	assert.Equal(t, uint8(6), sc.Tokens[1].Decimals)
	require.Len(t, sc.Pools, 1)
	assert.Equal(t, "79228162514264337593543950336", sc.Pools[0].SqrtPriceX96)

	require.Len(t, sc.Steps, 4)
	assert.Equal(t, int32(-600), sc.Steps[0].Lower)
	assert.Equal(t, "v1", sc.Steps[0].Label)
	require.NotNil(t, sc.Steps[1].Proposal.ManagerFeeBPS)
	assert.Equal(t, int32(250), *sc.Steps[1].Proposal.ManagerFeeBPS)
	assert.Nil(t, sc.Steps[1].Proposal.SlippageBPS)
	assert.Equal(t, 5*time.Minute, sc.Steps[2].Advance)
	assert.Equal(t, []string{"v1"}, sc.Steps[3].Instances)
}

func TestScenarioValidate(t *testing.T) {
	base := Scenario{
		Owner:  "owner",
		Tokens: []TokenSpec{{Symbol: "A"}, {Symbol: "B"}},
		Pools:  []PoolSpec{{Token0: "A", Token1: "B", Fee: 500}},
	}
	require.NoError(t, base.Validate())

	noOwner := base
	noOwner.Owner = ""
	assert.Error(t, noOwner.Validate())

	dup := base
	dup.Tokens = []TokenSpec{{Symbol: "A"}, {Symbol: "A"}}
	assert.Error(t, dup.Validate())

	badPool := base
	badPool.Pools = []PoolSpec{{Token0: "A", Token1: "C"}}
	assert.Error(t, badPool.Validate())

	badStep := base
	badStep.Steps = []Step{{Action: "launch"}}
	assert.Error(t, badStep.Validate())
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("")
	require.NoError(t, err)
	assert.Zero(t, ts)

	ts, err = ParseTimestamp("1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), ts)

	ts, err = ParseTimestamp("2023-11-14T22:13:20Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), ts)

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}
