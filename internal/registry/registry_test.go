package registry

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/journal"
	"liquidityVault/internal/liquidity"
	"liquidityVault/internal/model"
	"liquidityVault/internal/token"
	"liquidityVault/internal/vault"
)

var (
	owner    = common.HexToAddress("0x0e")
	deployer = common.HexToAddress("0xde")
	other    = common.HexToAddress("0x07")
	manager  = common.HexToAddress("0x3a")
	regAddr  = common.HexToAddress("0x2e9")
)

func e18(n int64) *uint256.Int {
	v := new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
	return uint256.MustFromBig(v)
}

type testEnv struct {
	ctx    context.Context
	j      *journal.Journal
	t0, t1 *token.Ledger
	reg    *Registry
	implA  *vault.Implementation
	implB  *vault.Implementation
	events []model.VaultEvent
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		ctx: context.Background(),
		j:   journal.New(),
		implA: &vault.Implementation{
			Address: common.HexToAddress("0x1a"), Version: "1",
			Keeper: common.HexToAddress("0x4e"), ProtocolTreasury: common.HexToAddress("0x7e"),
			ProtocolFeeBPS: vault.DefaultProtocolFeeBPS,
		},
		implB: &vault.Implementation{
			Address: common.HexToAddress("0x1b"), Version: "2",
			Keeper: common.HexToAddress("0x4f"), ProtocolTreasury: common.HexToAddress("0x7f"),
			ProtocolFeeBPS: vault.DefaultProtocolFeeBPS,
		},
	}
	env.t0 = token.NewLedger(env.j, common.HexToAddress("0x0a"), "Wrapped Ether", "WETH", 18)
	env.t1 = token.NewLedger(env.j, common.HexToAddress("0x0b"), "USD Coin", "USDC", 18)
	f := amm.NewFactory(env.j, common.HexToAddress("0xfac"), nil)
	f.RegisterToken(env.t0)
	f.RegisterToken(env.t1)
	pool, err := f.CreatePool(env.t1.Address(), env.t0.Address(), 3000)
	require.NoError(t, err)
	require.NoError(t, pool.Initialize(liquidity.Q96))

	require.NoError(t, env.t0.Mint(deployer, e18(100)))
	require.NoError(t, env.t1.Mint(deployer, e18(100)))

	clock := time.Unix(1_700_000_000, 0)
	env.reg = New(env.j, Params{
		Address:        regAddr,
		Owner:          owner,
		Pools:          f,
		Tokens:         TokenDirectory{env.t0.Address(): env.t0, env.t1.Address(): env.t1},
		Implementation: env.implA,
	},
		WithClock(func() time.Time { return clock }),
		WithEventSink(vault.EventSinkFunc(func(ev model.VaultEvent) { env.events = append(env.events, ev) })),
	)
	return env
}

func (env *testEnv) params() DeployParams {
	return DeployParams{
		Token0:        env.t1.Address(),
		Token1:        env.t0.Address(),
		FeeTier:       3000,
		Manager:       manager,
		ManagerFeeBPS: 1000,
		Lower:         -600,
		Upper:         600,
	}
}

func (env *testEnv) deploy(t *testing.T) common.Address {
	t.Helper()
	addr, err := env.reg.DeployManaged(env.ctx, deployer, env.params())
	require.NoError(t, err)
	return addr
}

func TestDeployRegistersInstance(t *testing.T) {
	env := newTestEnv(t)
	want := env.reg.NextInstanceAddress()

	addr := env.deploy(t)
	assert.Equal(t, want, addr)
	assert.NotEqual(t, want, env.reg.NextInstanceAddress())
	assert.Equal(t, 1, env.reg.NumInstances())
	assert.Equal(t, []common.Address{deployer}, env.reg.GetDeployers())
	assert.Equal(t, []common.Address{addr}, env.reg.GetInstancesByDeployer(deployer))
	assert.Empty(t, env.reg.GetInstancesByDeployer(other))

	v, ok := env.reg.Instance(addr)
	require.True(t, ok)
	assert.Equal(t, env.t0.Address(), v.Token0(), "tokens are sorted")
	assert.Equal(t, manager, v.Manager())
	assert.Equal(t, "RV-1", v.Symbol())
	assert.Same(t, env.implA, v.Implementation())

	entry, ok := env.reg.Entry(addr)
	require.True(t, ok)
	assert.Equal(t, deployer.Hex(), entry.Deployer)
	assert.Equal(t, env.implA.Address.Hex(), entry.Implementation)
	assert.False(t, entry.Immutable)
	assert.Equal(t, regAddr, env.reg.GetAdmin(addr))

	second := env.deploy(t)
	assert.Equal(t, []common.Address{addr, second}, env.reg.GetInstancesByDeployer(deployer))
	assert.Len(t, env.reg.GetDeployers(), 1)
}

func TestDeployRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	next := env.reg.NextInstanceAddress()

	p := env.params()
	p.Lower = -610
	_, err := env.reg.Deploy(env.ctx, deployer, p)
	assert.ErrorIs(t, err, ErrInvalidRange)

	p = env.params()
	p.Lower, p.Upper = 600, 600
	_, err = env.reg.Deploy(env.ctx, deployer, p)
	assert.ErrorIs(t, err, ErrInvalidRange)

	p = env.params()
	p.FeeTier = 500
	_, err = env.reg.Deploy(env.ctx, deployer, p)
	assert.ErrorIs(t, err, ErrPoolNotFound)

	p = env.params()
	p.Token1 = p.Token0
	_, err = env.reg.Deploy(env.ctx, deployer, p)
	assert.ErrorIs(t, err, ErrIdenticalTokens)

	p = env.params()
	p.Manager = common.Address{}
	_, err = env.reg.DeployManaged(env.ctx, deployer, p)
	assert.ErrorIs(t, err, vault.ErrZeroAddress)

	assert.Zero(t, env.reg.NumInstances())
	assert.Empty(t, env.reg.GetDeployers())
	assert.Equal(t, next, env.reg.NextInstanceAddress())
	assert.Empty(t, env.events)
}

func TestDeployStaticHasNoManager(t *testing.T) {
	env := newTestEnv(t)
	addr, err := env.reg.DeployStatic(env.ctx, deployer, env.params())
	require.NoError(t, err)

	v, _ := env.reg.Instance(addr)
	assert.Equal(t, common.Address{}, v.Manager())
	assert.Zero(t, v.Config().ManagerFeeBPS)
	assert.ErrorIs(t, v.ToggleRestrictMint(manager), vault.ErrAccessDenied)
}

func TestDeployWithInitialDeposit(t *testing.T) {
	env := newTestEnv(t)
	next := env.reg.NextInstanceAddress()
	require.NoError(t, env.t0.Approve(deployer, next, token.MaxAllowance))
	require.NoError(t, env.t1.Approve(deployer, next, token.MaxAllowance))

	p := env.params()
	p.InitialDeposit = Deposit{Amount0: e18(1), Amount1: e18(1)}
	addr, err := env.reg.Deploy(env.ctx, deployer, p)
	require.NoError(t, err)

	v, _ := env.reg.Instance(addr)
	assert.Equal(t, "33837499809738371427", v.BalanceOf(deployer).ToBig().String())
	assert.Equal(t, e18(99), env.t0.BalanceOf(deployer))

	var kinds []string
	for i, ev := range env.events {
		kinds = append(kinds, ev.Kind)
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	assert.Equal(t, []string{model.EventMinted, model.EventDeployed}, kinds)
}

func TestFailedInitialDepositAbortsDeploy(t *testing.T) {
	env := newTestEnv(t)
	next := env.reg.NextInstanceAddress()
	require.NoError(t, env.t0.Approve(deployer, next, token.MaxAllowance))

	p := env.params()
	p.InitialDeposit = Deposit{Amount0: e18(1), Amount1: e18(1)}
	_, err := env.reg.Deploy(env.ctx, deployer, p)
	require.ErrorIs(t, err, vault.ErrInsufficientInput)

	assert.Zero(t, env.reg.NumInstances())
	assert.Equal(t, next, env.reg.NextInstanceAddress())
	assert.Equal(t, e18(100), env.t0.BalanceOf(deployer))
	assert.Nil(t, env.reg.ResolveImplementation(next))
	assert.Empty(t, env.events)
}

func TestUpgradeImplementation(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.deploy(t), env.deploy(t)

	err := env.reg.UpgradeImplementation(deployer, []common.Address{a}, env.implB)
	assert.ErrorIs(t, err, ErrAccessDenied)

	err = env.reg.UpgradeImplementation(owner, []common.Address{a, other}, env.implB)
	assert.ErrorIs(t, err, ErrUnknownInstance)
	assert.Same(t, env.implA, env.reg.ResolveImplementation(a))

	require.NoError(t, env.reg.UpgradeImplementation(owner, []common.Address{a, b}, env.implB))
	va, _ := env.reg.Instance(a)
	assert.Same(t, env.implB, va.Implementation())
	assert.Same(t, env.implB, env.reg.ResolveImplementation(b))
	assert.Same(t, env.implA, env.reg.Implementation(), "new deployments are unaffected")
}

func TestMakeImmutableBlocksUpgrades(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.deploy(t), env.deploy(t)

	assert.ErrorIs(t, env.reg.MakeImmutable(other, []common.Address{a}), ErrAccessDenied)
	require.NoError(t, env.reg.MakeImmutable(owner, []common.Address{a}))
	assert.True(t, env.reg.IsImmutable(a))
	assert.False(t, env.reg.IsImmutable(b))
	assert.Equal(t, common.Address{}, env.reg.GetAdmin(a))
	assert.Equal(t, regAddr, env.reg.GetAdmin(b))

	err := env.reg.UpgradeImplementation(owner, []common.Address{b, a}, env.implB)
	assert.ErrorIs(t, err, ErrInstanceImmutable)
	assert.Same(t, env.implA, env.reg.ResolveImplementation(b), "batch is all or nothing")

	assert.ErrorIs(t, env.reg.MakeImmutable(owner, []common.Address{b, a}), ErrInstanceImmutable)
	assert.False(t, env.reg.IsImmutable(b))
}

func TestUpgradeImplementationAndCall(t *testing.T) {
	env := newTestEnv(t)
	a := env.deploy(t)

	toggle := func(v *vault.Vault) error { return v.ToggleRestrictMint(manager) }
	err := env.reg.UpgradeImplementationAndCall(owner, []common.Address{a}, env.implB, nil)
	assert.ErrorIs(t, err, ErrCallMismatch)

	require.NoError(t, env.reg.UpgradeImplementationAndCall(owner, []common.Address{a}, env.implB, []func(*vault.Vault) error{toggle}))
	v, _ := env.reg.Instance(a)
	assert.Same(t, env.implB, v.Implementation())
	assert.True(t, v.RestrictedMint())

	boom := errors.New("boom")
	err = env.reg.UpgradeImplementationAndCall(owner, []common.Address{a}, env.implA, []func(*vault.Vault) error{
		func(v *vault.Vault) error {
			if err := toggle(v); err != nil {
				return err
			}
			return boom
		},
	})
	assert.ErrorIs(t, err, boom)
	assert.Same(t, env.implB, v.Implementation())
	assert.True(t, v.RestrictedMint())
}

func TestSetImplementation(t *testing.T) {
	env := newTestEnv(t)
	a := env.deploy(t)

	assert.ErrorIs(t, env.reg.SetImplementation(deployer, env.implB), ErrAccessDenied)
	require.NoError(t, env.reg.SetImplementation(owner, env.implB))
	b := env.deploy(t)
	assert.Same(t, env.implA, env.reg.ResolveImplementation(a))
	assert.Same(t, env.implB, env.reg.ResolveImplementation(b))

	require.NoError(t, env.reg.SetImplementation(owner, nil))
	_, err := env.reg.Deploy(env.ctx, deployer, env.params())
	assert.ErrorIs(t, err, vault.ErrNoImplementation)
}

func TestUpgradeToNilImplementationDisablesInstance(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.deploy(t), env.deploy(t)
	require.NoError(t, env.t0.Approve(deployer, a, token.MaxAllowance))
	require.NoError(t, env.t1.Approve(deployer, a, token.MaxAllowance))

	require.NoError(t, env.reg.SetImplementation(owner, nil))
	require.NoError(t, env.reg.UpgradeImplementation(owner, []common.Address{a}, env.reg.Implementation()))
	assert.Nil(t, env.reg.ResolveImplementation(a))
	entry, ok := env.reg.Entry(a)
	require.True(t, ok)
	assert.Empty(t, entry.Implementation)

	v, _ := env.reg.Instance(a)
	_, err := v.GetMintAmounts(env.ctx, e18(1), e18(1))
	assert.ErrorIs(t, err, vault.ErrNoImplementation)
	_, err = v.Mint(env.ctx, deployer, e18(1), deployer)
	assert.ErrorIs(t, err, vault.ErrNoImplementation)
	_, err = v.GetUnderlyingBalances(env.ctx)
	assert.ErrorIs(t, err, vault.ErrNoImplementation)

	vb, _ := env.reg.Instance(b)
	_, err = vb.GetMintAmounts(env.ctx, e18(1), e18(1))
	assert.NoError(t, err, "instances left out of the batch keep working")

	require.NoError(t, env.reg.UpgradeImplementation(owner, []common.Address{a}, env.implB))
	q, err := v.GetMintAmounts(env.ctx, e18(1), e18(1))
	require.NoError(t, err)
	_, err = v.Mint(env.ctx, deployer, q.Shares, deployer)
	require.NoError(t, err)
}

func TestRegistryOwnership(t *testing.T) {
	env := newTestEnv(t)
	a := env.deploy(t)

	assert.ErrorIs(t, env.reg.TransferOwnership(owner, common.Address{}), vault.ErrZeroAddress)
	assert.ErrorIs(t, env.reg.TransferOwnership(other, other), ErrAccessDenied)
	require.NoError(t, env.reg.TransferOwnership(owner, other))
	assert.Equal(t, other, env.reg.Owner())
	assert.ErrorIs(t, env.reg.MakeImmutable(owner, []common.Address{a}), ErrAccessDenied)

	require.NoError(t, env.reg.RenounceOwnership(other))
	assert.Equal(t, common.Address{}, env.reg.Owner())
	for _, err := range []error{
		env.reg.UpgradeImplementation(other, []common.Address{a}, env.implB),
		env.reg.MakeImmutable(common.Address{}, []common.Address{a}),
		env.reg.SetImplementation(common.Address{}, env.implB),
		env.reg.TransferOwnership(other, owner),
	} {
		assert.ErrorIs(t, err, ErrAccessDenied)
	}

	_, err := env.reg.Deploy(env.ctx, deployer, env.params())
	assert.NoError(t, err, "deployment stays permissionless")
}
