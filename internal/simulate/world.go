package simulate

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/config"
	"liquidityVault/internal/journal"
	"liquidityVault/internal/liquidity"
	"liquidityVault/internal/model"
	"liquidityVault/internal/registry"
	"liquidityVault/internal/token"
	"liquidityVault/internal/vault"
)

// clock is the simulated chain time; only advance steps move it.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

// world is everything a scenario runs against.
type world struct {
	journal  *journal.Journal
	clock    *clock
	factory  *amm.Factory
	registry *registry.Registry
	tokens   map[string]*token.Ledger
	labels   map[string]common.Address
	impls    map[string]*vault.Implementation
	implBase config.ImplementationSpec
	events   []model.VaultEvent
}

func buildWorld(sc config.Scenario, logger *zap.Logger) (*world, error) {
	w := &world{
		journal:  journal.New(),
		clock:    &clock{now: time.Unix(sc.StartTime, 0).UTC()},
		tokens:   make(map[string]*token.Ledger),
		labels:   make(map[string]common.Address),
		impls:    make(map[string]*vault.Implementation),
		implBase: sc.Implementation,
	}
	w.factory = amm.NewFactory(w.journal, mustAccount("factory"), logger)

	directory := make(registry.TokenDirectory, len(sc.Tokens))
	for _, spec := range sc.Tokens {
		addr, err := tokenAddress(spec)
		if err != nil {
			return nil, err
		}
		name := spec.Name
		if name == "" {
			name = spec.Symbol
		}
		decimals := spec.Decimals
		if decimals == 0 {
			decimals = 18
		}
		ledger := token.NewLedger(w.journal, addr, name, spec.Symbol, decimals)
		w.tokens[spec.Symbol] = ledger
		w.factory.RegisterToken(ledger)
		directory[addr] = ledger
	}

	for _, spec := range sc.Pools {
		if err := w.createPool(spec); err != nil {
			return nil, err
		}
	}

	for _, b := range sc.Balances {
		account, err := ParseAccount(b.Account)
		if err != nil {
			return nil, fmt.Errorf("balance: %w", err)
		}
		amount, err := ParseAmount(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", b.Account, err)
		}
		if err := w.tokens[b.Token].Mint(account, amount); err != nil {
			return nil, fmt.Errorf("balance of %s: %w", b.Account, err)
		}
	}

	owner, err := ParseAccount(sc.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	impl, err := w.implementation(sc.Implementation.Version)
	if err != nil {
		return nil, err
	}
	w.registry = registry.New(w.journal, registry.Params{
		Address:        mustAccount("registry"),
		Owner:          owner,
		Pools:          w.factory,
		Tokens:         directory,
		Implementation: impl,
	},
		registry.WithLogger(logger),
		registry.WithClock(w.clock.Now),
		registry.WithEventSink(vault.EventSinkFunc(func(ev model.VaultEvent) {
			w.events = append(w.events, ev)
		})),
	)
	return w, nil
}

func (w *world) createPool(spec config.PoolSpec) error {
	pool, err := w.factory.CreatePool(w.tokens[spec.Token0].Address(), w.tokens[spec.Token1].Address(), spec.Fee)
	if err != nil {
		return fmt.Errorf("create pool %s/%s: %w", spec.Token0, spec.Token1, err)
	}
	var price *uint256.Int
	if spec.SqrtPriceX96 != "" {
		price, err = ParseAmount(spec.SqrtPriceX96)
	} else {
		price, err = liquidity.SqrtRatioAtTick(spec.Tick)
	}
	if err != nil {
		return fmt.Errorf("pool %s/%s price: %w", spec.Token0, spec.Token1, err)
	}
	if err := pool.Initialize(price); err != nil {
		return fmt.Errorf("initialize pool %s/%s: %w", spec.Token0, spec.Token1, err)
	}
	return nil
}

// implementation returns the implementation for a version, creating it
// from the scenario defaults on first use.
func (w *world) implementation(version string) (*vault.Implementation, error) {
	if impl, ok := w.impls[version]; ok {
		return impl, nil
	}
	impl := &vault.Implementation{
		Address:        mustAccount("implementation:" + version),
		Version:        version,
		ProtocolFeeBPS: w.implBase.ProtocolFeeBPS,
	}
	if w.implBase.Keeper != "" {
		keeper, err := ParseAccount(w.implBase.Keeper)
		if err != nil {
			return nil, fmt.Errorf("keeper: %w", err)
		}
		impl.Keeper = keeper
	}
	if w.implBase.ProtocolTreasury != "" {
		treasury, err := ParseAccount(w.implBase.ProtocolTreasury)
		if err != nil {
			return nil, fmt.Errorf("protocol treasury: %w", err)
		}
		impl.ProtocolTreasury = treasury
	}
	w.impls[version] = impl
	return impl, nil
}

func (w *world) token(symbol string) (*token.Ledger, error) {
	t, ok := w.tokens[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown token %q", symbol)
	}
	return t, nil
}

func (w *world) vault(label string) (*vault.Vault, error) {
	addr, ok := w.labels[label]
	if !ok {
		if !common.IsHexAddress(label) {
			return nil, fmt.Errorf("unknown vault %q", label)
		}
		addr = common.HexToAddress(label)
	}
	v, ok := w.registry.Instance(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownInstance, label)
	}
	return v, nil
}

func (w *world) vaults(labels []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(labels))
	for _, label := range labels {
		v, err := w.vault(label)
		if err != nil {
			return nil, err
		}
		out = append(out, v.Address())
	}
	return out, nil
}

func (w *world) drainEvents() []model.VaultEvent {
	out := w.events
	w.events = nil
	return out
}

func tokenAddress(spec config.TokenSpec) (common.Address, error) {
	if spec.Address != "" {
		return ParseAccount(spec.Address)
	}
	return mustAccount("token:" + spec.Symbol), nil
}

func mustAccount(name string) common.Address {
	addr, err := ParseAccount(name)
	if err != nil {
		panic(err)
	}
	return addr
}

// priceLimit is the loosest limit a swap in the given direction accepts.
func priceLimit(zeroForOne bool) *uint256.Int {
	if zeroForOne {
		return new(uint256.Int).AddUint64(liquidity.MinSqrtRatio, 1)
	}
	return new(uint256.Int).SubUint64(liquidity.MaxSqrtRatio, 1)
}
