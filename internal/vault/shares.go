package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/liquidity"
	"liquidityVault/internal/model"
	"liquidityVault/internal/oracle"
)

// Underlying is what the whole share supply is worth: position principal,
// holders' portion of uncollected fees and idle balances.
type Underlying struct {
	Amount0      *uint256.Int
	Amount1      *uint256.Int
	Liquidity    *uint256.Int
	SqrtPriceX96 *uint256.Int
}

// GetUnderlyingBalances values the instance at the pool's current price.
func (v *Vault) GetUnderlyingBalances(ctx context.Context) (Underlying, error) {
	if v.Implementation() == nil {
		return Underlying{}, ErrNoImplementation
	}
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return Underlying{}, err
	}
	return v.underlyingAt(ctx, slot0.SqrtPriceX96)
}

// GetUnderlyingBalancesAtPrice values the instance at an arbitrary price.
func (v *Vault) GetUnderlyingBalancesAtPrice(ctx context.Context, sqrtPriceX96 *uint256.Int) (Underlying, error) {
	if v.Implementation() == nil {
		return Underlying{}, ErrNoImplementation
	}
	return v.underlyingAt(ctx, sqrtPriceX96)
}

func (v *Vault) underlyingAt(ctx context.Context, sqrtPriceX96 *uint256.Int) (Underlying, error) {
	h, err := oracle.ValueAt(ctx, v.pool, sqrtPriceX96, v.address, v.st.lower, v.st.upper)
	if err != nil {
		return Underlying{}, err
	}
	fee0, fee1 := v.netOfAdminFees(h.Owed0, h.Owed1)
	idle0, idle1 := v.idle()
	return Underlying{
		Amount0:      new(uint256.Int).Add(new(uint256.Int).Add(h.Amount0, fee0), idle0),
		Amount1:      new(uint256.Int).Add(new(uint256.Int).Add(h.Amount1, fee1), idle1),
		Liquidity:    h.Liquidity,
		SqrtPriceX96: sqrtPriceX96,
	}, nil
}

// MintQuote is the result of GetMintAmounts.
type MintQuote struct {
	Amount0 *uint256.Int
	Amount1 *uint256.Int
	Shares  *uint256.Int
}

// GetMintAmounts returns the largest share amount max0 and max1 can buy and
// the token amounts it costs. Amounts round up against the depositor.
func (v *Vault) GetMintAmounts(ctx context.Context, max0, max1 *uint256.Int) (MintQuote, error) {
	if v.Implementation() == nil {
		return MintQuote{}, ErrNoImplementation
	}
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return MintQuote{}, err
	}
	supply := v.shares.TotalSupply()

	if supply.IsZero() {
		liq, err := liquidity.LiquidityForTicks(slot0.SqrtPriceX96, v.st.lower, v.st.upper, max0, max1)
		if err != nil {
			return MintQuote{}, err
		}
		if liq.IsZero() {
			return MintQuote{}, ErrZeroShares
		}
		amount0, amount1, err := v.bootstrapAmounts(slot0.SqrtPriceX96, liq)
		if err != nil {
			return MintQuote{}, err
		}
		return MintQuote{Amount0: amount0, Amount1: amount1, Shares: liq}, nil
	}

	u, err := v.underlyingAt(ctx, slot0.SqrtPriceX96)
	if err != nil {
		return MintQuote{}, err
	}
	shares, err := sharesFor(max0, max1, u.Amount0, u.Amount1, supply)
	if err != nil {
		return MintQuote{}, err
	}
	amount0, amount1, err := proRataUp(shares, u.Amount0, u.Amount1, supply)
	if err != nil {
		return MintQuote{}, err
	}
	return MintQuote{Amount0: amount0, Amount1: amount1, Shares: shares}, nil
}

func sharesFor(max0, max1, u0, u1, supply *uint256.Int) (*uint256.Int, error) {
	var shares *uint256.Int
	switch {
	case u0.IsZero() && u1.IsZero():
		return nil, ErrInsufficientInput
	case u0.IsZero():
		s, err := liquidity.MulDiv(max1, supply, u1)
		if err != nil {
			return nil, err
		}
		shares = s
	case u1.IsZero():
		s, err := liquidity.MulDiv(max0, supply, u0)
		if err != nil {
			return nil, err
		}
		shares = s
	default:
		s0, err := liquidity.MulDiv(max0, supply, u0)
		if err != nil {
			return nil, err
		}
		s1, err := liquidity.MulDiv(max1, supply, u1)
		if err != nil {
			return nil, err
		}
		shares = minU(s0, s1)
	}
	if shares.IsZero() {
		return nil, ErrZeroShares
	}
	return shares, nil
}

func proRataUp(shares, u0, u1, supply *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	amount0, err := liquidity.MulDivRoundingUp(shares, u0, supply)
	if err != nil {
		return nil, nil, err
	}
	amount1, err := liquidity.MulDivRoundingUp(shares, u1, supply)
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (v *Vault) bootstrapAmounts(sqrtPriceX96, shares *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if shares.Gt(maxUint128) {
		return nil, nil, fmt.Errorf("%w: shares exceed liquidity range", ErrInsufficientInput)
	}
	sqrtA, sqrtB, err := liquidity.RangeRatios(v.st.lower, v.st.upper)
	if err != nil {
		return nil, nil, err
	}
	return liquidity.AmountsForLiquidityRoundingUp(sqrtPriceX96, sqrtA, sqrtB, shares)
}

// MintResult reports what a mint pulled and deployed.
type MintResult struct {
	Amount0         *uint256.Int
	Amount1         *uint256.Int
	LiquidityMinted *uint256.Int
}

// Mint issues shares to recipient, pulling the pro rata token amounts from
// caller. caller must have approved the instance on both token ledgers.
func (v *Vault) Mint(ctx context.Context, caller common.Address, shares *uint256.Int, recipient common.Address) (MintResult, error) {
	var res MintResult
	err := v.run("mint", func(*Implementation) error {
		if shares == nil || shares.IsZero() {
			return ErrZeroShares
		}
		if recipient == (common.Address{}) {
			return ErrZeroAddress
		}
		if v.st.restrictedMint && v.st.manager != (common.Address{}) && caller != v.st.manager {
			return ErrAccessDenied
		}
		slot0, err := v.pool.Slot0(ctx)
		if err != nil {
			return err
		}

		supply := v.shares.TotalSupply()
		var amount0, amount1 *uint256.Int
		if supply.IsZero() {
			amount0, amount1, err = v.bootstrapAmounts(slot0.SqrtPriceX96, shares)
		} else {
			var u Underlying
			u, err = v.underlyingAt(ctx, slot0.SqrtPriceX96)
			if err == nil {
				if u.Amount0.IsZero() && u.Amount1.IsZero() {
					return ErrInsufficientInput
				}
				amount0, amount1, err = proRataUp(shares, u.Amount0, u.Amount1, supply)
			}
		}
		if err != nil {
			return err
		}

		if err := v.pullExact(v.token0, caller, amount0); err != nil {
			return err
		}
		if err := v.pullExact(v.token1, caller, amount1); err != nil {
			return err
		}

		liq, err := liquidity.LiquidityForTicks(slot0.SqrtPriceX96, v.st.lower, v.st.upper, amount0, amount1)
		if err != nil {
			return err
		}
		if !liq.IsZero() {
			if _, _, err := v.pool.Mint(ctx, v.address, v.st.lower, v.st.upper, liq); err != nil {
				return fmt.Errorf("deploy liquidity: %w", err)
			}
		}
		if err := v.shares.Mint(recipient, shares); err != nil {
			return err
		}

		res = MintResult{Amount0: amount0, Amount1: amount1, LiquidityMinted: liq}
		v.emit(model.EventMinted, model.MintedData{
			Receiver:        recipient.Hex(),
			Shares:          str(shares),
			Amount0:         str(amount0),
			Amount1:         str(amount1),
			LiquidityMinted: str(liq),
		})
		v.journal.OnCommit(func() {
			v.logger.Info("vault minted",
				zap.String("receiver", recipient.Hex()),
				zap.String("shares", str(shares)),
				zap.String("amount0", str(amount0)),
				zap.String("amount1", str(amount1)),
			)
		})
		return nil
	})
	if err != nil {
		return MintResult{}, err
	}
	return res, nil
}

// pullExact moves amount of t from owner to the instance and insists the
// instance balance grew by exactly amount.
func (v *Vault) pullExact(t Token, owner common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	before := t.BalanceOf(v.address)
	if err := t.TransferFrom(v.address, owner, v.address, amount); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInsufficientInput, t.Symbol(), err)
	}
	received := subFloor(t.BalanceOf(v.address), before)
	if !received.Eq(amount) {
		return fmt.Errorf("%w: %s received %s, expected %s", ErrInsufficientInput, t.Symbol(), str(received), str(amount))
	}
	return nil
}

// BurnResult reports what a burn paid out.
type BurnResult struct {
	Amount0         *uint256.Int
	Amount1         *uint256.Int
	LiquidityBurned *uint256.Int
}

// Burn redeems caller's shares for a pro rata slice of the position and of
// idle balances, paid to recipient. Fees collected on the way are split
// before the payout.
func (v *Vault) Burn(ctx context.Context, caller common.Address, shares *uint256.Int, recipient common.Address) (BurnResult, error) {
	var res BurnResult
	err := v.run("burn", func(*Implementation) error {
		if shares == nil || shares.IsZero() {
			return ErrZeroShares
		}
		if shares.Gt(v.shares.BalanceOf(caller)) {
			return fmt.Errorf("%w: burn exceeds balance", ErrZeroShares)
		}
		if recipient == (common.Address{}) {
			return ErrZeroAddress
		}

		supply := v.shares.TotalSupply()
		pos, err := v.position(ctx)
		if err != nil {
			return err
		}
		liqBurned, err := liquidity.MulDiv(shares, pos.Liquidity, supply)
		if err != nil {
			return err
		}
		if err := v.shares.Burn(caller, shares); err != nil {
			return err
		}

		w, err := v.withdraw(ctx, pos.Liquidity, liqBurned)
		if err != nil {
			return err
		}
		v.applyFees(w.fee0, w.fee1)

		idle0, idle1 := v.idle()
		extra0, err := liquidity.MulDiv(subFloor(idle0, w.burned0), shares, supply)
		if err != nil {
			return err
		}
		extra1, err := liquidity.MulDiv(subFloor(idle1, w.burned1), shares, supply)
		if err != nil {
			return err
		}
		amount0 := new(uint256.Int).Add(w.burned0, extra0)
		amount1 := new(uint256.Int).Add(w.burned1, extra1)
		if err := v.payout(recipient, amount0, amount1); err != nil {
			return err
		}

		res = BurnResult{Amount0: amount0, Amount1: amount1, LiquidityBurned: liqBurned}
		v.emit(model.EventBurned, model.BurnedData{
			Receiver:        recipient.Hex(),
			Shares:          str(shares),
			Amount0:         str(amount0),
			Amount1:         str(amount1),
			LiquidityBurned: str(liqBurned),
		})
		v.journal.OnCommit(func() {
			v.logger.Info("vault burned",
				zap.String("receiver", recipient.Hex()),
				zap.String("shares", str(shares)),
				zap.String("amount0", str(amount0)),
				zap.String("amount1", str(amount1)),
			)
		})
		return nil
	})
	if err != nil {
		return BurnResult{}, err
	}
	return res, nil
}

type withdrawal struct {
	burned0, burned1 *uint256.Int
	fee0, fee1       *uint256.Int
}

// withdraw burns amount of the position's liquidity, collects everything
// owed and separates principal from fees. A live position is poked first so
// fees are current even when amount is zero.
func (v *Vault) withdraw(ctx context.Context, positionLiquidity, amount *uint256.Int) (withdrawal, error) {
	w := withdrawal{burned0: new(uint256.Int), burned1: new(uint256.Int)}
	if !positionLiquidity.IsZero() {
		b0, b1, err := v.pool.Burn(ctx, v.address, v.st.lower, v.st.upper, amount)
		if err != nil {
			return withdrawal{}, fmt.Errorf("burn liquidity: %w", err)
		}
		w.burned0, w.burned1 = b0, b1
	}
	c0, c1, err := v.pool.Collect(ctx, v.address, v.address, v.st.lower, v.st.upper, maxUint128, maxUint128)
	if err != nil {
		return withdrawal{}, fmt.Errorf("collect: %w", err)
	}
	w.fee0 = subFloor(c0, w.burned0)
	w.fee1 = subFloor(c1, w.burned1)
	return w, nil
}

// Name, Symbol, Decimals and the functions below expose the share ledger.
func (v *Vault) Name() string    { return v.shares.Name() }
func (v *Vault) Symbol() string  { return v.shares.Symbol() }
func (v *Vault) Decimals() uint8 { return v.shares.Decimals() }

func (v *Vault) TotalSupply() *uint256.Int { return v.shares.TotalSupply() }

func (v *Vault) BalanceOf(account common.Address) *uint256.Int { return v.shares.BalanceOf(account) }

func (v *Vault) Allowance(owner, spender common.Address) *uint256.Int {
	return v.shares.Allowance(owner, spender)
}

func (v *Vault) Transfer(caller, to common.Address, amount *uint256.Int) error {
	return v.run("transfer", func(*Implementation) error {
		return v.shares.Transfer(caller, to, amount)
	})
}

func (v *Vault) Approve(caller, spender common.Address, amount *uint256.Int) error {
	return v.run("approve", func(*Implementation) error {
		return v.shares.Approve(caller, spender, amount)
	})
}

func (v *Vault) TransferFrom(caller, from, to common.Address, amount *uint256.Int) error {
	return v.run("transfer from", func(*Implementation) error {
		return v.shares.TransferFrom(caller, from, to, amount)
	})
}
