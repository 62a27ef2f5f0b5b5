// Package token implements an in-memory fungible token ledger with the
// balance, transfer and allowance semantics of an ERC20 contract.
package token

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/journal"
)

var (
	ErrInsufficientBalance   = errors.New("token: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrZeroAddress           = errors.New("token: zero address")
)

// MaxAllowance is never decremented by TransferFrom.
var MaxAllowance = new(uint256.Int).SetAllOne()

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Ledger holds balances and allowances. Every mutation is recorded in the
// journal so an enclosing atomic operation can revert it.
type Ledger struct {
	address  common.Address
	name     string
	symbol   string
	decimals uint8

	journal    *journal.Journal
	supply     *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

// NewLedger creates an empty ledger. j may be shared with other state that
// must revert together with this ledger.
func NewLedger(j *journal.Journal, address common.Address, name, symbol string, decimals uint8) *Ledger {
	return &Ledger{
		address:    address,
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		journal:    j,
		supply:     new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

func (l *Ledger) Address() common.Address { return l.address }
func (l *Ledger) Name() string            { return l.name }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Decimals() uint8         { return l.decimals }

// TotalSupply returns a copy of the total supply.
func (l *Ledger) TotalSupply() *uint256.Int {
	return new(uint256.Int).Set(l.supply)
}

// BalanceOf returns a copy of the balance of account.
func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// Allowance returns a copy of the amount spender may move from owner.
func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	if a, ok := l.allowances[allowanceKey{owner, spender}]; ok {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int)
}

// Mint credits amount to account and grows the supply.
func (l *Ledger) Mint(account common.Address, amount *uint256.Int) error {
	if account == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return fmt.Errorf("token: mint %s: supply overflow", l.symbol)
	}
	l.setSupply(supply)
	l.setBalance(account, new(uint256.Int).Add(l.BalanceOf(account), amount))
	return nil
}

// Burn debits amount from account and shrinks the supply.
func (l *Ledger) Burn(account common.Address, amount *uint256.Int) error {
	bal := l.BalanceOf(account)
	if bal.Lt(amount) {
		return fmt.Errorf("burn %s: %w", l.symbol, ErrInsufficientBalance)
	}
	l.setBalance(account, bal.Sub(bal, amount))
	l.setSupply(new(uint256.Int).Sub(l.supply, amount))
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	bal := l.BalanceOf(from)
	if bal.Lt(amount) {
		return fmt.Errorf("transfer %s: %w", l.symbol, ErrInsufficientBalance)
	}
	if from == to || amount.IsZero() {
		return nil
	}
	l.setBalance(from, bal.Sub(bal, amount))
	l.setBalance(to, new(uint256.Int).Add(l.BalanceOf(to), amount))
	return nil
}

// Approve sets the allowance of spender over owner's balance.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	l.setAllowance(allowanceKey{owner, spender}, new(uint256.Int).Set(amount))
	return nil
}

// TransferFrom moves amount from owner to recipient on behalf of spender,
// consuming allowance unless it is MaxAllowance.
func (l *Ledger) TransferFrom(spender, owner, recipient common.Address, amount *uint256.Int) error {
	key := allowanceKey{owner, spender}
	allowed := l.Allowance(owner, spender)
	if allowed.Lt(amount) {
		return fmt.Errorf("transfer %s from %s: %w", l.symbol, owner.Hex(), ErrInsufficientAllowance)
	}
	if err := l.Transfer(owner, recipient, amount); err != nil {
		return err
	}
	if !allowed.Eq(MaxAllowance) {
		l.setAllowance(key, allowed.Sub(allowed, amount))
	}
	return nil
}

func (l *Ledger) setSupply(v *uint256.Int) {
	prev := l.supply
	l.supply = v
	l.journal.Record(func() { l.supply = prev })
}

func (l *Ledger) setBalance(account common.Address, v *uint256.Int) {
	prev, existed := l.balances[account]
	l.balances[account] = v
	l.journal.Record(func() {
		if existed {
			l.balances[account] = prev
		} else {
			delete(l.balances, account)
		}
	})
}

func (l *Ledger) setAllowance(key allowanceKey, v *uint256.Int) {
	prev, existed := l.allowances[key]
	l.allowances[key] = v
	l.journal.Record(func() {
		if existed {
			l.allowances[key] = prev
		} else {
			delete(l.allowances, key)
		}
	})
}
