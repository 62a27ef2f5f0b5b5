package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/journal"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
	carol = common.HexToAddress("0xca401")
)

func newTestLedger(t *testing.T) (*Ledger, *journal.Journal) {
	t.Helper()
	j := journal.New()
	l := NewLedger(j, common.HexToAddress("0x70c3"), "Token A", "TKA", 18)
	require.NoError(t, l.Mint(alice, uint256.NewInt(1000)))
	return l, j
}

func TestTransfer(t *testing.T) {
	l, _ := newTestLedger(t)

	require.NoError(t, l.Transfer(alice, bob, uint256.NewInt(400)))
	assert.Equal(t, uint64(600), l.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(400), l.BalanceOf(bob).Uint64())
	assert.Equal(t, uint64(1000), l.TotalSupply().Uint64())

	err := l.Transfer(bob, alice, uint256.NewInt(401))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.ErrorIs(t, l.Transfer(alice, common.Address{}, uint256.NewInt(1)), ErrZeroAddress)
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	l, _ := newTestLedger(t)

	require.NoError(t, l.Approve(alice, bob, uint256.NewInt(300)))
	require.NoError(t, l.TransferFrom(bob, alice, carol, uint256.NewInt(200)))
	assert.Equal(t, uint64(100), l.Allowance(alice, bob).Uint64())
	assert.Equal(t, uint64(200), l.BalanceOf(carol).Uint64())

	err := l.TransferFrom(bob, alice, carol, uint256.NewInt(101))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestTransferFromMaxAllowanceIsNotDecremented(t *testing.T) {
	l, _ := newTestLedger(t)

	require.NoError(t, l.Approve(alice, bob, MaxAllowance))
	require.NoError(t, l.TransferFrom(bob, alice, carol, uint256.NewInt(999)))
	assert.True(t, l.Allowance(alice, bob).Eq(MaxAllowance))
}

func TestBurn(t *testing.T) {
	l, _ := newTestLedger(t)

	require.NoError(t, l.Burn(alice, uint256.NewInt(250)))
	assert.Equal(t, uint64(750), l.TotalSupply().Uint64())
	assert.ErrorIs(t, l.Burn(alice, uint256.NewInt(751)), ErrInsufficientBalance)
}

func TestMutationsRevertWithJournal(t *testing.T) {
	l, j := newTestLedger(t)
	errAbort := errors.New("abort")

	err := j.Atomic(func() error {
		require.NoError(t, l.Transfer(alice, bob, uint256.NewInt(10)))
		require.NoError(t, l.Approve(bob, carol, uint256.NewInt(5)))
		require.NoError(t, l.Mint(carol, uint256.NewInt(7)))
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	assert.Equal(t, uint64(1000), l.BalanceOf(alice).Uint64())
	assert.True(t, l.BalanceOf(bob).IsZero())
	assert.True(t, l.BalanceOf(carol).IsZero())
	assert.True(t, l.Allowance(bob, carol).IsZero())
	assert.Equal(t, uint64(1000), l.TotalSupply().Uint64())
}
