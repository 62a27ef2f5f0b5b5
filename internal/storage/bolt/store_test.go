package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSnapshotsLatestAndHistory(t *testing.T) {
	s := openTemp(t)
	a := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	b := common.HexToAddress("0x00000000000000000000000000000000000000ab")

	_, err := s.Latest(a)
	require.ErrorIs(t, err, ErrNotFound)

	ctx := context.Background()
	require.NoError(t, s.PutSnapshots(ctx, []model.VaultSnapshot{
		{Vault: a.Hex(), TotalSupply: "1", Timestamp: 200},
		{Vault: b.Hex(), TotalSupply: "9", Timestamp: 150},
	}))
	require.NoError(t, s.PutSnapshots(ctx, []model.VaultSnapshot{
		{Vault: a.Hex(), TotalSupply: "0", Timestamp: 100},
		{Vault: a.Hex(), TotalSupply: "3", Timestamp: 300},
	}))

	latest, err := s.Latest(a)
	require.NoError(t, err)
	assert.Equal(t, "3", latest.TotalSupply)

	hist, err := s.History(a)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, []int64{100, 200, 300}, []int64{hist[0].Timestamp, hist[1].Timestamp, hist[2].Timestamp})

	hist, err = s.History(b)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestPutSnapshotsRejectsBadAddress(t *testing.T) {
	s := openTemp(t)
	err := s.PutSnapshots(context.Background(), []model.VaultSnapshot{{Vault: "nope"}})
	assert.ErrorContains(t, err, "invalid vault address")
}

func TestRegistryEntriesReplace(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.PutRegistryEntries([]model.RegistryEntry{{Instance: "0x1"}, {Instance: "0x2"}}))
	require.NoError(t, s.PutRegistryEntries([]model.RegistryEntry{{Instance: "0x3", Immutable: true}}))

	got, err := s.RegistryEntries()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0x3", got[0].Instance)
	assert.True(t, got[0].Immutable)
}
