package simulate

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccount(t *testing.T) {
	addr, err := ParseAccount("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xaa"), addr)

	alice1, err := ParseAccount("alice")
	require.NoError(t, err)
	alice2, err := ParseAccount(" alice ")
	require.NoError(t, err)
	bob, err := ParseAccount("bob")
	require.NoError(t, err)
	assert.Equal(t, alice1, alice2)
	assert.NotEqual(t, alice1, bob)
	assert.NotEqual(t, common.Address{}, alice1)

	_, err = ParseAccount("0x1234")
	assert.Error(t, err)
	_, err = ParseAccount("")
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1_000_000_000_000_000_000")
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1_000_000_000_000_000_000), v)

	v, err = ParseAmount("0xff")
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(255), v)

	v, err = ParseAmount("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	for _, bad := range []string{"-1", "1.5", "abc", "0x1" + strings.Repeat("0", 64)} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}
