package simulate

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ParseAccount resolves a scenario account reference. Hex addresses are
// taken as they are; any other name maps to a stable address derived from
// its hash, so scenarios can say "alice" instead of an address.
func ParseAccount(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("empty account")
	}
	if strings.HasPrefix(input, "0x") || strings.HasPrefix(input, "0X") {
		if !common.IsHexAddress(input) {
			return common.Address{}, fmt.Errorf("invalid address: %s", input)
		}
		return common.HexToAddress(input), nil
	}
	return common.BytesToAddress(crypto.Keccak256([]byte(input))[12:]), nil
}

// ParseAccounts resolves a list of account references.
func ParseAccounts(inputs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		addr, err := ParseAccount(input)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// ParseAmount parses a base-unit token amount in decimal or 0x hex. An empty
// input is zero.
func ParseAmount(input string) (*uint256.Int, error) {
	input = strings.TrimSpace(strings.ReplaceAll(input, "_", ""))
	if input == "" {
		return new(uint256.Int), nil
	}
	b, ok := new(big.Int).SetString(input, 0)
	if !ok || b.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", input)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("amount overflows 256 bits: %s", input)
	}
	return v, nil
}
