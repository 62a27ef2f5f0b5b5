package dex

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// FormatUnits renders a base-unit token amount with the token's decimals.
func FormatUnits(value *uint256.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value.ToBig(), -int32(decimals)).String()
}

// ParseUnits converts a human amount such as "1.5" into base units. More
// fractional digits than the token has are rejected.
func ParseUnits(input string, decimals uint8) (*uint256.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return new(uint256.Int), nil
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", input, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("parse amount %q: negative", input)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("parse amount %q: more than %d decimals", input, decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("parse amount %q: overflows 256 bits", input)
	}
	return v, nil
}
