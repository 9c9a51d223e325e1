package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a 20-byte account identifier.
type Address = common.Address

// ZeroAddress is the reserved "no account" identifier. It never holds a
// balance and is never a valid recipient or spender.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed (or bare) 40 hex character address.
func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return ZeroAddress, fmt.Errorf("address: invalid hex address %q", s)
	}
	return common.HexToAddress(s), nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZeroAddress reports whether a is the zero identifier.
func IsZeroAddress(a Address) bool {
	return a == ZeroAddress
}

// BytesToAddress left-pads b into an address. Handy for deterministic
// fixtures: BytesToAddress([]byte{1}) == 0x000…01.
func BytesToAddress(b []byte) Address {
	return common.BytesToAddress(b)
}
