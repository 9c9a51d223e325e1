// Package types provides the value types shared across Stokvel: token
// amounts and account addresses.
package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 256-bit quantity of base units.
// All arithmetic is integer-only and overflow-checked.
//
// Examples:
//   - NewAmount(1) = one base unit
//   - Tokens(1000) = 1000 × 10^18 base units
//
//nolint:recvcheck // Value receivers for arithmetic, pointer receivers for UnmarshalText/Scan.
type Amount struct {
	v uint256.Int
}

// BaseUnitDecimals is the number of decimal places of one whole token.
const BaseUnitDecimals = 18

var (
	errEmptyAmount    = errors.New("amount: empty string")
	errAmountOverflow = errors.New("amount: overflows 256 bits")
)

// NewAmount creates an Amount of n base units.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Tokens creates an Amount of whole tokens (whole × 10^18 base units).
func Tokens(whole uint64) Amount {
	a := NewAmount(whole)
	a.v.Mul(&a.v, pow10(BaseUnitDecimals))
	return a
}

// ParseAmount parses a decimal base-unit string such as "1000000000000000000".
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, errEmptyAmount
	}

	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("amount: parse %q: %w", s, err)
	}

	return Amount{v: *v}, nil
}

// MustParseAmount is like ParseAmount but panics on error. Use for constants.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBig converts a non-negative big.Int into an Amount.
func FromBig(b *big.Int) (Amount, error) {
	if b == nil || b.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount: negative or nil value %v", b)
	}

	v, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, errAmountOverflow
	}

	return Amount{v: *v}, nil
}

// Arithmetic operations

// Add returns a+other and reports whether the sum overflowed.
func (a Amount) Add(other Amount) (Amount, bool) {
	var r Amount
	_, overflow := r.v.AddOverflow(&a.v, &other.v)
	return r, overflow
}

// Sub returns a-other and reports whether the difference underflowed.
func (a Amount) Sub(other Amount) (Amount, bool) {
	var r Amount
	_, underflow := r.v.SubOverflow(&a.v, &other.v)
	return r, underflow
}

// Comparison methods

// Cmp returns -1, 0 or +1 depending on whether a is less than, equal to or
// greater than other.
func (a Amount) Cmp(other Amount) int { return a.v.Cmp(&other.v) }

// Lt reports whether a < other.
func (a Amount) Lt(other Amount) bool { return a.v.Lt(&other.v) }

// Gt reports whether a > other.
func (a Amount) Gt(other Amount) bool { return a.v.Gt(&other.v) }

// Equal reports whether a == other.
func (a Amount) Equal(other Amount) bool { return a.v.Eq(&other.v) }

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Conversions

// Big returns the amount as a new big.Int.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// Uint256 returns a copy of the underlying 256-bit integer.
func (a Amount) Uint256() *uint256.Int { return a.v.Clone() }

// Float64Tokens returns the amount in whole tokens as a float, for metrics.
// Precision is lost for large values.
func (a Amount) Float64Tokens(decimals uint8) float64 {
	f := new(big.Float).SetInt(a.v.ToBig())
	f.Quo(f, new(big.Float).SetInt(pow10(decimals).ToBig()))
	out, _ := f.Float64()
	return out
}

// Formatting methods

// String returns the base-unit decimal string.
func (a Amount) String() string { return a.v.Dec() }

// Format renders the amount in whole tokens with the given number of
// decimals, trimming trailing zeros: Tokens(1000).Format(18) == "1000.0".
func (a Amount) Format(decimals uint8) string {
	if decimals == 0 {
		return a.String()
	}

	var whole, frac uint256.Int
	unit := pow10(decimals)
	whole.Div(&a.v, unit)
	frac.Mod(&a.v, unit)

	fs := frac.Dec()
	fs = strings.Repeat("0", int(decimals)-len(fs)) + fs
	fs = strings.TrimRight(fs, "0")
	if fs == "" {
		fs = "0"
	}

	return whole.Dec() + "." + fs
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer. Amounts are stored as decimal strings.
func (a Amount) Value() (driver.Value, error) {
	return a.v.Dec(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("amount: cannot scan negative %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T into Amount", src)
	}
}

// Sum adds all values and reports whether the total overflowed.
func Sum(values ...Amount) (Amount, bool) {
	var total Amount
	for _, v := range values {
		var overflow bool
		total, overflow = total.Add(v)
		if overflow {
			return Amount{}, true
		}
	}
	return total, false
}

func pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}
