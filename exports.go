package stokvel

import "github.com/xraph/stokvel/types"

// Re-export common types for convenience so users don't have to import types package.

// Address is re-exported from types package.
type Address = types.Address

// Amount is re-exported from types package.
type Amount = types.Amount

// Re-export constructors
var (
	ZeroAddress  = types.ZeroAddress
	ParseAddress = types.ParseAddress
	ParseAmount  = types.ParseAmount
	NewAmount    = types.NewAmount
	Tokens       = types.Tokens
)
