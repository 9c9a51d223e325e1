// Package event defines the events the ledger emits for external observers.
//
// Every balance-moving operation emits a Transfer event (including the genesis
// mint, whose From is the zero address). Approve emits Approval, and
// PaySupplier emits SupplierPaid immediately before its Transfer.
package event

import (
	"time"

	"github.com/xraph/stokvel/id"
	"github.com/xraph/stokvel/types"
)

// Kind names an event type.
type Kind string

const (
	KindTransfer     Kind = "Transfer"
	KindApproval     Kind = "Approval"
	KindSupplierPaid Kind = "SupplierPaid"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTransfer, KindApproval, KindSupplierPaid:
		return true
	}
	return false
}

// Event is one entry of the append-only event log. Only the address fields
// relevant to Kind are set; the others hold the zero address.
type Event struct {
	ID          id.EventID     `json:"id"`
	Sequence    uint64         `json:"sequence"`
	OperationID id.OperationID `json:"operation_id"`
	Kind        Kind           `json:"kind"`

	// Transfer
	From types.Address `json:"from"`
	To   types.Address `json:"to"`

	// Approval
	Owner   types.Address `json:"owner"`
	Spender types.Address `json:"spender"`

	// SupplierPaid
	Supplier types.Address `json:"supplier"`

	Amount     types.Amount `json:"amount"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NewTransfer builds a Transfer(from, to, amount) event.
func NewTransfer(from, to types.Address, amount types.Amount) *Event {
	return &Event{Kind: KindTransfer, From: from, To: to, Amount: amount}
}

// NewApproval builds an Approval(owner, spender, amount) event.
func NewApproval(owner, spender types.Address, amount types.Amount) *Event {
	return &Event{Kind: KindApproval, Owner: owner, Spender: spender, Amount: amount}
}

// NewSupplierPaid builds a SupplierPaid(supplier, amount) event.
func NewSupplierPaid(supplier types.Address, amount types.Amount) *Event {
	return &Event{Kind: KindSupplierPaid, Supplier: supplier, Amount: amount}
}

// Involves reports whether account appears in any role of the event.
func (e *Event) Involves(account types.Address) bool {
	switch e.Kind {
	case KindTransfer:
		return e.From == account || e.To == account
	case KindApproval:
		return e.Owner == account || e.Spender == account
	case KindSupplierPaid:
		return e.Supplier == account
	}
	return false
}

// Args returns the event arguments in declaration order, the way an
// external log decoder would see them.
func (e *Event) Args() []any {
	switch e.Kind {
	case KindTransfer:
		return []any{e.From, e.To, e.Amount}
	case KindApproval:
		return []any{e.Owner, e.Spender, e.Amount}
	case KindSupplierPaid:
		return []any{e.Supplier, e.Amount}
	}
	return nil
}

// QueryOpts filters the event log. Zero values mean "no filter".
type QueryOpts struct {
	Kind Kind
	// Account matches events where the address appears in any role.
	// The zero address cannot be used as a filter.
	Account       types.Address
	AfterSequence uint64
	Limit         int
}

// Matches reports whether e passes the Kind, Account and AfterSequence filters.
func (o QueryOpts) Matches(e *Event) bool {
	if o.Kind != "" && e.Kind != o.Kind {
		return false
	}
	if !types.IsZeroAddress(o.Account) && !e.Involves(o.Account) {
		return false
	}
	return e.Sequence > o.AfterSequence
}
