// Package plugin provides an extensible observer system for the Stokvel ledger.
// Plugins hook into lifecycle and token events. Hooks run after the operation
// has been committed; a failing hook is logged and never affects ledger state.
package plugin

import (
	"context"

	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/id"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Token hooks
// ──────────────────────────────────────────────────

// OnGenesis is called once, after the whole supply has been minted to the creator.
type OnGenesis interface {
	Plugin
	OnGenesis(ctx context.Context, meta *token.Metadata) error
}

// OnTransfer is called for every committed Transfer event, the genesis mint included.
type OnTransfer interface {
	Plugin
	OnTransfer(ctx context.Context, e *event.Event) error
}

// OnApproval is called for every committed Approval event.
type OnApproval interface {
	Plugin
	OnApproval(ctx context.Context, e *event.Event) error
}

// OnSupplierPaid is called for every committed SupplierPaid event.
type OnSupplierPaid interface {
	Plugin
	OnSupplierPaid(ctx context.Context, e *event.Event) error
}

// Rejection describes an operation that failed a ledger check.
type Rejection struct {
	OperationID id.OperationID
	Operation   string
	Caller      types.Address
	Kind        string
	Reason      string
}

// OnRejected is called when an operation is rejected. Nothing was committed.
type OnRejected interface {
	Plugin
	OnRejected(ctx context.Context, r *Rejection) error
}
