package store

import (
	"context"

	"github.com/xraph/stokvel/allowance"
	"github.com/xraph/stokvel/balance"
	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

// Store is the unified storage interface for the token ledger.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to keep the backend surface in one place.
type Store interface {
	// Token methods
	GetMetadata(ctx context.Context) (*token.Metadata, error)

	// Balance methods
	GetBalance(ctx context.Context, account types.Address) (types.Amount, error)
	ListBalances(ctx context.Context, opts balance.ListOpts) ([]*balance.Balance, error)

	// Allowance methods
	GetAllowance(ctx context.Context, owner, spender types.Address) (types.Amount, error)
	ListAllowances(ctx context.Context, owner types.Address, opts allowance.ListOpts) ([]*allowance.Allowance, error)

	// Event methods
	ListEvents(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error)
	LastSequence(ctx context.Context) (uint64, error)

	// Commit applies every change in cs atomically. Either all of it is
	// visible afterwards or none of it is.
	Commit(ctx context.Context, cs *Changeset) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Changeset is the complete write set of one ledger operation. Balances and
// allowances carry absolute post-operation values, not deltas.
type Changeset struct {
	// Metadata is set only by the genesis operation.
	Metadata   *token.Metadata
	Balances   []*balance.Balance
	Allowances []*allowance.Allowance
	// Events are appended in slice order and already carry their sequence.
	Events []*event.Event
}

// Empty reports whether cs writes nothing.
func (cs *Changeset) Empty() bool {
	return cs == nil || (cs.Metadata == nil && len(cs.Balances) == 0 &&
		len(cs.Allowances) == 0 && len(cs.Events) == 0)
}
