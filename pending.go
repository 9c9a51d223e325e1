package stokvel

import (
	"context"
	"sort"
	"time"

	"github.com/xraph/stokvel/allowance"
	"github.com/xraph/stokvel/balance"
	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/id"
	"github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

// pending stages the writes of one operation on top of committed state.
// Nothing reaches the store until changeset is committed.
type pending struct {
	ctx   context.Context
	store store.Store

	metadata   *token.Metadata
	balances   map[types.Address]types.Amount
	allowances map[allowance.Key]types.Amount
	events     []*event.Event
}

func newPending(ctx context.Context, s store.Store) *pending {
	return &pending{
		ctx:        ctx,
		store:      s,
		balances:   make(map[types.Address]types.Amount),
		allowances: make(map[allowance.Key]types.Amount),
	}
}

func (p *pending) balanceOf(a types.Address) (types.Amount, error) {
	if v, ok := p.balances[a]; ok {
		return v, nil
	}
	return p.store.GetBalance(p.ctx, a)
}

func (p *pending) allowanceOf(owner, spender types.Address) (types.Amount, error) {
	if v, ok := p.allowances[allowance.Key{Owner: owner, Spender: spender}]; ok {
		return v, nil
	}
	return p.store.GetAllowance(p.ctx, owner, spender)
}

func (p *pending) setAllowance(owner, spender types.Address, v types.Amount) {
	p.allowances[allowance.Key{Owner: owner, Spender: spender}] = v
}

// move debits from and credits to. A self-move debits first and credits the
// staged result, leaving the balance unchanged.
func (p *pending) move(op string, from, to types.Address, amount types.Amount, reason string) error {
	bal, err := p.balanceOf(from)
	if err != nil {
		return err
	}
	left, underflow := bal.Sub(amount)
	if underflow {
		return reject(op, ErrInsufficientBalance, reason)
	}
	p.balances[from] = left
	return p.creditOp(op, to, amount)
}

func (p *pending) credit(to types.Address, amount types.Amount) error {
	return p.creditOp(OpDeploy, to, amount)
}

func (p *pending) creditOp(op string, to types.Address, amount types.Amount) error {
	bal, err := p.balanceOf(to)
	if err != nil {
		return err
	}
	next, overflow := bal.Add(amount)
	if overflow || next.Gt(token.TotalSupply()) {
		return &InvariantError{Op: op, Message: "credit to " + to.Hex() + " exceeds total supply"}
	}
	p.balances[to] = next
	return nil
}

func (p *pending) emit(e *event.Event) {
	p.events = append(p.events, e)
}

// changeset stamps ids, sequence numbers and timestamps, and orders the
// staged rows by key so every backend writes them in the same order.
func (p *pending) changeset(opID id.OperationID, lastSeq uint64, at time.Time) *store.Changeset {
	cs := &store.Changeset{Metadata: p.metadata}

	for acct, amt := range p.balances {
		cs.Balances = append(cs.Balances, &balance.Balance{Account: acct, Amount: amt, UpdatedAt: at})
	}
	sort.Slice(cs.Balances, func(i, j int) bool {
		return cs.Balances[i].Account.Cmp(cs.Balances[j].Account) < 0
	})

	for k, amt := range p.allowances {
		cs.Allowances = append(cs.Allowances, &allowance.Allowance{
			Owner: k.Owner, Spender: k.Spender, Amount: amt, UpdatedAt: at,
		})
	}
	sort.Slice(cs.Allowances, func(i, j int) bool {
		return cs.Allowances[i].Key().String() < cs.Allowances[j].Key().String()
	})

	for i, e := range p.events {
		e.ID = id.NewEventID()
		e.Sequence = lastSeq + uint64(i) + 1
		e.OperationID = opID
		e.OccurredAt = at
		cs.Events = append(cs.Events, e)
	}

	return cs
}
