// Package storetest is a conformance suite every store.Store backend runs.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/allowance"
	"github.com/xraph/stokvel/balance"
	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/id"
	"github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

// Factory returns a fresh, migrated, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

var (
	Creator  = types.MustParseAddress("0x1000000000000000000000000000000000000001")
	Alice    = types.MustParseAddress("0x2000000000000000000000000000000000000002")
	Bob      = types.MustParseAddress("0x3000000000000000000000000000000000000003")
	Supplier = types.MustParseAddress("0x4000000000000000000000000000000000000004")
)

// Timestamps are truncated to the coarsest precision of any backend (mongo: ms).
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"EmptyStore", testEmptyStore},
		{"GenesisRoundTrip", testGenesisRoundTrip},
		{"GenesisOnlyOnce", testGenesisOnlyOnce},
		{"BalanceOverwrite", testBalanceOverwrite},
		{"ListBalances", testListBalances},
		{"Allowances", testAllowances},
		{"LargeAmounts", testLargeAmounts},
		{"EventQueries", testEventQueries},
		{"SequenceGapRollsBack", testSequenceGapRollsBack},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// Seed commits a genesis changeset minting the whole supply to Creator.
func Seed(t *testing.T, s store.Store) {
	t.Helper()
	require.NoError(t, s.Commit(context.Background(), genesis(now())))
}

func genesis(at time.Time) *store.Changeset {
	opID := id.NewOperationID()
	meta := token.NewMetadata(Creator, opID, at)
	e := event.NewTransfer(types.ZeroAddress, Creator, token.TotalSupply())
	e.ID = id.NewEventID()
	e.Sequence = 1
	e.OperationID = opID
	e.OccurredAt = at
	return &store.Changeset{
		Metadata: meta,
		Balances: []*balance.Balance{{Account: Creator, Amount: token.TotalSupply(), UpdatedAt: at}},
		Events:   []*event.Event{e},
	}
}

func transferChange(seq uint64, from, to types.Address, fromBal, toBal, amount types.Amount, at time.Time) *store.Changeset {
	opID := id.NewOperationID()
	e := event.NewTransfer(from, to, amount)
	e.ID = id.NewEventID()
	e.Sequence = seq
	e.OperationID = opID
	e.OccurredAt = at
	return &store.Changeset{
		Balances: []*balance.Balance{
			{Account: from, Amount: fromBal, UpdatedAt: at},
			{Account: to, Amount: toBal, UpdatedAt: at},
		},
		Events: []*event.Event{e},
	}
}

func testEmptyStore(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetMetadata(ctx)
	require.ErrorIs(t, err, stokvel.ErrNotDeployed)

	bal, err := s.GetBalance(ctx, Alice)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	allowed, err := s.GetAllowance(ctx, Alice, Bob)
	require.NoError(t, err)
	assert.True(t, allowed.IsZero())

	seq, err := s.LastSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)

	events, err := s.ListEvents(ctx, event.QueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, events)

	balances, err := s.ListBalances(ctx, balance.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func testGenesisRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	at := now()
	cs := genesis(at)

	require.NoError(t, s.Commit(ctx, cs))

	meta, err := s.GetMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, token.Name, meta.Name)
	assert.Equal(t, token.Symbol, meta.Symbol)
	assert.Equal(t, token.Decimals, meta.Decimals)
	assert.True(t, meta.TotalSupply.Equal(token.TotalSupply()))
	assert.Equal(t, Creator, meta.Creator)
	assert.Equal(t, cs.Metadata.DeploymentID.String(), meta.DeploymentID.String())
	assert.Equal(t, cs.Metadata.OperationID.String(), meta.OperationID.String())
	assert.True(t, at.Equal(meta.DeployedAt), "deployed at: got %v, want %v", meta.DeployedAt, at)

	bal, err := s.GetBalance(ctx, Creator)
	require.NoError(t, err)
	assert.True(t, bal.Equal(token.TotalSupply()))

	seq, err := s.LastSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	events, err := s.ListEvents(ctx, event.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	assert.Equal(t, event.KindTransfer, got.Kind)
	assert.Equal(t, types.ZeroAddress, got.From)
	assert.Equal(t, Creator, got.To)
	assert.True(t, got.Amount.Equal(token.TotalSupply()))
	assert.Equal(t, cs.Events[0].ID.String(), got.ID.String())
	assert.Equal(t, cs.Events[0].OperationID.String(), got.OperationID.String())
	assert.True(t, at.Equal(got.OccurredAt))
}

func testGenesisOnlyOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, genesis(now())))

	second := genesis(now())
	second.Events[0].Sequence = 2
	err := s.Commit(ctx, second)
	require.ErrorIs(t, err, stokvel.ErrAlreadyDeployed)

	seq, err := s.LastSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq, "rejected genesis must not append events")
}

func testBalanceOverwrite(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, genesis(now())))

	amount := types.Tokens(100)
	left, _ := token.TotalSupply().Sub(amount)
	require.NoError(t, s.Commit(ctx, transferChange(2, Creator, Alice, left, amount, amount, now())))

	creatorBal, err := s.GetBalance(ctx, Creator)
	require.NoError(t, err)
	assert.True(t, creatorBal.Equal(left))

	aliceBal, err := s.GetBalance(ctx, Alice)
	require.NoError(t, err)
	assert.True(t, aliceBal.Equal(amount))

	// Drain Alice to zero: the row stays and reads as 0.
	back, _ := left.Add(amount)
	require.NoError(t, s.Commit(ctx, transferChange(3, Alice, Creator, types.Amount{}, back, amount, now())))

	aliceBal, err = s.GetBalance(ctx, Alice)
	require.NoError(t, err)
	assert.True(t, aliceBal.IsZero())
}

func testListBalances(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, genesis(now())))

	amount := types.Tokens(10)
	left, _ := token.TotalSupply().Sub(amount)
	require.NoError(t, s.Commit(ctx, transferChange(2, Creator, Bob, left, amount, amount, now())))
	// Alice appears with a zero row.
	require.NoError(t, s.Commit(ctx, &store.Changeset{
		Balances: []*balance.Balance{{Account: Alice, Amount: types.Amount{}, UpdatedAt: now()}},
	}))

	all, err := s.ListBalances(ctx, balance.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, Creator, all[0].Account)
	assert.Equal(t, Alice, all[1].Account)
	assert.Equal(t, Bob, all[2].Account)

	nonZero, err := s.ListBalances(ctx, balance.ListOpts{NonZero: true})
	require.NoError(t, err)
	require.Len(t, nonZero, 2)
	assert.Equal(t, Creator, nonZero[0].Account)
	assert.Equal(t, Bob, nonZero[1].Account)

	page, err := s.ListBalances(ctx, balance.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, Alice, page[0].Account)

	// Negative paging values are ignored rather than trusted.
	clamped, err := s.ListBalances(ctx, balance.ListOpts{Limit: -1, Offset: -5})
	require.NoError(t, err)
	assert.Len(t, clamped, 3)

	sum, overflow := types.Sum(all[0].Amount, all[1].Amount, all[2].Amount)
	require.False(t, overflow)
	assert.True(t, sum.Equal(token.TotalSupply()))
}

func testAllowances(t *testing.T, s store.Store) {
	ctx := context.Background()
	at := now()

	require.NoError(t, s.Commit(ctx, &store.Changeset{
		Allowances: []*allowance.Allowance{
			{Owner: Alice, Spender: Supplier, Amount: types.Tokens(5), UpdatedAt: at},
			{Owner: Alice, Spender: Bob, Amount: types.Tokens(7), UpdatedAt: at},
			{Owner: Bob, Spender: Alice, Amount: types.Tokens(9), UpdatedAt: at},
		},
	}))

	got, err := s.GetAllowance(ctx, Alice, Bob)
	require.NoError(t, err)
	assert.True(t, got.Equal(types.Tokens(7)))

	// Direction matters.
	got, err = s.GetAllowance(ctx, Bob, Alice)
	require.NoError(t, err)
	assert.True(t, got.Equal(types.Tokens(9)))

	// Overwrite.
	require.NoError(t, s.Commit(ctx, &store.Changeset{
		Allowances: []*allowance.Allowance{{Owner: Alice, Spender: Bob, Amount: types.Tokens(1), UpdatedAt: now()}},
	}))
	got, err = s.GetAllowance(ctx, Alice, Bob)
	require.NoError(t, err)
	assert.True(t, got.Equal(types.Tokens(1)))

	list, err := s.ListAllowances(ctx, Alice, allowance.ListOpts{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, Bob, list[0].Spender)
	assert.Equal(t, Supplier, list[1].Spender)
	for _, a := range list {
		assert.Equal(t, Alice, a.Owner)
	}

	page, err := s.ListAllowances(ctx, Alice, allowance.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, Supplier, page[0].Spender)

	clamped, err := s.ListAllowances(ctx, Alice, allowance.ListOpts{Limit: -2, Offset: -1})
	require.NoError(t, err)
	assert.Len(t, clamped, 2)
}

func testLargeAmounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	maxAmount := types.MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")

	require.NoError(t, s.Commit(ctx, &store.Changeset{
		Allowances: []*allowance.Allowance{{Owner: Alice, Spender: Bob, Amount: maxAmount, UpdatedAt: now()}},
	}))

	got, err := s.GetAllowance(ctx, Alice, Bob)
	require.NoError(t, err)
	assert.True(t, got.Equal(maxAmount), "got %s", got)
}

func testEventQueries(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, genesis(now())))

	amount := types.Tokens(1000)
	left, _ := token.TotalSupply().Sub(amount)
	at := now()
	opID := id.NewOperationID()

	paid := event.NewSupplierPaid(Supplier, amount)
	xfer := event.NewTransfer(Creator, Supplier, amount)
	approval := event.NewApproval(Creator, Alice, types.Tokens(3))
	for i, e := range []*event.Event{paid, xfer, approval} {
		e.ID = id.NewEventID()
		e.Sequence = uint64(i) + 2
		e.OperationID = opID
		e.OccurredAt = at
	}
	require.NoError(t, s.Commit(ctx, &store.Changeset{
		Balances: []*balance.Balance{
			{Account: Creator, Amount: left, UpdatedAt: at},
			{Account: Supplier, Amount: amount, UpdatedAt: at},
		},
		Allowances: []*allowance.Allowance{{Owner: Creator, Spender: Alice, Amount: types.Tokens(3), UpdatedAt: at}},
		Events:     []*event.Event{paid, xfer, approval},
	}))

	all, err := s.ListEvents(ctx, event.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, e := range all {
		assert.Equal(t, uint64(i)+1, e.Sequence)
	}
	assert.Equal(t, event.KindSupplierPaid, all[1].Kind)
	assert.Equal(t, Supplier, all[1].Supplier)
	assert.Equal(t, event.KindTransfer, all[2].Kind)
	assert.Equal(t, event.KindApproval, all[3].Kind)
	assert.Equal(t, Creator, all[3].Owner)
	assert.Equal(t, Alice, all[3].Spender)

	transfers, err := s.ListEvents(ctx, event.QueryOpts{Kind: event.KindTransfer})
	require.NoError(t, err)
	assert.Len(t, transfers, 2)

	forSupplier, err := s.ListEvents(ctx, event.QueryOpts{Account: Supplier})
	require.NoError(t, err)
	require.Len(t, forSupplier, 2)
	assert.Equal(t, uint64(2), forSupplier[0].Sequence)
	assert.Equal(t, uint64(3), forSupplier[1].Sequence)

	forAlice, err := s.ListEvents(ctx, event.QueryOpts{Account: Alice})
	require.NoError(t, err)
	require.Len(t, forAlice, 1)
	assert.Equal(t, event.KindApproval, forAlice[0].Kind)

	after, err := s.ListEvents(ctx, event.QueryOpts{AfterSequence: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, uint64(3), after[0].Sequence)

	seq, err := s.LastSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)
}

func testSequenceGapRollsBack(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, genesis(now())))

	amount := types.Tokens(1)
	left, _ := token.TotalSupply().Sub(amount)
	// Sequence 1 is already taken.
	cs := transferChange(1, Creator, Alice, left, amount, amount, now())
	require.Error(t, s.Commit(ctx, cs))

	bal, err := s.GetBalance(ctx, Creator)
	require.NoError(t, err)
	assert.True(t, bal.Equal(token.TotalSupply()), "balances must be untouched after a failed commit")

	bal, err = s.GetBalance(ctx, Alice)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	seq, err := s.LastSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func testPing(t *testing.T, s store.Store) {
	require.NoError(t, s.Ping(context.Background()))
}
