package stokvel_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/allowance"
	"github.com/xraph/stokvel/balance"
	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/plugin"
	"github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/store/memory"
	"github.com/xraph/stokvel/store/sqlite"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

var (
	creator  = types.MustParseAddress("0x00000000000000000000000000000000000000c0")
	user     = types.MustParseAddress("0x00000000000000000000000000000000000000a1")
	supplier = types.MustParseAddress("0x00000000000000000000000000000000000000b2")
	other    = types.MustParseAddress("0x00000000000000000000000000000000000000d3")
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startLedger(t *testing.T, s store.Store, opts ...stokvel.Option) *stokvel.Ledger {
	t.Helper()
	opts = append([]stokvel.Option{stokvel.WithLogger(quietLogger())}, opts...)
	l := stokvel.New(s, opts...)
	require.NoError(t, l.Start(context.Background()))
	return l
}

// deployed returns a started ledger on a memory store with genesis committed.
func deployed(t *testing.T, opts ...stokvel.Option) *stokvel.Ledger {
	t.Helper()
	l := startLedger(t, memory.New(), opts...)
	_, err := l.Deploy(context.Background(), creator)
	require.NoError(t, err)
	return l
}

func balanceOf(t *testing.T, l *stokvel.Ledger, a types.Address) types.Amount {
	t.Helper()
	bal, err := l.BalanceOf(context.Background(), a)
	require.NoError(t, err)
	return bal
}

func allowanceOf(t *testing.T, l *stokvel.Ledger, owner, spender types.Address) types.Amount {
	t.Helper()
	amt, err := l.Allowance(context.Background(), owner, spender)
	require.NoError(t, err)
	return amt
}

func eventCount(t *testing.T, l *stokvel.Ledger) int {
	t.Helper()
	events, err := l.Events(context.Background(), event.QueryOpts{})
	require.NoError(t, err)
	return len(events)
}

func sub(a, b types.Amount) types.Amount {
	out, _ := a.Sub(b)
	return out
}

// ──────────────────────────────────────────────────
// Scenarios
// ──────────────────────────────────────────────────

func TestScenarioDeploy(t *testing.T) {
	ctx := context.Background()
	l := startLedger(t, memory.New())

	rcpt, err := l.Deploy(ctx, creator)
	require.NoError(t, err)

	supply := types.Tokens(10_000_000)
	assert.True(t, balanceOf(t, l, creator).Equal(supply))
	assert.True(t, l.TotalSupply().Equal(supply))
	assert.Equal(t, "Stokvel", l.Name())
	assert.Equal(t, "STOK", l.Symbol())
	assert.Equal(t, uint8(18), l.Decimals())

	require.Len(t, rcpt.Events, 1)
	e := rcpt.Events[0]
	assert.Equal(t, event.KindTransfer, e.Kind)
	assert.Equal(t, types.ZeroAddress, e.From)
	assert.Equal(t, creator, e.To)
	assert.True(t, e.Amount.Equal(supply))
	assert.Equal(t, uint64(1), e.Sequence)

	meta, err := l.Metadata()
	require.NoError(t, err)
	assert.Equal(t, creator, meta.Creator)
	assert.Equal(t, rcpt.OperationID.String(), meta.OperationID.String())
}

func TestScenarioTransfer(t *testing.T) {
	l := deployed(t)

	rcpt, err := l.Transfer(context.Background(), creator, user, types.Tokens(1000))
	require.NoError(t, err)

	assert.True(t, balanceOf(t, l, user).Equal(types.Tokens(1000)))
	assert.True(t, balanceOf(t, l, creator).Equal(types.Tokens(9_999_000)))

	require.Len(t, rcpt.Events, 1)
	assert.Equal(t, creator, rcpt.Events[0].From)
	assert.Equal(t, user, rcpt.Events[0].To)
	assert.Equal(t, stokvel.OpTransfer, rcpt.Operation)
}

func TestScenarioInsufficientBalance(t *testing.T) {
	l := deployed(t)
	before := eventCount(t, l)

	_, err := l.Transfer(context.Background(), user, supplier, types.NewAmount(1))
	require.ErrorIs(t, err, stokvel.ErrInsufficientBalance)
	assert.Equal(t, stokvel.ReasonTransferExceedsBal, err.Error())

	assert.True(t, balanceOf(t, l, user).IsZero())
	assert.True(t, balanceOf(t, l, supplier).IsZero())
	assert.True(t, balanceOf(t, l, creator).Equal(token.TotalSupply()))
	assert.Equal(t, before, eventCount(t, l))
}

func TestScenarioApproveAndTransferFrom(t *testing.T) {
	ctx := context.Background()
	l := deployed(t)
	amount := types.Tokens(1000)

	rcpt, err := l.Approve(ctx, creator, user, amount)
	require.NoError(t, err)
	require.Len(t, rcpt.Events, 1)
	approval := rcpt.Events[0]
	assert.Equal(t, event.KindApproval, approval.Kind)
	assert.Equal(t, creator, approval.Owner)
	assert.Equal(t, user, approval.Spender)
	assert.True(t, approval.Amount.Equal(amount))

	rcpt, err = l.TransferFrom(ctx, user, creator, supplier, amount)
	require.NoError(t, err)
	require.Len(t, rcpt.Events, 1)
	xfer := rcpt.Events[0]
	assert.Equal(t, event.KindTransfer, xfer.Kind)
	assert.Equal(t, creator, xfer.From)
	assert.Equal(t, supplier, xfer.To)
	assert.True(t, xfer.Amount.Equal(amount))

	assert.True(t, allowanceOf(t, l, creator, user).IsZero())
	assert.True(t, balanceOf(t, l, supplier).Equal(amount))
}

func TestScenarioPaySupplier(t *testing.T) {
	ctx := context.Background()
	l := deployed(t)
	amount := types.Tokens(1000)

	_, err := l.PaySupplier(ctx, creator, supplier, types.Amount{})
	require.ErrorIs(t, err, stokvel.ErrInvalidAmount)
	assert.Equal(t, stokvel.ReasonPayZeroAmount, err.Error())

	_, err = l.PaySupplier(ctx, creator, types.ZeroAddress, amount)
	require.ErrorIs(t, err, stokvel.ErrInvalidRecipient)
	assert.Equal(t, stokvel.ReasonPayToZero, err.Error())

	rcpt, err := l.PaySupplier(ctx, creator, supplier, amount)
	require.NoError(t, err)
	require.Len(t, rcpt.Events, 2)

	paid := rcpt.Events[0]
	assert.Equal(t, event.KindSupplierPaid, paid.Kind)
	assert.Equal(t, supplier, paid.Supplier)
	assert.True(t, paid.Amount.Equal(amount))

	xfer := rcpt.Events[1]
	assert.Equal(t, event.KindTransfer, xfer.Kind)
	assert.Equal(t, creator, xfer.From)
	assert.Equal(t, supplier, xfer.To)
	assert.True(t, xfer.Amount.Equal(amount))
	assert.Equal(t, paid.Sequence+1, xfer.Sequence)
	assert.Equal(t, paid.OperationID.String(), xfer.OperationID.String())

	assert.True(t, balanceOf(t, l, supplier).Equal(amount))
}

// ──────────────────────────────────────────────────
// Properties and edge cases
// ──────────────────────────────────────────────────

func TestAllowanceDecrement(t *testing.T) {
	ctx := context.Background()
	l := deployed(t)

	_, err := l.Approve(ctx, creator, user, types.Tokens(500))
	require.NoError(t, err)
	_, err = l.TransferFrom(ctx, user, creator, other, types.Tokens(120))
	require.NoError(t, err)

	assert.True(t, allowanceOf(t, l, creator, user).Equal(types.Tokens(380)))
	assert.True(t, balanceOf(t, l, other).Equal(types.Tokens(120)))
}

func TestApproveOverwrites(t *testing.T) {
	ctx := context.Background()
	l := deployed(t)

	_, err := l.Approve(ctx, creator, user, types.Tokens(500))
	require.NoError(t, err)
	_, err = l.Approve(ctx, creator, user, types.Tokens(7))
	require.NoError(t, err)
	assert.True(t, allowanceOf(t, l, creator, user).Equal(types.Tokens(7)))

	// Approving more than the balance is allowed.
	_, err = l.Approve(ctx, user, other, types.Tokens(1))
	require.NoError(t, err)

	list, err := l.Allowances(ctx, creator, allowance.ListOpts{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, user, list[0].Spender)
}

func TestZeroAmountTransferEmitsEvent(t *testing.T) {
	l := deployed(t)

	rcpt, err := l.Transfer(context.Background(), user, supplier, types.Amount{})
	require.NoError(t, err)
	require.Len(t, rcpt.Events, 1)
	assert.True(t, rcpt.Events[0].Amount.IsZero())
	assert.True(t, balanceOf(t, l, supplier).IsZero())
}

func TestSelfTransfer(t *testing.T) {
	l := deployed(t)

	_, err := l.Transfer(context.Background(), creator, creator, types.Tokens(5))
	require.NoError(t, err)
	assert.True(t, balanceOf(t, l, creator).Equal(token.TotalSupply()))

	_, err = l.VerifySupply(context.Background())
	require.NoError(t, err)
}

func TestRejectionsLeaveStateUntouched(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		op     func(l *stokvel.Ledger) error
		kind   error
		reason string
	}{
		{
			name: "transfer to zero",
			op: func(l *stokvel.Ledger) error {
				_, err := l.Transfer(ctx, creator, types.ZeroAddress, types.Tokens(1))
				return err
			},
			kind:   stokvel.ErrInvalidRecipient,
			reason: stokvel.ReasonTransferToZero,
		},
		{
			name: "transfer from zero",
			op: func(l *stokvel.Ledger) error {
				_, err := l.Transfer(ctx, types.ZeroAddress, user, types.Amount{})
				return err
			},
			kind:   stokvel.ErrInvalidSender,
			reason: stokvel.ReasonTransferFromZero,
		},
		{
			name: "transfer exceeds balance",
			op: func(l *stokvel.Ledger) error {
				_, err := l.Transfer(ctx, user, other, types.Tokens(101))
				return err
			},
			kind:   stokvel.ErrInsufficientBalance,
			reason: stokvel.ReasonTransferExceedsBal,
		},
		{
			name: "approve zero spender",
			op: func(l *stokvel.Ledger) error {
				_, err := l.Approve(ctx, creator, types.ZeroAddress, types.Tokens(1))
				return err
			},
			kind:   stokvel.ErrInvalidRecipient,
			reason: stokvel.ReasonApproveToZero,
		},
		{
			name: "transferFrom to zero checked before allowance",
			op: func(l *stokvel.Ledger) error {
				_, err := l.TransferFrom(ctx, other, creator, types.ZeroAddress, types.Tokens(1_000_000))
				return err
			},
			kind:   stokvel.ErrInvalidRecipient,
			reason: stokvel.ReasonTransferToZero,
		},
		{
			name: "transferFrom over allowance",
			op: func(l *stokvel.Ledger) error {
				_, err := l.TransferFrom(ctx, other, creator, supplier, types.Tokens(51))
				return err
			},
			kind:   stokvel.ErrInsufficientAllowance,
			reason: stokvel.ReasonInsufficientAllowance,
		},
		{
			name: "transferFrom allowance checked before balance",
			op: func(l *stokvel.Ledger) error {
				_, err := l.TransferFrom(ctx, creator, user, supplier, types.Tokens(200))
				return err
			},
			kind:   stokvel.ErrInsufficientAllowance,
			reason: stokvel.ReasonInsufficientAllowance,
		},
		{
			name: "transferFrom over balance",
			op: func(l *stokvel.Ledger) error {
				_, err := l.TransferFrom(ctx, supplier, user, other, types.Tokens(101))
				return err
			},
			kind:   stokvel.ErrInsufficientBalance,
			reason: stokvel.ReasonTransferExceedsBal,
		},
		{
			name: "paySupplier over balance",
			op: func(l *stokvel.Ledger) error {
				_, err := l.PaySupplier(ctx, user, supplier, types.Tokens(101))
				return err
			},
			kind:   stokvel.ErrInsufficientBalance,
			reason: stokvel.ReasonPayInsufficientBal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := deployed(t)
			_, err := l.Transfer(ctx, creator, user, types.Tokens(100))
			require.NoError(t, err)
			_, err = l.Approve(ctx, creator, other, types.Tokens(50))
			require.NoError(t, err)
			_, err = l.Approve(ctx, user, supplier, types.Tokens(1000))
			require.NoError(t, err)

			holdersBefore, err := l.Holders(ctx, balance.ListOpts{})
			require.NoError(t, err)
			eventsBefore := eventCount(t, l)
			allowanceBefore := allowanceOf(t, l, creator, other)

			err = tt.op(l)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.True(t, stokvel.IsRejection(err))
			assert.False(t, stokvel.IsRetryable(err))
			assert.Equal(t, tt.reason, stokvel.RejectionReason(err))

			holdersAfter, err := l.Holders(ctx, balance.ListOpts{})
			require.NoError(t, err)
			require.Equal(t, len(holdersBefore), len(holdersAfter))
			for i := range holdersBefore {
				assert.Equal(t, holdersBefore[i].Account, holdersAfter[i].Account)
				assert.True(t, holdersBefore[i].Amount.Equal(holdersAfter[i].Amount))
			}
			assert.Equal(t, eventsBefore, eventCount(t, l))
			assert.True(t, allowanceOf(t, l, creator, other).Equal(allowanceBefore))
			assert.True(t, l.TotalSupply().Equal(token.TotalSupply()))
		})
	}
}

func TestLifecycleErrors(t *testing.T) {
	ctx := context.Background()

	l := stokvel.New(memory.New(), stokvel.WithLogger(quietLogger()))
	_, err := l.Transfer(ctx, creator, user, types.Tokens(1))
	require.ErrorIs(t, err, stokvel.ErrNotStarted)

	require.NoError(t, l.Start(ctx))
	_, err = l.Transfer(ctx, creator, user, types.Tokens(1))
	require.ErrorIs(t, err, stokvel.ErrNotDeployed)
	assert.True(t, stokvel.IsNotFound(err))

	_, err = l.Metadata()
	require.ErrorIs(t, err, stokvel.ErrNotDeployed)

	_, err = l.Deploy(ctx, types.ZeroAddress)
	require.ErrorIs(t, err, stokvel.ErrInvalidRecipient)
	assert.False(t, l.Deployed())

	_, err = l.Deploy(ctx, creator)
	require.NoError(t, err)
	_, err = l.Deploy(ctx, user)
	require.ErrorIs(t, err, stokvel.ErrAlreadyDeployed)
	assert.True(t, balanceOf(t, l, user).IsZero())
}

func TestCancelledContextAborts(t *testing.T) {
	l := deployed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Transfer(ctx, creator, user, types.Tokens(1))
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, balanceOf(t, l, user).IsZero())
	assert.Equal(t, 1, eventCount(t, l))
}

func TestConservationUnderRandomOperations(t *testing.T) {
	ctx := context.Background()
	l := deployed(t)
	accounts := []types.Address{creator, user, supplier, other, types.ZeroAddress}
	rng := rand.New(rand.NewPCG(42, 7))
	supply := token.TotalSupply()

	pick := func() types.Address { return accounts[rng.IntN(len(accounts))] }
	amount := func() types.Amount { return types.Tokens(uint64(rng.IntN(3_000_000))) }

	for i := 0; i < 500; i++ {
		var err error
		switch rng.IntN(4) {
		case 0:
			_, err = l.Transfer(ctx, pick(), pick(), amount())
		case 1:
			_, err = l.Approve(ctx, pick(), pick(), amount())
		case 2:
			_, err = l.TransferFrom(ctx, pick(), pick(), pick(), amount())
		case 3:
			_, err = l.PaySupplier(ctx, pick(), pick(), amount())
		}
		if err != nil {
			require.True(t, stokvel.IsRejection(err), "step %d: unexpected error %v", i, err)
		}

		sum, err := l.VerifySupply(ctx)
		require.NoError(t, err, "step %d", i)
		require.True(t, sum.Equal(supply))

		zeroBal := balanceOf(t, l, types.ZeroAddress)
		require.True(t, zeroBal.IsZero(), "zero address must never hold a balance")
	}
}

// ──────────────────────────────────────────────────
// Events and plugins
// ──────────────────────────────────────────────────

type recorder struct {
	mu       sync.Mutex
	calls    []string
	genesis  int
	rejected []*plugin.Rejection
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) OnGenesis(context.Context, *token.Metadata) error {
	r.mu.Lock()
	r.genesis++
	r.mu.Unlock()
	return nil
}

func (r *recorder) OnTransfer(_ context.Context, e *event.Event) error {
	r.add("Transfer")
	return nil
}

func (r *recorder) OnApproval(context.Context, *event.Event) error {
	r.add("Approval")
	return nil
}

func (r *recorder) OnSupplierPaid(context.Context, *event.Event) error {
	r.add("SupplierPaid")
	return nil
}

func (r *recorder) OnRejected(_ context.Context, rej *plugin.Rejection) error {
	r.mu.Lock()
	r.rejected = append(r.rejected, rej)
	r.mu.Unlock()
	return errors.New("plugin failures are ignored")
}

func TestPluginsObserveCommittedEventsInOrder(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	l := deployed(t, stokvel.WithPlugin(rec))

	_, err := l.Approve(ctx, creator, user, types.Tokens(1))
	require.NoError(t, err)
	_, err = l.PaySupplier(ctx, creator, supplier, types.Tokens(1))
	require.NoError(t, err)
	_, err = l.PaySupplier(ctx, creator, supplier, types.Amount{})
	require.Error(t, err)

	assert.Equal(t, 1, rec.genesis)
	assert.Equal(t, []string{"Transfer", "Approval", "SupplierPaid", "Transfer"}, rec.calls)
	require.Len(t, rec.rejected, 1)
	assert.Equal(t, stokvel.OpPaySupplier, rec.rejected[0].Operation)
	assert.Equal(t, stokvel.ReasonPayZeroAmount, rec.rejected[0].Reason)
	assert.Equal(t, creator, rec.rejected[0].Caller)
}

func TestEventQueries(t *testing.T) {
	ctx := context.Background()
	l := deployed(t)

	_, err := l.Transfer(ctx, creator, user, types.Tokens(10))
	require.NoError(t, err)
	_, err = l.PaySupplier(ctx, user, supplier, types.Tokens(4))
	require.NoError(t, err)

	forUser, err := l.Events(ctx, event.QueryOpts{Account: user})
	require.NoError(t, err)
	require.Len(t, forUser, 2)
	assert.Equal(t, uint64(2), forUser[0].Sequence)
	assert.Equal(t, uint64(4), forUser[1].Sequence)

	paid, err := l.Events(ctx, event.QueryOpts{Kind: event.KindSupplierPaid})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, supplier, paid[0].Supplier)

	holders, err := l.Holders(ctx, balance.ListOpts{NonZero: true})
	require.NoError(t, err)
	assert.Len(t, holders, 3)
}

// ──────────────────────────────────────────────────
// Atomicity and persistence
// ──────────────────────────────────────────────────

type failingStore struct {
	store.Store
	fail bool
	// landed makes Commit apply the changeset and still report failure.
	landed bool
}

func (f *failingStore) Commit(ctx context.Context, cs *store.Changeset) error {
	if f.fail {
		return stokvel.ErrTransactionFailed
	}
	if f.landed {
		if err := f.Store.Commit(ctx, cs); err != nil {
			return err
		}
		return stokvel.ErrTransactionFailed
	}
	return f.Store.Commit(ctx, cs)
}

func TestFailedCommitLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{Store: memory.New()}
	l := startLedger(t, fs)
	_, err := l.Deploy(ctx, creator)
	require.NoError(t, err)

	fs.fail = true
	_, err = l.Transfer(ctx, creator, user, types.Tokens(10))
	require.ErrorIs(t, err, stokvel.ErrTransactionFailed)
	assert.True(t, stokvel.IsRetryable(err))
	assert.False(t, stokvel.IsRejection(err))
	assert.True(t, balanceOf(t, l, user).IsZero())

	fs.fail = false
	rcpt, err := l.Transfer(ctx, creator, user, types.Tokens(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rcpt.Events[0].Sequence, "failed commit must not consume a sequence")
}

func TestCommitReportedFailedButLanded(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{Store: memory.New()}
	l := startLedger(t, fs)
	_, err := l.Deploy(ctx, creator)
	require.NoError(t, err)

	fs.landed = true
	_, err = l.Transfer(ctx, creator, user, types.Tokens(10))
	require.ErrorIs(t, err, stokvel.ErrTransactionFailed)
	assert.True(t, balanceOf(t, l, user).Equal(types.Tokens(10)))

	fs.landed = false
	rcpt, err := l.Transfer(ctx, creator, user, types.Tokens(5))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rcpt.Events[0].Sequence)
	assert.True(t, balanceOf(t, l, user).Equal(types.Tokens(15)))
}

func TestLedgersSharingAStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a := startLedger(t, s)
	b := startLedger(t, s)

	_, err := a.Deploy(ctx, creator)
	require.NoError(t, err)
	_, err = a.Transfer(ctx, creator, user, types.Tokens(10))
	require.NoError(t, err)

	// b learns about genesis from the store.
	_, err = b.Deploy(ctx, other)
	require.ErrorIs(t, err, stokvel.ErrAlreadyDeployed)
	assert.True(t, b.Deployed())

	// b's cached sequence is stale: the first attempt fails retryably and
	// the retry commits after a's events.
	_, err = b.Transfer(ctx, creator, other, types.Tokens(5))
	require.ErrorIs(t, err, stokvel.ErrTransactionFailed)
	assert.True(t, stokvel.IsRetryable(err))
	rcpt, err := b.Transfer(ctx, creator, other, types.Tokens(5))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rcpt.Events[0].Sequence)

	// Now a is the stale one.
	_, err = a.Transfer(ctx, user, other, types.Tokens(1))
	require.ErrorIs(t, err, stokvel.ErrTransactionFailed)
	rcpt, err = a.Transfer(ctx, user, other, types.Tokens(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rcpt.Events[0].Sequence)

	assert.True(t, balanceOf(t, a, other).Equal(types.Tokens(6)))
	assert.True(t, balanceOf(t, b, user).Equal(types.Tokens(9)))
	assert.Equal(t, 4, eventCount(t, b))
	_, err = b.VerifySupply(ctx)
	require.NoError(t, err)
}

func TestStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stokvel.db")

	s, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	l := startLedger(t, s)
	_, err = l.Deploy(ctx, creator)
	require.NoError(t, err)
	_, err = l.Approve(ctx, creator, user, types.Tokens(30))
	require.NoError(t, err)
	_, err = l.TransferFrom(ctx, user, creator, supplier, types.Tokens(20))
	require.NoError(t, err)
	require.NoError(t, l.Stop())

	s, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	l = startLedger(t, s)
	defer l.Stop()

	assert.True(t, l.Deployed())
	assert.True(t, balanceOf(t, l, supplier).Equal(types.Tokens(20)))
	assert.True(t, balanceOf(t, l, creator).Equal(sub(token.TotalSupply(), types.Tokens(20))))
	assert.True(t, allowanceOf(t, l, creator, user).Equal(types.Tokens(10)))

	_, err = l.Deploy(ctx, user)
	require.ErrorIs(t, err, stokvel.ErrAlreadyDeployed)

	rcpt, err := l.Transfer(ctx, supplier, other, types.Tokens(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rcpt.Events[0].Sequence)

	_, err = l.VerifySupply(ctx)
	require.NoError(t, err)
}
