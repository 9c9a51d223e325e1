package host_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/host"
	"github.com/xraph/stokvel/store/memory"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

var (
	creator  = types.MustParseAddress("0x00000000000000000000000000000000000000c0")
	alice    = types.MustParseAddress("0x00000000000000000000000000000000000000a1")
	supplier = types.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

func newExecutor(t *testing.T, opts ...host.Option) *host.Executor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	l := stokvel.New(memory.New(), stokvel.WithLogger(logger))
	require.NoError(t, l.Start(context.Background()))

	opts = append([]host.Option{host.WithLogger(logger)}, opts...)
	e := host.NewExecutor(l, opts...)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() {
		_ = e.Stop()
		_ = l.Stop()
	})
	return e
}

func TestSubmitAppliesOperations(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)

	rcpt, err := e.Submit(ctx, host.Deploy(creator))
	require.NoError(t, err)
	assert.Equal(t, stokvel.OpDeploy, rcpt.Operation)

	_, err = e.Submit(ctx, host.Approve(creator, alice, types.Tokens(10)))
	require.NoError(t, err)
	_, err = e.Submit(ctx, host.TransferFrom(alice, creator, alice, types.Tokens(10)))
	require.NoError(t, err)
	rcpt, err = e.Submit(ctx, host.PaySupplier(alice, supplier, types.Tokens(4)))
	require.NoError(t, err)
	assert.Len(t, rcpt.Events, 2)

	_, err = e.Submit(ctx, host.Transfer(alice, supplier, types.Tokens(7)))
	require.ErrorIs(t, err, stokvel.ErrInsufficientBalance)

	bal, err := e.Ledger().BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.True(t, bal.Equal(types.Tokens(6)))
}

func TestUnknownOperation(t *testing.T) {
	e := newExecutor(t)
	_, err := e.Submit(context.Background(), host.Op{Name: "mint", Caller: creator})
	require.ErrorIs(t, err, stokvel.ErrInvalidInput)
}

func TestConcurrentSubmitsAreSerialized(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	_, err := e.Submit(ctx, host.Deploy(creator))
	require.NoError(t, err)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := e.Submit(ctx, host.Transfer(creator, alice, types.NewAmount(1)))
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	bal, err := e.Ledger().BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.True(t, bal.Equal(types.NewAmount(workers*perWorker)))

	sum, err := e.Ledger().VerifySupply(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Equal(token.TotalSupply()))
}

func TestCancelledSubmitHasNoEffect(t *testing.T) {
	e := newExecutor(t)
	_, err := e.Submit(context.Background(), host.Deploy(creator))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Submit(ctx, host.Transfer(creator, alice, types.Tokens(1)))
	require.ErrorIs(t, err, context.Canceled)

	bal, err := e.Ledger().BalanceOf(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestRateLimitPerCaller(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, host.WithRateLimit(0.001, 2))

	_, err := e.Submit(ctx, host.Deploy(creator))
	require.NoError(t, err)
	_, err = e.Submit(ctx, host.Transfer(creator, alice, types.Tokens(5)))
	require.NoError(t, err)

	_, err = e.Submit(ctx, host.Transfer(creator, alice, types.Tokens(5)))
	require.ErrorIs(t, err, stokvel.ErrRateLimited)
	assert.True(t, stokvel.IsRetryable(err))

	// Other callers have their own bucket.
	_, err = e.Submit(ctx, host.Transfer(alice, supplier, types.Tokens(1)))
	require.NoError(t, err)

	bal, err := e.Ledger().BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.True(t, bal.Equal(types.Tokens(4)))
}

func TestSubmitAfterStop(t *testing.T) {
	e := newExecutor(t)
	require.NoError(t, e.Stop())
	require.NoError(t, e.Stop())

	_, err := e.Submit(context.Background(), host.Deploy(creator))
	require.ErrorIs(t, err, stokvel.ErrExecutorStopped)
	assert.False(t, e.Ledger().Deployed())
}

func TestReadsDuringDeploy(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	l := e.Ledger()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if l.Deployed() {
					meta, err := l.Metadata()
					if assert.NoError(t, err) {
						assert.Equal(t, creator, meta.Creator)
					}
				}
			}
		}()
	}

	_, err := e.Submit(ctx, host.Deploy(creator))
	close(stop)
	wg.Wait()
	require.NoError(t, err)

	assert.True(t, l.Deployed())
	meta, err := l.Metadata()
	require.NoError(t, err)
	assert.True(t, meta.TotalSupply.Equal(token.TotalSupply()))
}
