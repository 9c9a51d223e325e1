package stokvel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/stokvel/allowance"
	"github.com/xraph/stokvel/balance"
	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/id"
	"github.com/xraph/stokvel/plugin"
	"github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

// Operation names, as they appear in receipts, logs and rejections.
const (
	OpDeploy       = "deploy"
	OpTransfer     = "transfer"
	OpApprove      = "approve"
	OpTransferFrom = "transferFrom"
	OpPaySupplier  = "paySupplier"
)

// Ledger is the Stokvel token state machine.
//
// Mutating operations must be serialized by the caller (see the host
// package); reads may run at any time against the latest committed state.
// Other writers may share the store: the cached sequence and metadata are
// reloaded from it when they turn out to be stale.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	// mu guards the lifecycle flag and the cached committed state below.
	mu      sync.RWMutex
	started bool
	meta    *token.Metadata
	// seq is the last committed event sequence.
	seq uint64
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock overrides the time source used for event and row timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry {
	return l.plugins
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store {
	return l.store
}

// Start migrates the store and loads committed state.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	meta, err := l.store.GetMetadata(ctx)
	switch {
	case errors.Is(err, ErrNotDeployed):
		meta = nil
	case err != nil:
		return fmt.Errorf("stokvel: load metadata: %w", err)
	}

	seq, err := l.store.LastSequence(ctx)
	if err != nil {
		return fmt.Errorf("stokvel: load event sequence: %w", err)
	}

	l.mu.Lock()
	l.meta = meta
	l.seq = seq
	l.started = true
	l.mu.Unlock()

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("stokvel ledger started",
		"deployed", meta != nil,
		"last_sequence", seq,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down the Ledger and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	l.mu.Lock()
	l.started = false
	l.mu.Unlock()
	return l.store.Close()
}

func (l *Ledger) isStarted() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started
}

// metadata returns the genesis metadata, consulting the store when none is
// cached because another writer may have deployed. It returns nil, nil
// before genesis.
func (l *Ledger) metadata(ctx context.Context) (*token.Metadata, error) {
	l.mu.RLock()
	meta := l.meta
	l.mu.RUnlock()
	if meta != nil {
		return meta, nil
	}

	meta, err := l.store.GetMetadata(ctx)
	switch {
	case errors.Is(err, ErrNotDeployed):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("stokvel: load metadata: %w", err)
	}

	l.mu.Lock()
	l.meta = meta
	l.mu.Unlock()
	return meta, nil
}

// resync reloads the last committed sequence after a failed commit. The
// failure may come from another writer having advanced the store, or from
// a commit that landed despite reporting an error.
func (l *Ledger) resync(ctx context.Context) {
	seq, err := l.store.LastSequence(ctx)
	if err != nil {
		l.logger.Warn("event sequence reload failed", "error", err)
		return
	}
	l.mu.Lock()
	l.seq = seq
	l.mu.Unlock()
}

// ──────────────────────────────────────────────────
// Genesis
// ──────────────────────────────────────────────────

// Deploy mints the entire supply to creator and records the token metadata.
// It succeeds exactly once per store.
func (l *Ledger) Deploy(ctx context.Context, creator types.Address) (*Receipt, error) {
	if !l.isStarted() {
		return nil, ErrNotStarted
	}
	existing, err := l.metadata(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyDeployed
	}

	opID := id.NewOperationID()
	var meta *token.Metadata

	rcpt, err := l.apply(ctx, OpDeploy, opID, creator, func(p *pending) error {
		if types.IsZeroAddress(creator) {
			return reject(OpDeploy, ErrInvalidRecipient, ReasonMintToZero)
		}
		supply := token.TotalSupply()
		meta = token.NewMetadata(creator, opID, l.now())
		p.metadata = meta
		if err := p.credit(creator, supply); err != nil {
			return err
		}
		p.emit(event.NewTransfer(types.ZeroAddress, creator, supply))
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.meta = meta
	l.mu.Unlock()
	l.plugins.EmitGenesis(context.WithoutCancel(ctx), meta)

	l.logger.Info("stokvel token deployed",
		"creator", creator.Hex(),
		"deployment_id", meta.DeploymentID.String(),
		"total_supply", meta.TotalSupply.String(),
	)

	return rcpt, nil
}

// ──────────────────────────────────────────────────
// Mutating operations
// ──────────────────────────────────────────────────

// Transfer moves amount from caller to to. A zero amount is allowed and
// still emits its Transfer event.
func (l *Ledger) Transfer(ctx context.Context, caller, to types.Address, amount types.Amount) (*Receipt, error) {
	return l.mutate(ctx, OpTransfer, caller, func(p *pending) error {
		if types.IsZeroAddress(caller) {
			return reject(OpTransfer, ErrInvalidSender, ReasonTransferFromZero)
		}
		if types.IsZeroAddress(to) {
			return reject(OpTransfer, ErrInvalidRecipient, ReasonTransferToZero)
		}
		if err := p.move(OpTransfer, caller, to, amount, ReasonTransferExceedsBal); err != nil {
			return err
		}
		p.emit(event.NewTransfer(caller, to, amount))
		return nil
	})
}

// Approve sets allowance[caller][spender] to amount, overwriting any previous value.
func (l *Ledger) Approve(ctx context.Context, caller, spender types.Address, amount types.Amount) (*Receipt, error) {
	return l.mutate(ctx, OpApprove, caller, func(p *pending) error {
		if types.IsZeroAddress(caller) {
			return reject(OpApprove, ErrInvalidSender, ReasonTransferFromZero)
		}
		if types.IsZeroAddress(spender) {
			return reject(OpApprove, ErrInvalidRecipient, ReasonApproveToZero)
		}
		p.setAllowance(caller, spender, amount)
		p.emit(event.NewApproval(caller, spender, amount))
		return nil
	})
}

// TransferFrom moves amount from owner to to, spending caller's allowance.
func (l *Ledger) TransferFrom(ctx context.Context, caller, owner, to types.Address, amount types.Amount) (*Receipt, error) {
	return l.mutate(ctx, OpTransferFrom, caller, func(p *pending) error {
		if types.IsZeroAddress(caller) || types.IsZeroAddress(owner) {
			return reject(OpTransferFrom, ErrInvalidSender, ReasonTransferFromZero)
		}
		if types.IsZeroAddress(to) {
			return reject(OpTransferFrom, ErrInvalidRecipient, ReasonTransferToZero)
		}

		allowed, err := p.allowanceOf(owner, caller)
		if err != nil {
			return err
		}
		if allowed.Lt(amount) {
			return reject(OpTransferFrom, ErrInsufficientAllowance, ReasonInsufficientAllowance)
		}

		bal, err := p.balanceOf(owner)
		if err != nil {
			return err
		}
		if bal.Lt(amount) {
			return reject(OpTransferFrom, ErrInsufficientBalance, ReasonTransferExceedsBal)
		}

		remaining, _ := allowed.Sub(amount)
		p.setAllowance(owner, caller, remaining)
		if err := p.move(OpTransferFrom, owner, to, amount, ReasonTransferExceedsBal); err != nil {
			return err
		}
		p.emit(event.NewTransfer(owner, to, amount))
		return nil
	})
}

// PaySupplier moves a strictly positive amount from caller to supplier and
// emits SupplierPaid followed by Transfer.
func (l *Ledger) PaySupplier(ctx context.Context, caller, supplier types.Address, amount types.Amount) (*Receipt, error) {
	return l.mutate(ctx, OpPaySupplier, caller, func(p *pending) error {
		if types.IsZeroAddress(caller) {
			return reject(OpPaySupplier, ErrInvalidSender, ReasonTransferFromZero)
		}
		if types.IsZeroAddress(supplier) {
			return reject(OpPaySupplier, ErrInvalidRecipient, ReasonPayToZero)
		}
		if amount.IsZero() {
			return reject(OpPaySupplier, ErrInvalidAmount, ReasonPayZeroAmount)
		}
		if err := p.move(OpPaySupplier, caller, supplier, amount, ReasonPayInsufficientBal); err != nil {
			return err
		}
		p.emit(event.NewSupplierPaid(supplier, amount))
		p.emit(event.NewTransfer(caller, supplier, amount))
		return nil
	})
}

// mutate runs a post-genesis operation.
func (l *Ledger) mutate(ctx context.Context, op string, caller types.Address, fn func(p *pending) error) (*Receipt, error) {
	if !l.isStarted() {
		return nil, ErrNotStarted
	}
	meta, err := l.metadata(ctx)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrNotDeployed
	}
	return l.apply(ctx, op, id.NewOperationID(), caller, fn)
}

// apply validates fn against committed plus staged state, then commits the
// staged changes in one store transaction and dispatches the events.
func (l *Ledger) apply(ctx context.Context, op string, opID id.OperationID, caller types.Address, fn func(p *pending) error) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := newPending(ctx, l.store)
	if err := fn(p); err != nil {
		var re *RejectionError
		if errors.As(err, &re) {
			l.logger.Info("operation rejected",
				"operation", op,
				"caller", caller.Hex(),
				"reason", re.Reason,
			)
			l.plugins.EmitRejected(context.WithoutCancel(ctx), &plugin.Rejection{
				OperationID: opID,
				Operation:   op,
				Caller:      caller,
				Kind:        re.Kind.Error(),
				Reason:      re.Reason,
			})
			return nil, err
		}
		l.logger.Error("operation failed",
			"operation", op,
			"caller", caller.Hex(),
			"error", err,
		)
		return nil, err
	}

	l.mu.RLock()
	last := l.seq
	l.mu.RUnlock()

	at := l.now().UTC()
	cs := p.changeset(opID, last, at)

	// Last point at which cancellation aborts the operation.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := l.store.Commit(ctx, cs); err != nil {
		l.logger.Error("commit failed",
			"operation", op,
			"caller", caller.Hex(),
			"error", err,
		)
		l.resync(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("stokvel: commit %s: %w", op, err)
	}
	l.mu.Lock()
	l.seq = last + uint64(len(cs.Events))
	l.mu.Unlock()

	l.plugins.EmitEvents(context.WithoutCancel(ctx), cs.Events)

	l.logger.Debug("operation applied",
		"operation", op,
		"operation_id", opID.String(),
		"caller", caller.Hex(),
		"events", len(cs.Events),
	)

	return &Receipt{
		OperationID: opID,
		Operation:   op,
		Caller:      caller,
		Events:      cs.Events,
		AppliedAt:   at,
	}, nil
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// Name returns the token name.
func (l *Ledger) Name() string { return token.Name }

// Symbol returns the token symbol.
func (l *Ledger) Symbol() string { return token.Symbol }

// Decimals returns the number of decimal places of one whole token.
func (l *Ledger) Decimals() uint8 { return token.Decimals }

// TotalSupply returns the fixed total supply in base units.
func (l *Ledger) TotalSupply() types.Amount { return token.TotalSupply() }

// Deployed reports whether genesis has been committed.
func (l *Ledger) Deployed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.meta != nil
}

// Metadata returns the genesis metadata, or ErrNotDeployed.
func (l *Ledger) Metadata() (*token.Metadata, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.meta == nil {
		return nil, ErrNotDeployed
	}
	m := *l.meta
	return &m, nil
}

// BalanceOf returns the balance of account, 0 when it has none.
func (l *Ledger) BalanceOf(ctx context.Context, account types.Address) (types.Amount, error) {
	return l.store.GetBalance(ctx, account)
}

// Allowance returns how much spender may still move out of owner's balance.
func (l *Ledger) Allowance(ctx context.Context, owner, spender types.Address) (types.Amount, error) {
	return l.store.GetAllowance(ctx, owner, spender)
}

// Allowances lists every allowance granted by owner.
func (l *Ledger) Allowances(ctx context.Context, owner types.Address, opts allowance.ListOpts) ([]*allowance.Allowance, error) {
	return l.store.ListAllowances(ctx, owner, opts)
}

// Events returns committed events in sequence order.
func (l *Ledger) Events(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	return l.store.ListEvents(ctx, opts)
}

// Holders lists balance entries ordered by account.
func (l *Ledger) Holders(ctx context.Context, opts balance.ListOpts) ([]*balance.Balance, error) {
	return l.store.ListBalances(ctx, opts)
}

// VerifySupply sums every balance and checks the conservation and bound
// invariants. It returns the computed sum.
func (l *Ledger) VerifySupply(ctx context.Context) (types.Amount, error) {
	rows, err := l.store.ListBalances(ctx, balance.ListOpts{})
	if err != nil {
		return types.Amount{}, err
	}

	supply := token.TotalSupply()
	var sum types.Amount
	for _, b := range rows {
		if types.IsZeroAddress(b.Account) && !b.Amount.IsZero() {
			return sum, &InvariantError{Op: "verify", Message: "zero address holds a balance"}
		}
		if b.Amount.Gt(supply) {
			return sum, &InvariantError{Op: "verify", Message: "balance of " + b.Account.Hex() + " exceeds total supply"}
		}
		var overflow bool
		if sum, overflow = sum.Add(b.Amount); overflow {
			return sum, &InvariantError{Op: "verify", Message: "balance sum overflows"}
		}
	}

	meta, err := l.metadata(ctx)
	if err != nil {
		return sum, err
	}
	want := supply
	if meta == nil {
		want = types.Amount{}
	}
	if !sum.Equal(want) {
		return sum, &InvariantError{
			Op:      "verify",
			Message: fmt.Sprintf("balances sum to %s, want %s", sum, want),
		}
	}
	return sum, nil
}
