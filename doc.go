// Package stokvel provides the Stokvel (STOK) fungible-token ledger for Go applications.
//
// Stokvel is designed as a library, not a service. It tracks ownership of a
// fixed supply of 10,000,000 tokens (18 decimals) across accounts and enforces:
//
//   - Direct transfers between accounts
//   - Delegated spending through approve / transferFrom allowances
//   - Supplier payments with a dedicated SupplierPaid event
//   - Conservation of the total supply after every operation
//
// # Quick Start
//
// Create a ledger with your preferred store and deploy the token once:
//
//	import (
//	    "github.com/xraph/stokvel"
//	    "github.com/xraph/stokvel/store/postgres"
//	)
//
//	s, err := postgres.New(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	l := stokvel.New(s, stokvel.WithLogger(logger))
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	if !l.Deployed() {
//	    if _, err := l.Deploy(ctx, creator); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Operations
//
// Caller identity is always an explicit parameter. Every mutating operation
// either commits all of its balance, allowance and event writes in a single
// store transaction, or fails and leaves state untouched:
//
//	rcpt, err := l.Transfer(ctx, alice, bob, stokvel.Tokens(100))
//	rcpt, err := l.Approve(ctx, alice, spender, stokvel.Tokens(50))
//	rcpt, err := l.TransferFrom(ctx, spender, alice, bob, stokvel.Tokens(20))
//	rcpt, err := l.PaySupplier(ctx, alice, supplier, stokvel.Tokens(1000))
//
// A failed check returns a *RejectionError. Its Error() is the human-readable
// reason and it wraps one of ErrInvalidRecipient, ErrInsufficientBalance,
// ErrInsufficientAllowance, ErrInvalidAmount or ErrInvalidSender:
//
//	if errors.Is(err, stokvel.ErrInsufficientBalance) { ... }
//
// A zero-amount Transfer is allowed; a zero-amount PaySupplier is rejected.
//
// # Concurrency
//
// The Ledger does no locking. Mutations must be serialized by the host; the
// host package provides an Executor that applies submitted operations one at a
// time from a single goroutine.
//
// # Events
//
// Receipts carry the emitted events in order. The same events are appended to
// the store's event log and dispatched to plugins after commit:
//
//	Transfer(from, to, amount)
//	Approval(owner, spender, amount)
//	SupplierPaid(supplier, amount)
package stokvel
