package host

import (
	"context"
	"fmt"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/types"
)

// Op is one mutating ledger operation queued for the executor.
type Op struct {
	Name   string
	Caller types.Address
	// Owner is the account debited by transferFrom.
	Owner types.Address
	// To is the recipient, spender or supplier depending on Name.
	To     types.Address
	Amount types.Amount
}

// Deploy returns the genesis operation.
func Deploy(creator types.Address) Op {
	return Op{Name: stokvel.OpDeploy, Caller: creator}
}

// Transfer returns a transfer of amount from caller to to.
func Transfer(caller, to types.Address, amount types.Amount) Op {
	return Op{Name: stokvel.OpTransfer, Caller: caller, To: to, Amount: amount}
}

// Approve returns an approval of spender for amount.
func Approve(caller, spender types.Address, amount types.Amount) Op {
	return Op{Name: stokvel.OpApprove, Caller: caller, To: spender, Amount: amount}
}

// TransferFrom returns a delegated transfer from owner to to, spent by caller.
func TransferFrom(caller, owner, to types.Address, amount types.Amount) Op {
	return Op{Name: stokvel.OpTransferFrom, Caller: caller, Owner: owner, To: to, Amount: amount}
}

// PaySupplier returns a supplier payment.
func PaySupplier(caller, supplier types.Address, amount types.Amount) Op {
	return Op{Name: stokvel.OpPaySupplier, Caller: caller, To: supplier, Amount: amount}
}

func (op Op) apply(ctx context.Context, l *stokvel.Ledger) (*stokvel.Receipt, error) {
	switch op.Name {
	case stokvel.OpDeploy:
		return l.Deploy(ctx, op.Caller)
	case stokvel.OpTransfer:
		return l.Transfer(ctx, op.Caller, op.To, op.Amount)
	case stokvel.OpApprove:
		return l.Approve(ctx, op.Caller, op.To, op.Amount)
	case stokvel.OpTransferFrom:
		return l.TransferFrom(ctx, op.Caller, op.Owner, op.To, op.Amount)
	case stokvel.OpPaySupplier:
		return l.PaySupplier(ctx, op.Caller, op.To, op.Amount)
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", stokvel.ErrInvalidInput, op.Name)
	}
}
