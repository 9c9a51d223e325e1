package allowance

import (
	"context"

	"github.com/xraph/stokvel/types"
)

type Store interface {
	GetAllowance(ctx context.Context, owner, spender types.Address) (types.Amount, error)
	// ListAllowances returns every spender entry of owner, ordered by spender.
	ListAllowances(ctx context.Context, owner types.Address, opts ListOpts) ([]*Allowance, error)
}
