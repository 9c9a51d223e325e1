package balance

import (
	"context"

	"github.com/xraph/stokvel/types"
)

type Store interface {
	GetBalance(ctx context.Context, account types.Address) (types.Amount, error)
	ListBalances(ctx context.Context, opts ListOpts) ([]*Balance, error)
}
