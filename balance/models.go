package balance

import (
	"time"

	"github.com/xraph/stokvel/types"
)

// Balance is one row of the balance table. An account with no row holds 0.
type Balance struct {
	Account   types.Address `json:"account"`
	Amount    types.Amount  `json:"amount"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type ListOpts struct {
	// NonZero skips accounts whose balance has been drained to 0.
	NonZero bool
	Limit   int
	Offset  int
}

// Paginate applies Offset/Limit to an already filtered and sorted slice.
// A negative Offset counts as 0 and a non-positive Limit means no limit.
func (o ListOpts) Paginate(n int) (start, end int) {
	start = min(max(o.Offset, 0), n)
	end = start + o.Limit
	if o.Limit <= 0 || end > n {
		end = n
	}
	return start, end
}
