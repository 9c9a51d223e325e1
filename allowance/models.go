package allowance

import (
	"time"

	"github.com/xraph/stokvel/types"
)

// Allowance is the amount Spender may still move out of Owner's balance.
type Allowance struct {
	Owner     types.Address `json:"owner"`
	Spender   types.Address `json:"spender"`
	Amount    types.Amount  `json:"amount"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Key identifies one allowance entry.
type Key struct {
	Owner   types.Address
	Spender types.Address
}

// Key returns the (owner, spender) key of a.
func (a *Allowance) Key() Key {
	return Key{Owner: a.Owner, Spender: a.Spender}
}

// String renders the key as "owner:spender" in checksummed hex.
func (k Key) String() string {
	return k.Owner.Hex() + ":" + k.Spender.Hex()
}

type ListOpts struct {
	Limit  int
	Offset int
}

// Paginate applies Offset/Limit to an already sorted slice of length n.
// A negative Offset counts as 0 and a non-positive Limit means no limit.
func (o ListOpts) Paginate(n int) (start, end int) {
	start = min(max(o.Offset, 0), n)
	end = start + o.Limit
	if o.Limit <= 0 || end > n {
		end = n
	}
	return start, end
}
