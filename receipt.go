package stokvel

import (
	"time"

	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/id"
	"github.com/xraph/stokvel/types"
)

// Receipt is returned by every successful mutating operation.
type Receipt struct {
	OperationID id.OperationID
	Operation   string
	Caller      types.Address
	// Events in emission order.
	Events    []*event.Event
	AppliedAt time.Time
}

// EventsOf returns the receipt's events of kind k.
func (r *Receipt) EventsOf(k event.Kind) []*event.Event {
	var out []*event.Event
	for _, e := range r.Events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
