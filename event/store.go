package event

import "context"

type Store interface {
	// ListEvents returns events in ascending sequence order.
	ListEvents(ctx context.Context, opts QueryOpts) ([]*Event, error)
	// LastSequence returns the highest committed sequence, or 0 for an empty log.
	LastSequence(ctx context.Context) (uint64, error)
}
