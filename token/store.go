package token

import "context"

// Store reads the genesis metadata. It is written through store.Changeset.
type Store interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
}
