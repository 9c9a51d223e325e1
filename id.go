package stokvel

import "github.com/xraph/stokvel/id"

// ID is the primary identifier type for operations, events and deployments.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
