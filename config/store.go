package config

import (
	"context"
	"fmt"

	"github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/store/bolt"
	"github.com/xraph/stokvel/store/memory"
	"github.com/xraph/stokvel/store/mongo"
	"github.com/xraph/stokvel/store/postgres"
	"github.com/xraph/stokvel/store/sqlite"
)

// OpenStore opens the backend selected by c. The store is not migrated;
// stokvel.Ledger.Start does that.
func OpenStore(ctx context.Context, c StoreConfig) (store.Store, error) {
	switch c.Driver {
	case DriverMemory, "":
		return memory.New(), nil
	case DriverSQLite:
		return sqlite.Open(ctx, c.Path)
	case DriverBolt:
		return bolt.Open(c.Path)
	case DriverPostgres:
		return postgres.New(ctx, c.DSN)
	case DriverMongo:
		return mongo.Connect(ctx, c.DSN, c.Database)
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Driver)
	}
}
