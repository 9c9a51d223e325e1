package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/allowance"
	"github.com/xraph/stokvel/balance"
	"github.com/xraph/stokvel/event"
	stokvelstore "github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/store/migrate"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

// compile-time interface check
var _ stokvelstore.Store = (*Store)(nil)

const (
	tableToken      = "stokvel_token"
	tableBalances   = "stokvel_balances"
	tableAllowances = "stokvel_allowances"
	tableEvents     = "stokvel_events"
	castNumeric     = "?::numeric"
)

var dialect = goqu.Dialect("postgres")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements store.Store using PostgreSQL via a pgx pool and goqu.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("stokvel/postgres: connect: %w", err)
	}
	return NewFromPool(pool), nil
}

// NewFromPool wraps an existing pool. Close closes the pool.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pgx pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := migrate.Migrate(ctx, &applier{pool: s.pool}, Migrations); err != nil {
		return fmt.Errorf("stokvel/postgres: %w: %w", stokvel.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== Token Store ====================

func (s *Store) GetMetadata(ctx context.Context) (*token.Metadata, error) {
	query, args, err := dialect.From(tableToken).Prepared(true).
		Select("name", "symbol", "decimals",
			goqu.L(`"total_supply"::text`).As("total_supply"),
			"creator", "deployment_id", "operation_id", "deployed_at").
		Where(goqu.C("id").Eq(1)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("stokvel/postgres: build get metadata: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stokvel/postgres: get metadata: %w", err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[tokenRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stokvel.ErrNotDeployed
		}
		return nil, fmt.Errorf("stokvel/postgres: get metadata: %w", err)
	}
	return fromTokenRow(&r)
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, account types.Address) (types.Amount, error) {
	var amount string
	err := s.pool.QueryRow(ctx,
		`SELECT amount::text FROM `+tableBalances+` WHERE account = $1`, addr(account)).
		Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Amount{}, nil
		}
		return types.Amount{}, fmt.Errorf("stokvel/postgres: get balance: %w", err)
	}
	return types.ParseAmount(amount)
}

func (s *Store) ListBalances(ctx context.Context, opts balance.ListOpts) ([]*balance.Balance, error) {
	q := dialect.From(tableBalances).Prepared(true).
		Select("account", goqu.L(`"amount"::text`).As("amount"), "updated_at").
		Order(goqu.C("account").Asc())
	if opts.NonZero {
		q = q.Where(goqu.C("amount").Gt(goqu.L("0")))
	}
	q = paginate(q, opts.Limit, opts.Offset)

	rows, err := collect[balanceRow](ctx, s.pool, q)
	if err != nil {
		return nil, fmt.Errorf("stokvel/postgres: list balances: %w", err)
	}

	out := make([]*balance.Balance, 0, len(rows))
	for i := range rows {
		b, err := fromBalanceRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// ==================== Allowance Store ====================

func (s *Store) GetAllowance(ctx context.Context, owner, spender types.Address) (types.Amount, error) {
	var amount string
	err := s.pool.QueryRow(ctx,
		`SELECT amount::text FROM `+tableAllowances+` WHERE owner = $1 AND spender = $2`,
		addr(owner), addr(spender)).
		Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Amount{}, nil
		}
		return types.Amount{}, fmt.Errorf("stokvel/postgres: get allowance: %w", err)
	}
	return types.ParseAmount(amount)
}

func (s *Store) ListAllowances(ctx context.Context, owner types.Address, opts allowance.ListOpts) ([]*allowance.Allowance, error) {
	q := dialect.From(tableAllowances).Prepared(true).
		Select("owner", "spender", goqu.L(`"amount"::text`).As("amount"), "updated_at").
		Where(goqu.C("owner").Eq(addr(owner))).
		Order(goqu.C("spender").Asc())
	q = paginate(q, opts.Limit, opts.Offset)

	rows, err := collect[allowanceRow](ctx, s.pool, q)
	if err != nil {
		return nil, fmt.Errorf("stokvel/postgres: list allowances: %w", err)
	}

	out := make([]*allowance.Allowance, 0, len(rows))
	for i := range rows {
		a, err := fromAllowanceRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ==================== Event Store ====================

func (s *Store) ListEvents(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	q := dialect.From(tableEvents).Prepared(true).
		Select("sequence", "id", "operation_id", "kind",
			"from_addr", "to_addr", "owner", "spender", "supplier",
			goqu.L(`"amount"::text`).As("amount"), "occurred_at").
		Order(goqu.C("sequence").Asc())
	if opts.Kind != "" {
		q = q.Where(goqu.C("kind").Eq(string(opts.Kind)))
	}
	if !types.IsZeroAddress(opts.Account) {
		a := addr(opts.Account)
		q = q.Where(goqu.Or(
			goqu.C("from_addr").Eq(a),
			goqu.C("to_addr").Eq(a),
			goqu.C("owner").Eq(a),
			goqu.C("spender").Eq(a),
			goqu.C("supplier").Eq(a),
		))
	}
	if opts.AfterSequence > 0 {
		q = q.Where(goqu.C("sequence").Gt(int64(opts.AfterSequence))) //nolint:gosec // sequences stay far below 2^63
	}
	q = paginate(q, opts.Limit, 0)

	rows, err := collect[eventRow](ctx, s.pool, q)
	if err != nil {
		return nil, fmt.Errorf("stokvel/postgres: list events: %w", err)
	}

	out := make([]*event.Event, 0, len(rows))
	for i := range rows {
		e, err := fromEventRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) LastSequence(ctx context.Context) (uint64, error) {
	return lastSequence(ctx, s.pool)
}

// ==================== Commit ====================

// Commit writes cs in a single transaction.
func (s *Store) Commit(ctx context.Context, cs *stokvelstore.Changeset) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("stokvel/postgres: begin: %w: %w", stokvel.ErrTransactionFailed, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := s.write(ctx, tx, cs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("stokvel/postgres: commit: %w: %w", stokvel.ErrTransactionFailed, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, tx pgx.Tx, cs *stokvelstore.Changeset) error {
	if m := cs.Metadata; m != nil {
		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM `+tableToken).Scan(&n); err != nil {
			return fmt.Errorf("stokvel/postgres: check metadata: %w", err)
		}
		if n > 0 {
			return stokvel.ErrAlreadyDeployed
		}
		ds := dialect.Insert(tableToken).Prepared(true).Rows(goqu.Record{
			"id":            1,
			"name":          m.Name,
			"symbol":        m.Symbol,
			"decimals":      int16(m.Decimals),
			"total_supply":  goqu.L(castNumeric, m.TotalSupply.String()),
			"creator":       addr(m.Creator),
			"deployment_id": m.DeploymentID.String(),
			"operation_id":  m.OperationID.String(),
			"deployed_at":   m.DeployedAt,
		})
		if err := execDataset(ctx, tx, ds); err != nil {
			return fmt.Errorf("stokvel/postgres: insert metadata: %w", err)
		}
	}

	if len(cs.Events) > 0 {
		// Serialize writers on the event log so the gap check below holds.
		if _, err := tx.Exec(ctx, `LOCK TABLE `+tableEvents+` IN EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("stokvel/postgres: lock events: %w", err)
		}
		last, err := lastSequence(ctx, tx)
		if err != nil {
			return err
		}
		if cs.Events[0].Sequence != last+1 {
			return fmt.Errorf("stokvel/postgres: %w: event sequence %d, want %d",
				stokvel.ErrTransactionFailed, cs.Events[0].Sequence, last+1)
		}
	}

	for _, b := range cs.Balances {
		ds := dialect.Insert(tableBalances).Prepared(true).
			Rows(goqu.Record{
				"account":    addr(b.Account),
				"amount":     goqu.L(castNumeric, b.Amount.String()),
				"updated_at": b.UpdatedAt,
			}).
			OnConflict(goqu.DoUpdate("account", goqu.Record{
				"amount":     goqu.L("EXCLUDED.amount"),
				"updated_at": goqu.L("EXCLUDED.updated_at"),
			}))
		if err := execDataset(ctx, tx, ds); err != nil {
			return fmt.Errorf("stokvel/postgres: upsert balance: %w", err)
		}
	}

	for _, a := range cs.Allowances {
		ds := dialect.Insert(tableAllowances).Prepared(true).
			Rows(goqu.Record{
				"owner":      addr(a.Owner),
				"spender":    addr(a.Spender),
				"amount":     goqu.L(castNumeric, a.Amount.String()),
				"updated_at": a.UpdatedAt,
			}).
			OnConflict(goqu.DoUpdate("owner, spender", goqu.Record{
				"amount":     goqu.L("EXCLUDED.amount"),
				"updated_at": goqu.L("EXCLUDED.updated_at"),
			}))
		if err := execDataset(ctx, tx, ds); err != nil {
			return fmt.Errorf("stokvel/postgres: upsert allowance: %w", err)
		}
	}

	for _, e := range cs.Events {
		ds := dialect.Insert(tableEvents).Prepared(true).Rows(goqu.Record{
			"sequence":     int64(e.Sequence), //nolint:gosec // sequences stay far below 2^63
			"id":           e.ID.String(),
			"operation_id": e.OperationID.String(),
			"kind":         string(e.Kind),
			"from_addr":    addr(e.From),
			"to_addr":      addr(e.To),
			"owner":        addr(e.Owner),
			"spender":      addr(e.Spender),
			"supplier":     addr(e.Supplier),
			"amount":       goqu.L(castNumeric, e.Amount.String()),
			"occurred_at":  e.OccurredAt,
		})
		if err := execDataset(ctx, tx, ds); err != nil {
			return fmt.Errorf("stokvel/postgres: append event %d: %w", e.Sequence, err)
		}
	}

	return nil
}

// ==================== Helpers ====================

func lastSequence(ctx context.Context, q querier) (uint64, error) {
	var seq int64
	if err := q.QueryRow(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM `+tableEvents).Scan(&seq); err != nil {
		return 0, fmt.Errorf("stokvel/postgres: last sequence: %w", err)
	}
	return uint64(seq), nil //nolint:gosec // never negative
}

func execDataset(ctx context.Context, q querier, ds *goqu.InsertDataset) error {
	query, args, err := ds.ToSQL()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, query, args...)
	return err
}

func collect[T any](ctx context.Context, q querier, ds *goqu.SelectDataset) ([]T, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}

func paginate(q *goqu.SelectDataset, limit, offset int) *goqu.SelectDataset {
	if limit > 0 {
		q = q.Limit(uint(limit))
	}
	if offset > 0 {
		q = q.Offset(uint(offset))
	}
	return q
}

// applier runs migrations inside pgx transactions.
type applier struct {
	pool *pgxpool.Pool
}

type txExecutor struct {
	tx pgx.Tx
}

func (e txExecutor) Exec(ctx context.Context, query string, args ...any) error {
	_, err := e.tx.Exec(ctx, query, args...)
	return err
}

func (a *applier) Init(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stokvel_migrations (
    grp        TEXT NOT NULL,
    version    TEXT NOT NULL,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (grp, version)
)`)
	return err
}

func (a *applier) Applied(ctx context.Context, group string) (map[string]bool, error) {
	rows, err := a.pool.Query(ctx, `SELECT version FROM stokvel_migrations WHERE grp = $1`, group)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(versions))
	for _, v := range versions {
		out[v] = true
	}
	return out, nil
}

func (a *applier) Apply(ctx context.Context, group string, m *migrate.Migration) error {
	return pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		if err := m.Up(ctx, txExecutor{tx: tx}); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO stokvel_migrations (grp, version, name) VALUES ($1, $2, $3)`,
			group, m.Version, m.Name)
		return err
	})
}
