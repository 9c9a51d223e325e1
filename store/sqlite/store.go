package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // database/sql driver "sqlite"

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
)

var dialect = goqu.Dialect("sqlite3")

// Store implements store.Store using SQLite via sqlx and the pure-Go modernc driver.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the SQLite database at path. Use
// ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("stokvel/sqlite: open %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" on a single shared connection.
	db.SetMaxOpenConns(1)
	return New(db), nil
}

// New wraps an existing sqlx handle opened with the "sqlite" driver.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying sqlx database for direct access.
func (s *Store) DB() *sqlx.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := migrate.Migrate(ctx, &applier{db: s.db}, Migrations); err != nil {
		return fmt.Errorf("stokvel/sqlite: %w: %w", stokvel.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Token Store ====================

func (s *Store) GetMetadata(ctx context.Context) (*token.Metadata, error) {
	var m tokenModel
	err := s.db.GetContext(ctx, &m, `SELECT * FROM `+tableToken+` WHERE id = 1`)
	if err != nil {
		if isNoRows(err) {
			return nil, stokvel.ErrNotDeployed
		}
		return nil, fmt.Errorf("stokvel/sqlite: get metadata: %w", err)
	}
	return fromTokenModel(&m)
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, account types.Address) (types.Amount, error) {
	var amount string
	err := s.db.GetContext(ctx, &amount, `SELECT amount FROM `+tableBalances+` WHERE account = ?`, addr(account))
	if err != nil {
		if isNoRows(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, fmt.Errorf("stokvel/sqlite: get balance: %w", err)
	}
	return types.ParseAmount(amount)
}

func (s *Store) ListBalances(ctx context.Context, opts balance.ListOpts) ([]*balance.Balance, error) {
	q := dialect.From(tableBalances).Prepared(true).Order(goqu.C("account").Asc())
	if opts.NonZero {
		q = q.Where(goqu.C("amount").Neq("0"))
	}
	q = paginate(q, opts.Limit, opts.Offset)

	query, args, err := q.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("stokvel/sqlite: build list balances: %w", err)
	}

	var models []balanceModel
	if err := s.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("stokvel/sqlite: list balances: %w", err)
	}

	out := make([]*balance.Balance, 0, len(models))
	for i := range models {
		b, err := fromBalanceModel(&models[i])
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
	err := s.db.GetContext(ctx, &amount,
		`SELECT amount FROM `+tableAllowances+` WHERE owner = ? AND spender = ?`,
		addr(owner), addr(spender))
	if err != nil {
		if isNoRows(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, fmt.Errorf("stokvel/sqlite: get allowance: %w", err)
	}
	return types.ParseAmount(amount)
}

func (s *Store) ListAllowances(ctx context.Context, owner types.Address, opts allowance.ListOpts) ([]*allowance.Allowance, error) {
	q := dialect.From(tableAllowances).Prepared(true).
		Where(goqu.C("owner").Eq(addr(owner))).
		Order(goqu.C("spender").Asc())
	q = paginate(q, opts.Limit, opts.Offset)

	query, args, err := q.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("stokvel/sqlite: build list allowances: %w", err)
	}

	var models []allowanceModel
	if err := s.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("stokvel/sqlite: list allowances: %w", err)
	}

	out := make([]*allowance.Allowance, 0, len(models))
	for i := range models {
		a, err := fromAllowanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ==================== Event Store ====================

func (s *Store) ListEvents(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	q := dialect.From(tableEvents).Prepared(true).Order(goqu.C("sequence").Asc())
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
		q = q.Where(goqu.C("sequence").Gt(opts.AfterSequence))
	}
	q = paginate(q, opts.Limit, 0)

	query, args, err := q.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("stokvel/sqlite: build list events: %w", err)
	}

	var models []eventModel
	if err := s.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("stokvel/sqlite: list events: %w", err)
	}

	out := make([]*event.Event, 0, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) LastSequence(ctx context.Context) (uint64, error) {
	return lastSequence(ctx, s.db)
}

// ==================== Commit ====================

// Commit writes cs in a single transaction.
func (s *Store) Commit(ctx context.Context, cs *stokvelstore.Changeset) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("stokvel/sqlite: begin: %w: %w", stokvel.ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if cs.Metadata != nil {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+tableToken); err != nil {
			return fmt.Errorf("stokvel/sqlite: check metadata: %w", err)
		}
		if n > 0 {
			return stokvel.ErrAlreadyDeployed
		}
		if _, err := tx.NamedExecContext(ctx, `
INSERT INTO `+tableToken+` (id, name, symbol, decimals, total_supply, creator, deployment_id, operation_id, deployed_at)
VALUES (:id, :name, :symbol, :decimals, :total_supply, :creator, :deployment_id, :operation_id, :deployed_at)`,
			toTokenModel(cs.Metadata)); err != nil {
			return fmt.Errorf("stokvel/sqlite: insert metadata: %w", err)
		}
	}

	if len(cs.Events) > 0 {
		last, err := lastSequence(ctx, tx)
		if err != nil {
			return err
		}
		if cs.Events[0].Sequence != last+1 {
			return fmt.Errorf("stokvel/sqlite: %w: event sequence %d, want %d",
				stokvel.ErrTransactionFailed, cs.Events[0].Sequence, last+1)
		}
	}

	for _, b := range cs.Balances {
		if _, err := tx.NamedExecContext(ctx, `
INSERT INTO `+tableBalances+` (account, amount, updated_at) VALUES (:account, :amount, :updated_at)
ON CONFLICT (account) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
			toBalanceModel(b)); err != nil {
			return fmt.Errorf("stokvel/sqlite: upsert balance: %w", err)
		}
	}

	for _, a := range cs.Allowances {
		if _, err := tx.NamedExecContext(ctx, `
INSERT INTO `+tableAllowances+` (owner, spender, amount, updated_at) VALUES (:owner, :spender, :amount, :updated_at)
ON CONFLICT (owner, spender) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
			toAllowanceModel(a)); err != nil {
			return fmt.Errorf("stokvel/sqlite: upsert allowance: %w", err)
		}
	}

	for _, e := range cs.Events {
		if _, err := tx.NamedExecContext(ctx, `
INSERT INTO `+tableEvents+` (sequence, id, operation_id, kind, from_addr, to_addr, owner, spender, supplier, amount, occurred_at)
VALUES (:sequence, :id, :operation_id, :kind, :from_addr, :to_addr, :owner, :spender, :supplier, :amount, :occurred_at)`,
			toEventModel(e)); err != nil {
			return fmt.Errorf("stokvel/sqlite: append event %d: %w", e.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("stokvel/sqlite: commit: %w: %w", stokvel.ErrTransactionFailed, err)
	}
	return nil
}

// ==================== Helpers ====================

func lastSequence(ctx context.Context, q sqlx.QueryerContext) (uint64, error) {
	var seq int64
	if err := sqlx.GetContext(ctx, q, &seq, `SELECT COALESCE(MAX(sequence), 0) FROM `+tableEvents); err != nil {
		return 0, fmt.Errorf("stokvel/sqlite: last sequence: %w", err)
	}
	return uint64(seq), nil //nolint:gosec // never negative
}

func paginate(q *goqu.SelectDataset, limit, offset int) *goqu.SelectDataset {
	if limit > 0 {
		q = q.Limit(uint(limit))
	}
	if offset > 0 {
		if limit <= 0 {
			// SQLite requires LIMIT before OFFSET.
			q = q.Limit(^uint(0) >> 1)
		}
		q = q.Offset(uint(offset))
	}
	return q
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// applier runs migrations inside sqlx transactions.
type applier struct {
	db *sqlx.DB
}

type txExecutor struct {
	tx *sqlx.Tx
}

func (e txExecutor) Exec(ctx context.Context, query string, args ...any) error {
	_, err := e.tx.ExecContext(ctx, query, args...)
	return err
}

func (a *applier) Init(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS stokvel_migrations (
    grp        TEXT NOT NULL,
    version    TEXT NOT NULL,
    name       TEXT NOT NULL,
    applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
    PRIMARY KEY (grp, version)
)`)
	return err
}

func (a *applier) Applied(ctx context.Context, group string) (map[string]bool, error) {
	var versions []string
	if err := a.db.SelectContext(ctx, &versions, `SELECT version FROM stokvel_migrations WHERE grp = ?`, group); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(versions))
	for _, v := range versions {
		out[v] = true
	}
	return out, nil
}

func (a *applier) Apply(ctx context.Context, group string, m *migrate.Migration) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := m.Up(ctx, txExecutor{tx: tx}); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stokvel_migrations (grp, version, name) VALUES (?, ?, ?)`,
		group, m.Version, m.Name); err != nil {
		return err
	}
	return tx.Commit()
}
