package postgres

import (
	"context"

	"github.com/xraph/stokvel/store/migrate"
)

// Migrations is the migration group for the Stokvel store (PostgreSQL).
var Migrations = migrate.NewGroup("stokvel")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_stokvel_token",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				return exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stokvel_token (
    id            SMALLINT PRIMARY KEY CHECK (id = 1),
    name          TEXT NOT NULL,
    symbol        TEXT NOT NULL,
    decimals      SMALLINT NOT NULL,
    total_supply  NUMERIC(78,0) NOT NULL,
    creator       TEXT NOT NULL,
    deployment_id TEXT NOT NULL,
    operation_id  TEXT NOT NULL,
    deployed_at   TIMESTAMPTZ NOT NULL
)`)
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				return exec.Exec(ctx, `DROP TABLE IF EXISTS stokvel_token`)
			},
		},
		&migrate.Migration{
			Name:    "create_stokvel_balances",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				return exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stokvel_balances (
    account    TEXT PRIMARY KEY,
    amount     NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (amount >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				return exec.Exec(ctx, `DROP TABLE IF EXISTS stokvel_balances`)
			},
		},
		&migrate.Migration{
			Name:    "create_stokvel_allowances",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				return exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stokvel_allowances (
    owner      TEXT NOT NULL,
    spender    TEXT NOT NULL,
    amount     NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (amount >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (owner, spender)
)`)
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				return exec.Exec(ctx, `DROP TABLE IF EXISTS stokvel_allowances`)
			},
		},
		&migrate.Migration{
			Name:    "create_stokvel_events",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				if err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stokvel_events (
    sequence     BIGINT PRIMARY KEY,
    id           TEXT NOT NULL UNIQUE,
    operation_id TEXT NOT NULL,
    kind         TEXT NOT NULL,
    from_addr    TEXT NOT NULL,
    to_addr      TEXT NOT NULL,
    owner        TEXT NOT NULL,
    spender      TEXT NOT NULL,
    supplier     TEXT NOT NULL,
    amount       NUMERIC(78,0) NOT NULL,
    occurred_at  TIMESTAMPTZ NOT NULL
)`); err != nil {
					return err
				}
				if err := exec.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_stokvel_events_kind ON stokvel_events (kind, sequence)`); err != nil {
					return err
				}
				return exec.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_stokvel_events_operation ON stokvel_events (operation_id)`)
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				return exec.Exec(ctx, `DROP TABLE IF EXISTS stokvel_events`)
			},
		},
	)
}
