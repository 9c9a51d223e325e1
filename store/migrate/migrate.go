// Package migrate runs versioned schema migrations for the SQL backends.
//
// A Group holds migrations ordered by Version. A backend supplies an
// Applier, which knows how to read the applied versions and how to run one
// migration and record it in a single transaction.
package migrate

import (
	"context"
	"fmt"
	"sort"
)

// Executor runs a statement inside a migration transaction.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// Migration is one schema step.
type Migration struct {
	Name    string
	Version string
	Up      func(ctx context.Context, exec Executor) error
	Down    func(ctx context.Context, exec Executor) error
}

// Group is an ordered set of migrations sharing a tracking namespace.
type Group struct {
	name       string
	migrations []*Migration
}

// NewGroup creates an empty migration group.
func NewGroup(name string) *Group {
	return &Group{name: name}
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// MustRegister adds migrations to the group. It panics on a duplicate version.
func (g *Group) MustRegister(ms ...*Migration) {
	for _, m := range ms {
		for _, existing := range g.migrations {
			if existing.Version == m.Version {
				panic(fmt.Sprintf("migrate: duplicate version %s in group %s", m.Version, g.name))
			}
		}
		g.migrations = append(g.migrations, m)
	}
	sort.Slice(g.migrations, func(i, j int) bool {
		return g.migrations[i].Version < g.migrations[j].Version
	})
}

// Migrations returns the registered migrations in version order.
func (g *Group) Migrations() []*Migration {
	out := make([]*Migration, len(g.migrations))
	copy(out, g.migrations)
	return out
}

// Applier is implemented by each backend.
type Applier interface {
	// Init creates the tracking table if needed.
	Init(ctx context.Context) error
	// Applied returns the versions already recorded for group.
	Applied(ctx context.Context, group string) (map[string]bool, error)
	// Apply runs m.Up and records it, atomically.
	Apply(ctx context.Context, group string, m *Migration) error
}

// Migrate applies every pending migration of g in version order and returns
// the names of the ones it ran.
func Migrate(ctx context.Context, a Applier, g *Group) ([]string, error) {
	if err := a.Init(ctx); err != nil {
		return nil, fmt.Errorf("migrate: init: %w", err)
	}

	applied, err := a.Applied(ctx, g.name)
	if err != nil {
		return nil, fmt.Errorf("migrate: read applied: %w", err)
	}

	var ran []string
	for _, m := range g.migrations {
		if applied[m.Version] {
			continue
		}
		if err := a.Apply(ctx, g.name, m); err != nil {
			return ran, fmt.Errorf("migrate: %s (%s): %w", m.Name, m.Version, err)
		}
		ran = append(ran, m.Name)
	}
	return ran, nil
}
