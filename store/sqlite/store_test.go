package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/store/sqlite"
	"github.com/xraph/stokvel/store/storetest"
	"github.com/xraph/stokvel/token"
)

func open(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return open(t, filepath.Join(t.TempDir(), "stokvel.db"))
	})
}

func TestConformanceInMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return open(t, ":memory:")
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := open(t, filepath.Join(t.TempDir(), "stokvel.db"))
	defer s.Close()

	require.NoError(t, s.Migrate(context.Background()))
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stokvel.db")

	s := open(t, path)
	storetest.Seed(t, s)
	require.NoError(t, s.Close())

	s = open(t, path)
	defer s.Close()

	meta, err := s.GetMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, storetest.Creator, meta.Creator)

	bal, err := s.GetBalance(ctx, storetest.Creator)
	require.NoError(t, err)
	assert.True(t, bal.Equal(token.TotalSupply()))

	seq, err := s.LastSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}
