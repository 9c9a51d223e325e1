package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDeploysOnce(t *testing.T) {
	ctx := context.Background()
	t.Setenv("STOKVEL_STORE_DRIVER", "bolt")
	t.Setenv("STOKVEL_STORE_PATH", filepath.Join(t.TempDir(), "stokvel.bolt"))
	t.Setenv("STOKVEL_LOG_LEVEL", "error")

	var out bytes.Buffer
	err := run(ctx, &out, "", "0x00000000000000000000000000000000000000c0", 3)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "- Name: Stokvel")
	assert.Contains(t, out.String(), "- Symbol: STOK")
	assert.Contains(t, out.String(), "- Total Supply: 10000000000000000000000000")
	assert.Contains(t, out.String(), "Genesis confirmed at event sequence 1.")

	out.Reset()
	err = run(ctx, &out, "", "", 1)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Token already deployed")
	assert.Contains(t, strings.ToLower(out.String()), "0x00000000000000000000000000000000000000c0")
}

func TestRunWithoutCreator(t *testing.T) {
	t.Setenv("STOKVEL_LOG_LEVEL", "error")

	var out bytes.Buffer
	err := run(context.Background(), &out, "", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no creator configured")
}
