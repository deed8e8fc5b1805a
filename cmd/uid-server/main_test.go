package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/pkseq/uid"
	"github.com/ceyewan/pkseq/uid/counter"
)

func TestProvisionRejectsMemoryDriver(t *testing.T) {
	cfg := uid.GetDefaultConfig("test").SetDriver(uid.DriverMemory, "")
	err := provisionRow(context.Background(), cfg, counter.Row{Key: "order", Value: 0, Step: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory")
}

func TestProvisionBolt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "uid.db")
	cfg := uid.GetDefaultConfig("test").SetDriver(uid.DriverBolt, path)

	err := provisionRow(ctx, cfg, counter.Row{Key: "order", Value: 0, Step: 0})
	assert.Error(t, err)

	require.NoError(t, provisionRow(ctx, cfg, counter.Row{Key: "order", Value: 500, Step: 10}))

	provider, err := uid.New(ctx, cfg)
	require.NoError(t, err)
	defer provider.Close()

	id, err := provider.Get(ctx, "order")
	require.NoError(t, err)
	assert.Equal(t, int64(501), id)
}
