package counter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract 各存储实现共享的行为检查，调用前须已写入 order=(100, 10)
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	row, err := store.Load(ctx, "order")
	require.NoError(t, err)
	assert.Equal(t, Row{Key: "order", Value: 100, Step: 10}, row)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	swapped, err := store.CompareAndSwap(ctx, "order", 100, 110)
	require.NoError(t, err)
	assert.True(t, swapped)

	// 旧值已过期，条件更新不生效
	swapped, err = store.CompareAndSwap(ctx, "order", 100, 110)
	require.NoError(t, err)
	assert.False(t, swapped)

	swapped, err = store.CompareAndSwap(ctx, "missing", 0, 10)
	require.NoError(t, err)
	assert.False(t, swapped)

	row, err = store.Load(ctx, "order")
	require.NoError(t, err)
	assert.Equal(t, int64(110), row.Value)
	assert.Equal(t, int64(10), row.Step)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(Row{Key: "order", Value: 100, Step: 10})
	storeContract(t, store)

	store.SetStep("order", 50)
	row, ok := store.Row("order")
	require.True(t, ok)
	assert.Equal(t, int64(50), row.Step)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Load(ctx, "order")
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, store.Close())
	_, err = store.Load(context.Background(), "order")
	assert.ErrorIs(t, err, ErrClosed)
}
