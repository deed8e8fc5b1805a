package counter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.db")
	store, err := OpenBolt(path, "")
	require.NoError(t, err)

	require.NoError(t, store.Provision(context.Background(), Row{Key: "order", Value: 100, Step: 10}))
	storeContract(t, store)
	require.NoError(t, store.Close())

	// 重新打开后计数器保持
	store, err = OpenBolt(path, "")
	require.NoError(t, err)
	defer store.Close()

	row, err := store.Load(context.Background(), "order")
	require.NoError(t, err)
	assert.Equal(t, int64(110), row.Value)
}

func TestBoltStoreMalformedRow(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "counter.db"), "custom")
	require.NoError(t, err)
	defer store.Close()

	err = store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("custom")).Put([]byte("broken"), []byte{1, 2, 3})
	})
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRowEncoding(t *testing.T) {
	row, err := decodeRow("k", encodeRow(-1, 1<<40))
	require.NoError(t, err)
	assert.Equal(t, Row{Key: "k", Value: -1, Step: 1 << 40}, row)
}
