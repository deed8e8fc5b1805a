package counter

import (
	"context"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// BoltStore 基于 bbolt 单文件的计数器，文件由单个进程独占，适合单机部署
// 每个 key 的记录为 16 字节：value 与 step 各 8 字节大端序
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

var _ Store = (*BoltStore)(nil)
var _ Provisioner = (*BoltStore)(nil)

// OpenBolt 打开（或创建）计数文件，bucket 为空时使用默认表名
func OpenBolt(path, bucket string) (*BoltStore, error) {
	if bucket == "" {
		bucket = DefaultTable
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return &BoltStore{db: db, bucket: []byte(bucket)}, nil
}

func encodeRow(value, step int64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], uint64(value))
	binary.BigEndian.PutUint64(buf[8:], uint64(step))
	return buf
}

func decodeRow(key string, buf []byte) (Row, error) {
	if len(buf) != 16 {
		return Row{}, fmt.Errorf("malformed counter %q: %d bytes", key, len(buf))
	}
	return Row{
		Key:   key,
		Value: int64(binary.BigEndian.Uint64(buf[:8])),
		Step:  int64(binary.BigEndian.Uint64(buf[8:])),
	}, nil
}

// Load 实现 Store
func (s *BoltStore) Load(ctx context.Context, key string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	var row Row
	err := s.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket(s.bucket).Get([]byte(key))
		if buf == nil {
			return ErrNotFound
		}
		var err error
		row, err = decodeRow(key, buf)
		return err
	})
	return row, err
}

// CompareAndSwap 实现 Store，bbolt 写事务本身串行，检查与写入在同一事务内完成
func (s *BoltStore) CompareAndSwap(ctx context.Context, key string, oldValue, newValue int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	swapped := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		buf := b.Get([]byte(key))
		if buf == nil {
			return nil
		}
		row, err := decodeRow(key, buf)
		if err != nil {
			return err
		}
		if row.Value != oldValue {
			return nil
		}
		swapped = true
		return b.Put([]byte(key), encodeRow(newValue, row.Step))
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// Provision 写入或覆盖一行
func (s *BoltStore) Provision(ctx context.Context, row Row) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(row.Key), encodeRow(row.Value, row.Step))
	})
}

// Close 实现 Store
func (s *BoltStore) Close() error {
	return s.db.Close()
}
